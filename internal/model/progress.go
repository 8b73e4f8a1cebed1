package model

import (
	"time"

	"github.com/google/uuid"
)

// ProgressEventType enumerates live progress notifications.
type ProgressEventType string

const (
	ProgressAnswered ProgressEventType = "answered"
	ProgressFinished ProgressEventType = "finished"
)

// ProgressEvent mirrors a session step to the live monitor. It carries no
// engine state and losing one never affects scoring.
type ProgressEvent struct {
	Type          ProgressEventType `json:"type"`
	RoomID        int64             `json:"room_id"`
	StudentID     uuid.UUID         `json:"student_id"`
	QuestionID    int64             `json:"question_id,omitempty"`
	IsCorrect     *bool             `json:"is_correct,omitempty"`
	AnsweredCount int               `json:"answered_count"`
	ES            *float64          `json:"es,omitempty"`
	TrueScore     *float64          `json:"true_score,omitempty"`
	At            time.Time         `json:"at"`
}
