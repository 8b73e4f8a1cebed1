package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
)

// Answer is one row of the response ledger. It is unique per
// (room, student, question) and a resubmission overwrites it.
type Answer struct {
	RoomID           int64                   `json:"room_id"`
	StudentID        uuid.UUID               `json:"student_id"`
	QuestionID       int64                   `json:"question_id"`
	Response         *string                 `json:"student_answer"`
	IsCorrect        bool                    `json:"is_correct"`
	TimeTakenSeconds *int                    `json:"time_taken_seconds,omitempty"`
	CognitiveLevel   adaptive.CognitiveLevel `json:"cognitive_level"`
	Difficulty       adaptive.Difficulty     `json:"difficulty"`
	ESValue          *float64                `json:"es_value,omitempty"`
	AnsweredAt       time.Time               `json:"answered_at"`
}

// Attempt projects the row onto the engine's history entry.
func (a *Answer) Attempt() adaptive.Attempt {
	return adaptive.Attempt{
		QuestionID: a.QuestionID,
		Level:      a.CognitiveLevel,
		Difficulty: a.Difficulty,
		Correct:    a.IsCorrect,
		ES:         a.ESValue,
	}
}

// Attempts projects a history onto engine attempts, preserving order.
func Attempts(history []Answer) []adaptive.Attempt {
	out := make([]adaptive.Attempt, len(history))
	for i := range history {
		out[i] = history[i].Attempt()
	}
	return out
}

// SubmitAnswerRequest is the payload for answering a question.
type SubmitAnswerRequest struct {
	QuestionID       int64   `json:"question_id" binding:"required,min=1"`
	Answer           *string `json:"answer" binding:"omitempty,answer_option"`
	TimeTakenSeconds *int    `json:"time_taken_seconds" binding:"omitempty,min=0"`
}
