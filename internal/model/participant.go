package model

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a student's enrolment in a room and, once finished, their
// terminal summary.
type Participant struct {
	RoomID             int64      `json:"room_id"`
	StudentID          uuid.UUID  `json:"student_id"`
	QuestionMap        []int64    `json:"question_map,omitempty"`
	TotalAnswered      int        `json:"total_answered"`
	TotalCorrect       int        `json:"total_correct"`
	TrueScore          *float64   `json:"true_score,omitempty"`
	ExpectationScore   *float64   `json:"expectation_score,omitempty"`
	TotalTimeSeconds   int        `json:"total_time_seconds"`
	AvgTimePerQuestion float64    `json:"avg_time_per_question"`
	AnsweredCount      int        `json:"answered_count"`
	LastActivityAt     *time.Time `json:"last_activity_at,omitempty"`
	JoinedAt           time.Time  `json:"joined_at"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether a summary has been recorded.
func (p *Participant) Finished() bool {
	return p.FinishedAt != nil
}

// Summary is the terminal result of a session.
type Summary struct {
	RoomID             int64      `json:"room_id"`
	StudentID          uuid.UUID  `json:"student_id"`
	TotalAnswered      int        `json:"total_answered"`
	TotalCorrect       int        `json:"total_correct"`
	TrueScore          float64    `json:"true_score"`
	ExpectationScore   *float64   `json:"expectation_score,omitempty"`
	TotalTimeSeconds   int        `json:"total_time_seconds"`
	AvgTimePerQuestion float64    `json:"avg_time_per_question"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

// SummaryOf builds a Summary from a finished participant row.
func SummaryOf(p *Participant) *Summary {
	s := &Summary{
		RoomID:             p.RoomID,
		StudentID:          p.StudentID,
		TotalAnswered:      p.TotalAnswered,
		TotalCorrect:       p.TotalCorrect,
		ExpectationScore:   p.ExpectationScore,
		TotalTimeSeconds:   p.TotalTimeSeconds,
		AvgTimePerQuestion: p.AvgTimePerQuestion,
		FinishedAt:         p.FinishedAt,
	}
	if p.TrueScore != nil {
		s.TrueScore = *p.TrueScore
	}
	return s
}
