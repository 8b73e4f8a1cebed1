package websocket

import "github.com/stemsi/exstem-adaptive/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart  Action = "start"
	ActionAnswer Action = "answer"
	ActionFinish Action = "finish"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to submit (or skip, with no answer)
// one question.
type AnswerRequest struct {
	Action           Action  `json:"action"`
	QuestionID       int64   `json:"question_id"`
	Answer           *string `json:"answer"`
	TimeTakenSeconds *int    `json:"time_taken_seconds"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventOutcome Event = "outcome"
	EventSummary Event = "summary"
	EventPong    Event = "pong"
)

// OutcomeResponse carries the next question or the end of the session.
type OutcomeResponse struct {
	Event   Event          `json:"event"`
	Outcome *model.Outcome `json:"outcome"`
}

type SummaryResponse struct {
	Event   Event          `json:"event"`
	Summary *model.Summary `json:"summary"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
