package model

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind string

const (
	OutcomeContinuing OutcomeKind = "continuing"
	OutcomeDone       OutcomeKind = "done"
)

// Done reasons that are not produced by the stop evaluator.
const (
	ReasonAllAnswered   = "all questions answered"
	ReasonPoolExhausted = "pool exhausted"
	ReasonFinished      = "finished"
)

// Outcome is the result of start and answer: either the next question to
// show or the end of the session.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// Continuing.
	Question     *QuestionForStudent `json:"question,omitempty"`
	Position     int                 `json:"position,omitempty"`
	Total        int                 `json:"total,omitempty"`
	IsLast       bool                `json:"is_last,omitempty"`
	QuestionMap  []int64             `json:"question_map,omitempty"`
	AttemptedIDs []int64             `json:"attempted_ids,omitempty"`

	// Done.
	Reason  string   `json:"reason,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
}

// IsDone reports whether the session has ended.
func (o *Outcome) IsDone() bool {
	return o.Kind == OutcomeDone
}

// Continue builds a continuing outcome. isLast marks the final question the
// session expects to serve.
func Continue(q *Question, position, total int, isLast bool) *Outcome {
	return &Outcome{
		Kind:     OutcomeContinuing,
		Question: q.ForStudent(),
		Position: position,
		Total:    total,
		IsLast:   isLast,
	}
}

// Done builds a terminal outcome. summary may be nil.
func Done(reason string, summary *Summary) *Outcome {
	return &Outcome{Kind: OutcomeDone, Reason: reason, Summary: summary}
}

// QuestionView is a single navigated question with the student's previous response.
type QuestionView struct {
	Question       *QuestionForStudent `json:"question"`
	Position       int                 `json:"position"`
	Total          int                 `json:"total"`
	IsLast         bool                `json:"is_last"`
	PreviousAnswer *string             `json:"previous_answer"`
}
