package model

import (
	"strings"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
)

// Question is a multiple-choice item from the question bank.
type Question struct {
	ID             int64                   `json:"id"`
	TopicID        int64                   `json:"topic_id"`
	SubjectID      int64                   `json:"subject_id"`
	ClassLevel     string                  `json:"class_level"`
	QuestionText   string                  `json:"question_text"`
	ImageURL       *string                 `json:"image_url,omitempty"`
	OptionA        string                  `json:"option_a"`
	OptionB        string                  `json:"option_b"`
	OptionC        string                  `json:"option_c"`
	OptionD        string                  `json:"option_d"`
	OptionE        string                  `json:"option_e"`
	CognitiveLevel adaptive.CognitiveLevel `json:"cognitive_level"`
	Difficulty     adaptive.Difficulty     `json:"difficulty"`
	CorrectAnswer  string                  `json:"correct_answer"`
}

// IsCorrect compares a response to the answer key, ignoring case and
// surrounding whitespace. An empty response is never correct.
func (q *Question) IsCorrect(response *string) bool {
	if response == nil {
		return false
	}
	got := strings.ToUpper(strings.TrimSpace(*response))
	if got == "" {
		return false
	}
	return got == strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
}

// ForStudent strips the answer key.
func (q *Question) ForStudent() *QuestionForStudent {
	return &QuestionForStudent{
		ID:             q.ID,
		TopicID:        q.TopicID,
		QuestionText:   q.QuestionText,
		ImageURL:       q.ImageURL,
		OptionA:        q.OptionA,
		OptionB:        q.OptionB,
		OptionC:        q.OptionC,
		OptionD:        q.OptionD,
		OptionE:        q.OptionE,
		CognitiveLevel: q.CognitiveLevel,
		Difficulty:     q.Difficulty,
	}
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID             int64                   `json:"id"`
	TopicID        int64                   `json:"topic_id"`
	QuestionText   string                  `json:"question_text"`
	ImageURL       *string                 `json:"image_url,omitempty"`
	OptionA        string                  `json:"option_a"`
	OptionB        string                  `json:"option_b"`
	OptionC        string                  `json:"option_c"`
	OptionD        string                  `json:"option_d"`
	OptionE        string                  `json:"option_e"`
	CognitiveLevel adaptive.CognitiveLevel `json:"cognitive_level"`
	Difficulty     adaptive.Difficulty     `json:"difficulty"`
}

// PoolFilter narrows the question bank to a room's eligible pool.
// An empty TopicIDs means every topic of the subject.
type PoolFilter struct {
	SubjectID  int64
	ClassLevel string
	TopicIDs   []int64
}
