package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, topic_id, subject_id, class_level, question_text, image_url,
	option_a, option_b, option_c, option_d, option_e, cognitive_level, difficulty, correct_answer`

func scanQuestion(row pgx.Row, q *model.Question) error {
	return row.Scan(&q.ID, &q.TopicID, &q.SubjectID, &q.ClassLevel, &q.QuestionText, &q.ImageURL,
		&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.OptionE,
		&q.CognitiveLevel, &q.Difficulty, &q.CorrectAnswer)
}

// GetByID retrieves a question by id.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	q := &model.Question{}
	err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id), q)
	if err != nil {
		return nil, translate(err)
	}
	return q, nil
}

// FindPool returns every question matching the filter, ordered by id.
func (r *QuestionRepository) FindPool(ctx context.Context, f model.PoolFilter) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + `
		FROM questions
		WHERE subject_id = $1 AND class_level = $2`
	args := []any{f.SubjectID, f.ClassLevel}
	if len(f.TopicIDs) > 0 {
		args = append(args, f.TopicIDs)
		query += fmt.Sprintf(" AND topic_id = ANY($%d)", len(args))
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (topic_id, subject_id, class_level, question_text, image_url,
		                        option_a, option_b, option_c, option_d, option_e,
		                        cognitive_level, difficulty, correct_answer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		q.TopicID, q.SubjectID, q.ClassLevel, q.QuestionText, q.ImageURL,
		q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.OptionE,
		q.CognitiveLevel, q.Difficulty, q.CorrectAnswer,
	).Scan(&q.ID)
}
