package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

// AnswerRepository is the response ledger.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert records an answer, overwriting any earlier answer to the same
// question in the same room.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.Answer) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO student_answers (room_id, student_id, question_id, student_answer, is_correct,
		                              time_taken_seconds, cognitive_level, difficulty, es_value, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		 ON CONFLICT (room_id, student_id, question_id) DO UPDATE
		 SET student_answer     = EXCLUDED.student_answer,
		     is_correct         = EXCLUDED.is_correct,
		     time_taken_seconds = EXCLUDED.time_taken_seconds,
		     cognitive_level    = EXCLUDED.cognitive_level,
		     difficulty         = EXCLUDED.difficulty,
		     es_value           = EXCLUDED.es_value,
		     answered_at        = EXCLUDED.answered_at
		 RETURNING answered_at`,
		a.RoomID, a.StudentID, a.QuestionID, a.Response, a.IsCorrect,
		a.TimeTakenSeconds, a.CognitiveLevel, a.Difficulty, a.ESValue,
	).Scan(&a.AnsweredAt)
}

// ListHistory returns a student's answers in a room ordered by answer time.
// Rows are unique per question so the history is already deduplicated.
func (r *AnswerRepository) ListHistory(ctx context.Context, roomID int64, studentID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT room_id, student_id, question_id, student_answer, is_correct, time_taken_seconds,
		        cognitive_level, COALESCE(difficulty, 1), es_value, answered_at
		 FROM student_answers
		 WHERE room_id = $1 AND student_id = $2
		 ORDER BY answered_at, question_id`, roomID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.RoomID, &a.StudentID, &a.QuestionID, &a.Response, &a.IsCorrect,
			&a.TimeTakenSeconds, &a.CognitiveLevel, &a.Difficulty, &a.ESValue, &a.AnsweredAt); err != nil {
			return nil, err
		}
		history = append(history, a)
	}
	return history, rows.Err()
}
