package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

// ParticipantRepository handles room participant data access.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

const participantColumns = `room_id, student_id, question_map, total_answered, total_correct,
	true_score, expectation_score, total_time_seconds, avg_time_per_question,
	answered_count, last_activity_at, joined_at, finished_at`

func scanParticipant(row pgx.Row) (*model.Participant, error) {
	p := &model.Participant{}
	err := row.Scan(&p.RoomID, &p.StudentID, &p.QuestionMap, &p.TotalAnswered, &p.TotalCorrect,
		&p.TrueScore, &p.ExpectationScore, &p.TotalTimeSeconds, &p.AvgTimePerQuestion,
		&p.AnsweredCount, &p.LastActivityAt, &p.JoinedAt, &p.FinishedAt)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// GetParticipant retrieves a student's enrolment in a room.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) (*model.Participant, error) {
	return scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+`
		 FROM room_participants WHERE room_id = $1 AND student_id = $2`, roomID, studentID))
}

// JoinParticipant enrols a student. Joining twice returns the existing row.
func (r *ParticipantRepository) JoinParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) (*model.Participant, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO room_participants (room_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (room_id, student_id) DO NOTHING`, roomID, studentID)
	if err != nil {
		return nil, err
	}
	return r.GetParticipant(ctx, roomID, studentID)
}

// SaveQuestionMap stores the ordered question list of a static or random session.
func (r *ParticipantRepository) SaveQuestionMap(ctx context.Context, roomID int64, studentID uuid.UUID, questionMap []int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE room_participants SET question_map = $1
		 WHERE room_id = $2 AND student_id = $3`, questionMap, roomID, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateParticipantSummary writes the terminal summary. finished_at keeps
// the first value it was given.
func (r *ParticipantRepository) UpdateParticipantSummary(ctx context.Context, roomID int64, studentID uuid.UUID, s *model.Summary) (*model.Participant, error) {
	return scanParticipant(r.pool.QueryRow(ctx,
		`UPDATE room_participants
		 SET total_answered = $3, total_correct = $4, true_score = $5, expectation_score = $6,
		     total_time_seconds = $7, avg_time_per_question = $8,
		     finished_at = COALESCE(finished_at, NOW())
		 WHERE room_id = $1 AND student_id = $2
		 RETURNING `+participantColumns,
		roomID, studentID, s.TotalAnswered, s.TotalCorrect, s.TrueScore, s.ExpectationScore,
		s.TotalTimeSeconds, s.AvgTimePerQuestion))
}

// ListParticipants returns every participant of a room, oldest first.
func (r *ParticipantRepository) ListParticipants(ctx context.Context, roomID int64) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+participantColumns+`
		 FROM room_participants WHERE room_id = $1
		 ORDER BY joined_at, student_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeleteParticipant removes a student from a room. The student's answers go
// with it (FK cascade).
func (r *ParticipantRepository) DeleteParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM room_participants WHERE room_id = $1 AND student_id = $2`, roomID, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAnswers returns how many answer rows a student has in a room.
func (r *ParticipantRepository) CountAnswers(ctx context.Context, roomID int64, studentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_answers WHERE room_id = $1 AND student_id = $2`,
		roomID, studentID).Scan(&n)
	return n, err
}

// ListJoinedRooms returns the rooms a student is enrolled in, latest join first.
func (r *ParticipantRepository) ListJoinedRooms(ctx context.Context, studentID uuid.UUID) ([]model.JoinedRoom, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.keypass, r.mechanism, r.question_count, r.subject_id, r.class_level,
		        r.topic_ids, r.status, r.created_by, r.created_at,
		        p.joined_at, p.finished_at IS NOT NULL
		 FROM room_participants p
		 JOIN rooms r ON r.id = p.room_id
		 WHERE p.student_id = $1
		 ORDER BY p.joined_at DESC, r.id DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.JoinedRoom
	for rows.Next() {
		var j model.JoinedRoom
		if err := rows.Scan(&j.ID, &j.Name, &j.Keypass, &j.Mechanism, &j.QuestionCount, &j.SubjectID,
			&j.ClassLevel, &j.TopicIDs, &j.Status, &j.CreatedBy, &j.CreatedAt,
			&j.JoinedAt, &j.Finished); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ProgressUpdate is one live-progress row written by the progress worker.
type ProgressUpdate struct {
	RoomID        int64
	StudentID     uuid.UUID
	AnsweredCount int
	At            time.Time
}

// BulkUpdateProgress writes many progress rows in a single statement.
// Counts only move forward so a late event never rewinds a newer one.
func (r *ParticipantRepository) BulkUpdateProgress(ctx context.Context, updates []ProgressUpdate) error {
	roomIDs := make([]int64, len(updates))
	studentIDs := make([]uuid.UUID, len(updates))
	counts := make([]int32, len(updates))
	ats := make([]time.Time, len(updates))
	for i, u := range updates {
		roomIDs[i] = u.RoomID
		studentIDs[i] = u.StudentID
		counts[i] = int32(u.AnsweredCount)
		ats[i] = u.At
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE room_participants AS p
		 SET answered_count   = GREATEST(p.answered_count, u.answered_count),
		     last_activity_at = GREATEST(COALESCE(p.last_activity_at, u.at), u.at)
		 FROM UNNEST($1::bigint[], $2::uuid[], $3::int[], $4::timestamptz[])
		      AS u(room_id, student_id, answered_count, at)
		 WHERE p.room_id = u.room_id AND p.student_id = u.student_id`,
		roomIDs, studentIDs, counts, ats)
	return err
}

// UpdateProgress writes a single progress row.
func (r *ParticipantRepository) UpdateProgress(ctx context.Context, u ProgressUpdate) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE room_participants
		 SET answered_count   = GREATEST(answered_count, $3),
		     last_activity_at = GREATEST(COALESCE(last_activity_at, $4), $4)
		 WHERE room_id = $1 AND student_id = $2`,
		u.RoomID, u.StudentID, u.AnsweredCount, u.At)
	return err
}
