// Package sqlite is an embedded single-file implementation of the exam
// stores, used by tests and by offline simulations.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository"
)

//go:embed schema.sql
var schema string

// Store implements the room, participant, question and answer stores on SQLite.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	last int64
}

// New opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// now returns a strictly increasing unix-nano timestamp so history order is
// stable even for answers recorded within the same clock tick.
func (s *Store) now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := time.Now().UnixNano()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func fromNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func encodeIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	raw, err := json.Marshal(ids)
	return string(raw), err
}

func decodeIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	return ids, nil
}

// ─── Rooms ───────────────────────────────────────────────────────────

const roomColumns = `id, name, keypass, mechanism, question_count, subject_id, class_level,
	topic_ids, status, created_by, created_at`

// scanRoom reads roomColumns followed by any extra destinations.
func scanRoom(row scanner, extra ...any) (*model.Room, error) {
	r := &model.Room{}
	var topics, createdBy string
	var createdAt int64
	dest := append([]any{&r.ID, &r.Name, &r.Keypass, &r.Mechanism, &r.QuestionCount, &r.SubjectID,
		&r.ClassLevel, &topics, &r.Status, &createdBy, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, translate(err)
	}
	var err error
	if r.TopicIDs, err = decodeIDs(topics); err != nil {
		return nil, err
	}
	if len(r.TopicIDs) == 0 {
		r.TopicIDs = nil
	}
	if r.CreatedBy, err = uuid.Parse(createdBy); err != nil {
		return nil, fmt.Errorf("parse created_by: %w", err)
	}
	r.CreatedAt = time.Unix(0, createdAt)
	return r, nil
}

func (s *Store) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
}

func (s *Store) GetRoomByKeypass(ctx context.Context, keypass string) (*model.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE keypass = ?`, keypass))
}

func (s *Store) CreateRoom(ctx context.Context, room *model.Room, presetIDs []int64) error {
	topics, err := encodeIDs(room.TopicIDs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	createdAt := s.now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (name, keypass, mechanism, question_count, subject_id, class_level, topic_ids, status, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		room.Name, room.Keypass, room.Mechanism, room.QuestionCount, room.SubjectID,
		room.ClassLevel, topics, room.Status, room.CreatedBy.String(), createdAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return repository.ErrDuplicateKeypass
		}
		return err
	}
	if room.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	room.CreatedAt = time.Unix(0, createdAt)

	for _, qid := range presetIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_questions (room_id, question_id) VALUES (?, ?)`, room.ID, qid); err != nil {
			return fmt.Errorf("insert room question: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateRoomStatus(ctx context.Context, id int64, status model.RoomStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteRoom removes a room; participants, presets and answers cascade.
func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListRoomsByCreator returns an instructor's rooms, newest first. LIKE is
// case-insensitive for ASCII in SQLite.
func (s *Store) ListRoomsByCreator(ctx context.Context, creatorID uuid.UUID, f model.RoomFilter) ([]model.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM rooms
		 WHERE created_by = ?1
		   AND (?2 = '' OR name LIKE '%' || ?2 || '%')
		   AND (?3 = '' OR status = ?3)
		 ORDER BY created_at DESC, id DESC`,
		creatorID.String(), f.Query, f.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func (s *Store) ListRoomQuestionIDs(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id FROM room_questions WHERE room_id = ? ORDER BY question_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─── Participants ────────────────────────────────────────────────────

const participantColumns = `room_id, student_id, question_map, total_answered, total_correct,
	true_score, expectation_score, total_time_seconds, avg_time_per_question,
	answered_count, last_activity_at, joined_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row scanner) (*model.Participant, error) {
	p := &model.Participant{}
	var (
		studentID         string
		questionMap       sql.NullString
		trueScore, expect sql.NullFloat64
		lastActivity      sql.NullInt64
		joinedAt          int64
		finishedAt        sql.NullInt64
	)
	err := row.Scan(&p.RoomID, &studentID, &questionMap, &p.TotalAnswered, &p.TotalCorrect,
		&trueScore, &expect, &p.TotalTimeSeconds, &p.AvgTimePerQuestion,
		&p.AnsweredCount, &lastActivity, &joinedAt, &finishedAt)
	if err != nil {
		return nil, translate(err)
	}
	if p.StudentID, err = uuid.Parse(studentID); err != nil {
		return nil, fmt.Errorf("parse student_id: %w", err)
	}
	if questionMap.Valid {
		if p.QuestionMap, err = decodeIDs(questionMap.String); err != nil {
			return nil, err
		}
	}
	p.TrueScore = nullFloat(trueScore)
	p.ExpectationScore = nullFloat(expect)
	p.LastActivityAt = fromNanos(lastActivity)
	p.JoinedAt = time.Unix(0, joinedAt)
	p.FinishedAt = fromNanos(finishedAt)
	return p, nil
}

func (s *Store) GetParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) (*model.Participant, error) {
	return scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM room_participants WHERE room_id = ? AND student_id = ?`,
		roomID, studentID.String()))
}

func (s *Store) JoinParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) (*model.Participant, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_participants (room_id, student_id, joined_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (room_id, student_id) DO NOTHING`,
		roomID, studentID.String(), s.now())
	if err != nil {
		return nil, err
	}
	return s.GetParticipant(ctx, roomID, studentID)
}

// DeleteParticipant removes a student from a room; their answers cascade.
func (s *Store) DeleteParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM room_participants WHERE room_id = ? AND student_id = ?`, roomID, studentID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) CountAnswers(ctx context.Context, roomID int64, studentID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM student_answers WHERE room_id = ? AND student_id = ?`,
		roomID, studentID.String()).Scan(&n)
	return n, err
}

func (s *Store) ListJoinedRooms(ctx context.Context, studentID uuid.UUID) ([]model.JoinedRoom, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.name, r.keypass, r.mechanism, r.question_count, r.subject_id, r.class_level,
		        r.topic_ids, r.status, r.created_by, r.created_at,
		        p.joined_at, p.finished_at IS NOT NULL
		 FROM room_participants p
		 JOIN rooms r ON r.id = p.room_id
		 WHERE p.student_id = ?
		 ORDER BY p.joined_at DESC, r.id DESC`, studentID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.JoinedRoom
	for rows.Next() {
		var joinedAt int64
		var finished bool
		room, err := scanRoom(rows, &joinedAt, &finished)
		if err != nil {
			return nil, err
		}
		out = append(out, model.JoinedRoom{Room: *room, JoinedAt: time.Unix(0, joinedAt), Finished: finished})
	}
	return out, rows.Err()
}

func (s *Store) SaveQuestionMap(ctx context.Context, roomID int64, studentID uuid.UUID, questionMap []int64) error {
	raw, err := encodeIDs(questionMap)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE room_participants SET question_map = ? WHERE room_id = ? AND student_id = ?`,
		raw, roomID, studentID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateParticipantSummary(ctx context.Context, roomID int64, studentID uuid.UUID, sum *model.Summary) (*model.Participant, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE room_participants
		 SET total_answered = ?, total_correct = ?, true_score = ?, expectation_score = ?,
		     total_time_seconds = ?, avg_time_per_question = ?,
		     finished_at = COALESCE(finished_at, ?)
		 WHERE room_id = ? AND student_id = ?`,
		sum.TotalAnswered, sum.TotalCorrect, sum.TrueScore, sum.ExpectationScore,
		sum.TotalTimeSeconds, sum.AvgTimePerQuestion, s.now(),
		roomID, studentID.String())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return s.GetParticipant(ctx, roomID, studentID)
}

func (s *Store) ListParticipants(ctx context.Context, roomID int64) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM room_participants WHERE room_id = ?
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

func (s *Store) BulkUpdateProgress(ctx context.Context, updates []repository.ProgressUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, u := range updates {
		if err := updateProgress(ctx, tx, u); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateProgress(ctx context.Context, u repository.ProgressUpdate) error {
	return updateProgress(ctx, s.db, u)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateProgress(ctx context.Context, db execer, u repository.ProgressUpdate) error {
	at := u.At.UnixNano()
	_, err := db.ExecContext(ctx,
		`UPDATE room_participants
		 SET answered_count   = MAX(answered_count, ?),
		     last_activity_at = MAX(COALESCE(last_activity_at, ?), ?)
		 WHERE room_id = ? AND student_id = ?`,
		u.AnsweredCount, at, at, u.RoomID, u.StudentID.String())
	return err
}

// ─── Questions ───────────────────────────────────────────────────────

const questionColumns = `id, topic_id, subject_id, class_level, question_text, image_url,
	option_a, option_b, option_c, option_d, option_e, cognitive_level, difficulty, correct_answer`

func scanQuestion(row scanner, q *model.Question) error {
	var image sql.NullString
	err := row.Scan(&q.ID, &q.TopicID, &q.SubjectID, &q.ClassLevel, &q.QuestionText, &image,
		&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.OptionE,
		&q.CognitiveLevel, &q.Difficulty, &q.CorrectAnswer)
	if err != nil {
		return err
	}
	if image.Valid {
		q.ImageURL = &image.String
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	q := &model.Question{}
	if err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id), q); err != nil {
		return nil, translate(err)
	}
	return q, nil
}

func (s *Store) FindPool(ctx context.Context, f model.PoolFilter) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE subject_id = ? AND class_level = ?`
	args := []any{f.SubjectID, f.ClassLevel}
	if len(f.TopicIDs) > 0 {
		query += ` AND topic_id IN (?` + strings.Repeat(", ?", len(f.TopicIDs)-1) + `)`
		for _, id := range f.TopicIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, q *model.Question) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (topic_id, subject_id, class_level, question_text, image_url,
		                        option_a, option_b, option_c, option_d, option_e,
		                        cognitive_level, difficulty, correct_answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.TopicID, q.SubjectID, q.ClassLevel, q.QuestionText, q.ImageURL,
		q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.OptionE,
		q.CognitiveLevel, q.Difficulty, q.CorrectAnswer)
	if err != nil {
		return err
	}
	q.ID, err = res.LastInsertId()
	return err
}

// ─── Answers ─────────────────────────────────────────────────────────

func (s *Store) Upsert(ctx context.Context, a *model.Answer) error {
	at := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO student_answers (room_id, student_id, question_id, student_answer, is_correct,
		                              time_taken_seconds, cognitive_level, difficulty, es_value, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (room_id, student_id, question_id) DO UPDATE
		 SET student_answer     = excluded.student_answer,
		     is_correct         = excluded.is_correct,
		     time_taken_seconds = excluded.time_taken_seconds,
		     cognitive_level    = excluded.cognitive_level,
		     difficulty         = excluded.difficulty,
		     es_value           = excluded.es_value,
		     answered_at        = excluded.answered_at`,
		a.RoomID, a.StudentID.String(), a.QuestionID, a.Response, a.IsCorrect,
		a.TimeTakenSeconds, a.CognitiveLevel, a.Difficulty, a.ESValue, at)
	if err != nil {
		return err
	}
	a.AnsweredAt = time.Unix(0, at)
	return nil
}

func (s *Store) ListHistory(ctx context.Context, roomID int64, studentID uuid.UUID) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, student_answer, is_correct, time_taken_seconds,
		        cognitive_level, COALESCE(difficulty, 1), es_value, answered_at
		 FROM student_answers
		 WHERE room_id = ? AND student_id = ?
		 ORDER BY answered_at, question_id`, roomID, studentID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []model.Answer
	for rows.Next() {
		a := model.Answer{RoomID: roomID, StudentID: studentID}
		var (
			response sql.NullString
			timeTook sql.NullInt64
			es       sql.NullFloat64
			at       int64
		)
		if err := rows.Scan(&a.QuestionID, &response, &a.IsCorrect, &timeTook,
			&a.CognitiveLevel, &a.Difficulty, &es, &at); err != nil {
			return nil, err
		}
		if response.Valid {
			a.Response = &response.String
		}
		if timeTook.Valid {
			v := int(timeTook.Int64)
			a.TimeTakenSeconds = &v
		}
		a.ESValue = nullFloat(es)
		a.AnsweredAt = time.Unix(0, at)
		history = append(history, a)
	}
	return history, rows.Err()
}
