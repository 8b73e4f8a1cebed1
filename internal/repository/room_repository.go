package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

// RoomRepository handles room and room question data access.
type RoomRepository struct {
	pool *pgxpool.Pool
}

// NewRoomRepository creates a new RoomRepository.
func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

const roomColumns = `id, name, keypass, mechanism, question_count, subject_id, class_level,
	topic_ids, status, created_by, created_at`

func scanRoom(row pgx.Row) (*model.Room, error) {
	r := &model.Room{}
	err := row.Scan(&r.ID, &r.Name, &r.Keypass, &r.Mechanism, &r.QuestionCount, &r.SubjectID,
		&r.ClassLevel, &r.TopicIDs, &r.Status, &r.CreatedBy, &r.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

// GetRoom retrieves a room by id.
func (r *RoomRepository) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	return scanRoom(r.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

// GetRoomByKeypass retrieves a room by its join keypass.
func (r *RoomRepository) GetRoomByKeypass(ctx context.Context, keypass string) (*model.Room, error) {
	return scanRoom(r.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE keypass = $1`, keypass))
}

// CreateRoom inserts a room and its preset question list in one transaction.
func (r *RoomRepository) CreateRoom(ctx context.Context, room *model.Room, presetIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	topics := room.TopicIDs
	if topics == nil {
		topics = []int64{}
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO rooms (name, keypass, mechanism, question_count, subject_id, class_level, topic_ids, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		room.Name, room.Keypass, room.Mechanism, room.QuestionCount, room.SubjectID,
		room.ClassLevel, topics, room.Status, room.CreatedBy,
	).Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKeypass
		}
		return err
	}

	if len(presetIDs) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"room_questions"},
			[]string{"room_id", "question_id"},
			pgx.CopyFromSlice(len(presetIDs), func(i int) ([]any, error) {
				return []any{room.ID, presetIDs[i]}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert room questions: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// UpdateRoomStatus moves a room to a new lifecycle status.
func (r *RoomRepository) UpdateRoomStatus(ctx context.Context, id int64, status model.RoomStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rooms SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRoom removes a room; participants, presets and answers cascade.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRoomsByCreator returns an instructor's rooms, newest first.
func (r *RoomRepository) ListRoomsByCreator(ctx context.Context, creatorID uuid.UUID, f model.RoomFilter) ([]model.Room, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms
		 WHERE created_by = $1
		   AND ($2::text = '' OR name ILIKE '%' || $2::text || '%')
		   AND ($3::text = '' OR status = $3::text)
		 ORDER BY created_at DESC, id DESC`,
		creatorID, f.Query, f.Status)
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

// ListRoomQuestionIDs returns the preset question ids of a static room.
func (r *RoomRepository) ListRoomQuestionIDs(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id FROM room_questions WHERE room_id = $1 ORDER BY question_id`, roomID)
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
