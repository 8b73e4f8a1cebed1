package repository

import "github.com/jackc/pgx/v5/pgxpool"

// ExamStore groups the room and participant repositories behind one value,
// which is the shape the exam services consume.
type ExamStore struct {
	*RoomRepository
	*ParticipantRepository
}

// NewExamStore creates an ExamStore over pool.
func NewExamStore(pool *pgxpool.Pool) *ExamStore {
	return &ExamStore{
		RoomRepository:        NewRoomRepository(pool),
		ParticipantRepository: NewParticipantRepository(pool),
	}
}
