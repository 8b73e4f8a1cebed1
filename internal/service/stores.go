package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-adaptive/internal/model"
)

// QuestionRepository reads the question bank.
type QuestionRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Question, error)
	FindPool(ctx context.Context, f model.PoolFilter) ([]model.Question, error)
}

// AnswerLedger records and replays a student's answers.
type AnswerLedger interface {
	Upsert(ctx context.Context, a *model.Answer) error
	ListHistory(ctx context.Context, roomID int64, studentID uuid.UUID) ([]model.Answer, error)
}

// RoomStore reads rooms and reads/writes participant state.
type RoomStore interface {
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	GetParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) (*model.Participant, error)
	UpdateParticipantSummary(ctx context.Context, roomID int64, studentID uuid.UUID, s *model.Summary) (*model.Participant, error)
	SaveQuestionMap(ctx context.Context, roomID int64, studentID uuid.UUID, questionMap []int64) error
	ListRoomQuestionIDs(ctx context.Context, roomID int64) ([]int64, error)
}

// RoomAdminStore is the write side of the room lifecycle.
type RoomAdminStore interface {
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	GetRoomByKeypass(ctx context.Context, keypass string) (*model.Room, error)
	CreateRoom(ctx context.Context, room *model.Room, presetIDs []int64) error
	UpdateRoomStatus(ctx context.Context, id int64, status model.RoomStatus) error
	DeleteRoom(ctx context.Context, id int64) error
	GetParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) (*model.Participant, error)
	JoinParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) (*model.Participant, error)
	ListParticipants(ctx context.Context, roomID int64) ([]model.Participant, error)
	ListRoomsByCreator(ctx context.Context, creatorID uuid.UUID, f model.RoomFilter) ([]model.Room, error)
	ListJoinedRooms(ctx context.Context, studentID uuid.UUID) ([]model.JoinedRoom, error)
	DeleteParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) error
	CountAnswers(ctx context.Context, roomID int64, studentID uuid.UUID) (int, error)
}

// EventPublisher mirrors session progress to observers.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.ProgressEvent) error
}
