package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository"
	"github.com/stemsi/exstem-adaptive/internal/selection"
)

const (
	keypassAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keypassLength   = 8
	keypassAttempts = 5
)

// RoomService handles the room lifecycle: creation, status changes, joining.
type RoomService struct {
	store     RoomAdminStore
	questions QuestionRepository
	selector  *selection.Selector
	log       zerolog.Logger
}

// NewRoomService creates a new RoomService.
func NewRoomService(store RoomAdminStore, questions QuestionRepository, selector *selection.Selector, log zerolog.Logger) *RoomService {
	return &RoomService{
		store:     store,
		questions: questions,
		selector:  selector,
		log:       log.With().Str("component", "room_service").Logger(),
	}
}

// CreateRoom stores a new room in the preparing state under a fresh keypass.
// Static rooms also get their preset question list drawn from the pool.
func (s *RoomService) CreateRoom(ctx context.Context, instructorID uuid.UUID, req model.CreateRoomRequest) (*model.Room, error) {
	mechanism := model.Mechanism(req.Mechanism)
	if !mechanism.Valid() {
		return nil, ErrUnknownMechanism
	}

	room := &model.Room{
		Name:          req.Name,
		Mechanism:     mechanism,
		QuestionCount: req.QuestionCount,
		SubjectID:     req.SubjectID,
		ClassLevel:    req.ClassLevel,
		TopicIDs:      req.TopicIDs,
		Status:        model.RoomStatusPreparing,
		CreatedBy:     instructorID,
	}

	var pool []model.Question
	if mechanism == model.MechanismStatic {
		var err error
		pool, err = s.questions.FindPool(ctx, room.PoolFilter())
		if err != nil {
			return nil, fmt.Errorf("find pool: %w", err)
		}
		if len(pool) < room.QuestionCount {
			return nil, ErrInsufficientQuestions
		}
	}

	for attempt := 1; ; attempt++ {
		keypass, err := generateKeypass()
		if err != nil {
			return nil, fmt.Errorf("generate keypass: %w", err)
		}
		room.Keypass = keypass

		var preset []int64
		if mechanism == model.MechanismStatic {
			preset = s.selector.Preset(keypass, pool, room.QuestionCount)
		}

		err = s.store.CreateRoom(ctx, room, preset)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateKeypass) || attempt == keypassAttempts {
			return nil, fmt.Errorf("create room: %w", err)
		}
	}

	s.log.Info().
		Int64("room_id", room.ID).
		Str("mechanism", string(room.Mechanism)).
		Int("question_count", room.QuestionCount).
		Msg("room created")
	return room, nil
}

// GetRoom returns a room owned by instructorID.
func (s *RoomService) GetRoom(ctx context.Context, instructorID uuid.UUID, roomID int64) (*model.Room, error) {
	return s.owned(ctx, instructorID, roomID)
}

// UpdateStatus moves an owned room to status.
func (s *RoomService) UpdateStatus(ctx context.Context, instructorID uuid.UUID, roomID int64, status model.RoomStatus) (*model.Room, error) {
	room, err := s.owned(ctx, instructorID, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRoomStatus(ctx, roomID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("update room status: %w", err)
	}
	room.Status = status

	s.log.Info().Int64("room_id", roomID).Str("status", string(status)).Msg("room status changed")
	return room, nil
}

// DeleteRoom removes an owned room together with its participants and answers.
func (s *RoomService) DeleteRoom(ctx context.Context, instructorID uuid.UUID, roomID int64) error {
	if _, err := s.owned(ctx, instructorID, roomID); err != nil {
		return err
	}
	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// JoinRoom enrols a student through the room keypass. A student who already
// joined gets the existing participant back whatever the room status; new
// participants are only accepted while the room is preparing.
func (s *RoomService) JoinRoom(ctx context.Context, studentID uuid.UUID, keypass string) (*model.Room, *model.Participant, error) {
	room, err := s.store.GetRoomByKeypass(ctx, keypass)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		return nil, nil, fmt.Errorf("get room by keypass: %w", err)
	}

	p, err := s.store.GetParticipant(ctx, room.ID, studentID)
	switch {
	case err == nil:
		return room, p, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, nil, fmt.Errorf("get participant: %w", err)
	}

	if room.Status != model.RoomStatusPreparing {
		return nil, nil, ErrRoomNotJoinable
	}
	p, err = s.store.JoinParticipant(ctx, room.ID, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("join participant: %w", err)
	}

	s.log.Debug().Int64("room_id", room.ID).Str("student_id", studentID.String()).Msg("student joined")
	return room, p, nil
}

// ListParticipants returns the participants of an owned room.
func (s *RoomService) ListParticipants(ctx context.Context, instructorID uuid.UUID, roomID int64) ([]model.Participant, error) {
	if _, err := s.owned(ctx, instructorID, roomID); err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	if participants == nil {
		participants = []model.Participant{}
	}
	return participants, nil
}

// ListRooms returns the rooms instructorID created, newest first, narrowed by
// a name substring and a status when given.
func (s *RoomService) ListRooms(ctx context.Context, instructorID uuid.UUID, f model.RoomFilter) ([]model.Room, error) {
	rooms, err := s.store.ListRoomsByCreator(ctx, instructorID, f)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	return rooms, nil
}

// RemoveParticipant drops a student from an owned room. Their recorded answers
// are deleted with them, so a removed student who joins again starts over.
func (s *RoomService) RemoveParticipant(ctx context.Context, instructorID uuid.UUID, roomID int64, studentID uuid.UUID) error {
	if _, err := s.owned(ctx, instructorID, roomID); err != nil {
		return err
	}
	if err := s.store.DeleteParticipant(ctx, roomID, studentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("delete participant: %w", err)
	}

	s.log.Info().Int64("room_id", roomID).Str("student_id", studentID.String()).Msg("participant removed")
	return nil
}

// LeaveRoom withdraws a student from a room they joined. It is refused once
// the student has answered anything or finished.
func (s *RoomService) LeaveRoom(ctx context.Context, studentID uuid.UUID, roomID int64) error {
	p, err := s.store.GetParticipant(ctx, roomID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotEnrolled
		}
		return fmt.Errorf("get participant: %w", err)
	}
	if p.FinishedAt != nil {
		return ErrLeaveNotAllowed
	}
	n, err := s.store.CountAnswers(ctx, roomID, studentID)
	if err != nil {
		return fmt.Errorf("count answers: %w", err)
	}
	if n > 0 {
		return ErrLeaveNotAllowed
	}

	if err := s.store.DeleteParticipant(ctx, roomID, studentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotEnrolled
		}
		return fmt.Errorf("delete participant: %w", err)
	}

	s.log.Debug().Int64("room_id", roomID).Str("student_id", studentID.String()).Msg("student left")
	return nil
}

// ListMyRooms returns the rooms studentID has joined, latest join first.
func (s *RoomService) ListMyRooms(ctx context.Context, studentID uuid.UUID) ([]model.JoinedRoom, error) {
	rooms, err := s.store.ListJoinedRooms(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list joined rooms: %w", err)
	}
	if rooms == nil {
		rooms = []model.JoinedRoom{}
	}
	return rooms, nil
}

func (s *RoomService) owned(ctx context.Context, instructorID uuid.UUID, roomID int64) (*model.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	if room.CreatedBy != instructorID {
		return nil, ErrNotRoomOwner
	}
	return room, nil
}

func generateKeypass() (string, error) {
	buf := make([]byte, keypassLength)
	limit := big.NewInt(int64(len(keypassAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = keypassAlphabet[n.Int64()]
	}
	return string(buf), nil
}
