package service

import (
	"errors"
	"fmt"
)

// Error families. Every sentinel below wraps exactly one of them, so callers
// can branch with errors.Is on the family alone.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

var (
	ErrRoomNotFound        = fmt.Errorf("room %w", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	ErrInvalidQuestion     = fmt.Errorf("question %w", ErrNotFound)
	ErrResultNotFound      = fmt.Errorf("result %w", ErrNotFound)
)

var (
	ErrRoomNotActive         = fmt.Errorf("%w: room is not active", ErrInvalidState)
	ErrNotEnrolled           = fmt.Errorf("%w: student is not enrolled in this room", ErrInvalidState)
	ErrUnknownMechanism      = fmt.Errorf("%w: unknown room mechanism", ErrInvalidState)
	ErrQuestionNotInSession  = fmt.Errorf("%w: question is not part of this session", ErrInvalidState)
	ErrNavigationNotAllowed  = fmt.Errorf("%w: free navigation is not available for rule-based rooms", ErrInvalidState)
	ErrRoomNotJoinable       = fmt.Errorf("%w: room is not accepting participants", ErrInvalidState)
	ErrInsufficientQuestions = fmt.Errorf("%w: not enough questions in the pool", ErrInvalidState)
	ErrNotRoomOwner          = fmt.Errorf("%w: not the owner of this room", ErrInvalidState)
	ErrLeaveNotAllowed       = fmt.Errorf("%w: cannot leave a room after answering", ErrInvalidState)
)
