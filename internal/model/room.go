package model

import (
	"time"

	"github.com/google/uuid"
)

// Mechanism selects how a room delivers questions.
type Mechanism string

const (
	MechanismStatic    Mechanism = "static"
	MechanismRandom    Mechanism = "random"
	MechanismRuleBased Mechanism = "rule_based"
)

// Valid reports whether m is a known mechanism.
func (m Mechanism) Valid() bool {
	switch m {
	case MechanismStatic, MechanismRandom, MechanismRuleBased:
		return true
	}
	return false
}

// MapBased reports whether the mechanism serves a precomputed question map.
func (m Mechanism) MapBased() bool {
	return m == MechanismStatic || m == MechanismRandom
}

// RoomStatus enumerates the lifecycle states of a room.
type RoomStatus string

const (
	RoomStatusPreparing RoomStatus = "preparing"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusEnded     RoomStatus = "ended"
)

// Room is an exam instance. Everything but Status is fixed at creation.
type Room struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Keypass       string     `json:"keypass"`
	Mechanism     Mechanism  `json:"mechanism"`
	QuestionCount int        `json:"question_count"`
	SubjectID     int64      `json:"subject_id"`
	ClassLevel    string     `json:"class_level"`
	TopicIDs      []int64    `json:"topic_ids,omitempty"`
	Status        RoomStatus `json:"status"`
	CreatedBy     uuid.UUID  `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PoolFilter returns the filter that selects this room's eligible questions.
func (r *Room) PoolFilter() PoolFilter {
	return PoolFilter{SubjectID: r.SubjectID, ClassLevel: r.ClassLevel, TopicIDs: r.TopicIDs}
}

// CreateRoomRequest is the payload for creating a room.
type CreateRoomRequest struct {
	Name          string  `json:"name" binding:"required,min=3,max=255"`
	Mechanism     string  `json:"mechanism" binding:"required,oneof=static random rule_based"`
	QuestionCount int     `json:"question_count" binding:"required,min=1,max=200"`
	SubjectID     int64   `json:"subject_id" binding:"required,min=1"`
	ClassLevel    string  `json:"class_level" binding:"required,max=20"`
	TopicIDs      []int64 `json:"topic_ids" binding:"omitempty,dive,min=1"`
}

// UpdateRoomStatusRequest is the payload for moving a room through its lifecycle.
type UpdateRoomStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=preparing active ended"`
}

// JoinRoomRequest is the payload for a student joining a room by keypass.
type JoinRoomRequest struct {
	Keypass string `json:"keypass" binding:"required,len=8,alphanum,uppercase"`
}

// RoomFilter narrows an instructor's room list. Query matches the room name
// case-insensitively.
type RoomFilter struct {
	Query  string `form:"q" json:"q" binding:"omitempty,max=255"`
	Status string `form:"status" json:"status" binding:"omitempty,oneof=preparing active ended"`
}

// JoinedRoom is a room as seen from a student's list of enrolments.
type JoinedRoom struct {
	Room
	JoinedAt time.Time `json:"joined_at"`
	Finished bool      `json:"finished"`
}
