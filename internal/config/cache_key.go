package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuestionKey returns the cache key for a single question
func (r *CacheKeyStruct) QuestionKey(questionID int64) string {
	return fmt.Sprintf("question:%d", questionID)
}

// PoolKey returns the cache key for a filtered question pool
func (r *CacheKeyStruct) PoolKey(subjectID int64, classLevel string, topics []int64) string {
	return fmt.Sprintf("pool:%d:%s:%v", subjectID, classLevel, topics)
}

// RoomMonitorChannel returns the Redis PubSub channel name for a room monitor
func (r *CacheKeyStruct) RoomMonitorChannel(roomID int64) string {
	return fmt.Sprintf("room:%d:monitor", roomID)
}

var CacheKey = NewCacheKeyStruct()
