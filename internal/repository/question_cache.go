package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

// QuestionSource is the uncached question store behind a QuestionCache.
type QuestionSource interface {
	GetByID(ctx context.Context, id int64) (*model.Question, error)
	FindPool(ctx context.Context, f model.PoolFilter) ([]model.Question, error)
}

// CacheClient is the slice of the Redis client the cache needs. *redis.Client
// satisfies it.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// QuestionCache is a Redis read-through cache in front of the question bank.
// Questions are read-only to the exam engine, so entries only expire by TTL.
// Redis failures degrade to direct reads.
type QuestionCache struct {
	src QuestionSource
	rdb CacheClient
	ttl time.Duration
	log zerolog.Logger
}

// NewQuestionCache wraps src with a cache of the given TTL.
func NewQuestionCache(src QuestionSource, rdb CacheClient, ttl time.Duration, log zerolog.Logger) *QuestionCache {
	return &QuestionCache{
		src: src,
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "question_cache").Logger(),
	}
}

// GetByID returns a question, filling the cache on a miss.
func (c *QuestionCache) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	key := config.CacheKey.QuestionKey(id)

	var q model.Question
	if c.get(ctx, key, &q) {
		return &q, nil
	}

	fresh, err := c.src.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, fresh)
	return fresh, nil
}

// FindPool returns a filtered pool, filling the cache on a miss.
func (c *QuestionCache) FindPool(ctx context.Context, f model.PoolFilter) ([]model.Question, error) {
	key := config.CacheKey.PoolKey(f.SubjectID, f.ClassLevel, f.TopicIDs)

	var pool []model.Question
	if c.get(ctx, key, &pool) {
		return pool, nil
	}

	pool, err := c.src.FindPool(ctx, f)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, pool)
	return pool, nil
}

func (c *QuestionCache) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return false
	}
	return true
}

func (c *QuestionCache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
