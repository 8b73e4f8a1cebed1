package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.ProgressEvent) error { return nil }

// RedisPublisher queues progress events for the progress worker.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish pushes the event onto the progress queue.
func (p *RedisPublisher) Publish(ctx context.Context, ev model.ProgressEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	return p.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, raw).Err()
}
