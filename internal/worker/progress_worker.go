package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/metrics"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository"
)

const (
	ProgressBatchSize    = 50
	ProgressBatchTimeout = 2 * time.Second
	ProgressPollTimeout  = 1 * time.Second
)

// ProgressStore persists live progress rows.
type ProgressStore interface {
	BulkUpdateProgress(ctx context.Context, updates []repository.ProgressUpdate) error
	UpdateProgress(ctx context.Context, u repository.ProgressUpdate) error
}

// Queue is the slice of the Redis client the worker needs. *redis.Client
// satisfies it.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ProgressWorker drains progress events published by the exam engine,
// writes them to the participant rows and fans them out to room monitors.
type ProgressWorker struct {
	store ProgressStore
	queue Queue
	log   zerolog.Logger
}

func NewProgressWorker(store ProgressStore, queue Queue, log zerolog.Logger) *ProgressWorker {
	return &ProgressWorker{
		store: store,
		queue: queue,
		log:   log.With().Str("component", "progress_worker").Logger(),
	}
}

// queued keeps the raw payload next to the decoded event so a failed
// write can be requeued byte for byte.
type queued struct {
	raw   string
	event model.ProgressEvent
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ProgressWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ProgressWorker started")

	batch := make([]queued, 0, ProgressBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ProgressBatchSize || time.Since(lastFlush) >= ProgressBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.queue.BLPop(ctx, ProgressPollTimeout, config.WorkerKey.PersistProgressQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var ev model.ProgressEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				metrics.ObserveProgress("invalid", 1)
				continue
			}

			batch = append(batch, queued{raw: item[1], event: ev})
		}
	}
}

// ----------------------------------------------------------------
// Batch write with per-row fallback
// ----------------------------------------------------------------

func (w *ProgressWorker) flushSafe(ctx context.Context, batch []queued) {
	if len(batch) == 0 {
		return
	}

	updates := make([]repository.ProgressUpdate, len(batch))
	for i, q := range batch {
		updates[i] = toUpdate(q.event)
	}

	if err := w.store.BulkUpdateProgress(ctx, updates); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk progress update failed, using fallback")

		for i, q := range batch {
			if err := w.store.UpdateProgress(ctx, updates[i]); err != nil {
				w.log.Error().Err(err).
					Int64("room_id", q.event.RoomID).
					Msg("UpdateProgress failed, requeueing")
				w.queue.RPush(ctx, config.WorkerKey.PersistProgressQueue, q.raw)
				metrics.ObserveProgress("requeued", 1)
				continue
			}
			metrics.ObserveProgress("persisted", 1)
			w.notify(ctx, q)
		}
		return
	}

	metrics.ObserveProgress("persisted", len(batch))
	for _, q := range batch {
		w.notify(ctx, q)
	}
}

// notify forwards an event to the room monitor channel. Nobody listening is
// not an error.
func (w *ProgressWorker) notify(ctx context.Context, q queued) {
	channel := config.CacheKey.RoomMonitorChannel(q.event.RoomID)
	if err := w.queue.Publish(ctx, channel, q.raw).Err(); err != nil {
		w.log.Warn().Err(err).Str("channel", channel).Msg("monitor publish failed")
	}
}

func toUpdate(ev model.ProgressEvent) repository.ProgressUpdate {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return repository.ProgressUpdate{
		RoomID:        ev.RoomID,
		StudentID:     ev.StudentID,
		AnsweredCount: ev.AnsweredCount,
		At:            at,
	}
}
