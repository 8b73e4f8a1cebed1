package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/middleware"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	rdb         *redis.Client
	roomService *service.RoomService
	log         zerolog.Logger
}

func NewMonitorHandler(rdb *redis.Client, roomService *service.RoomService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:         rdb,
		roomService: roomService,
		log:         log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorRoomSSE godoc
// GET /api/v1/instructor/rooms/:room_id/monitor
func (h *MonitorHandler) MonitorRoomSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	room, err := h.roomService.GetRoom(reqCtx, claims.UserID, roomID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, claims, room)

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.RoomMonitorChannel(roomID))
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refresh queries until the first progress event arrives
	active := false

	h.log.Info().Int64("room_id", roomID).Msg("Instructor attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Int64("room_id", roomID).Msg("Instructor disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Progress events are forwarded as published
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendRefresh(c, reqCtx, claims, roomID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// monitorStats counts participants by session state.
type monitorStats struct {
	TotalJoined     int `json:"total_joined"`
	TotalInProgress int `json:"total_in_progress"`
	TotalFinished   int `json:"total_finished"`
}

func statsOf(participants []model.Participant) monitorStats {
	st := monitorStats{TotalJoined: len(participants)}
	for i := range participants {
		switch {
		case participants[i].Finished():
			st.TotalFinished++
		case participants[i].AnsweredCount > 0:
			st.TotalInProgress++
		}
	}
	return st
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, ctx context.Context, claims *service.Claims, room *model.Room) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	participants, err := h.roomService.ListParticipants(fetchCtx, claims.UserID, room.ID)
	if err != nil {
		h.log.Warn().Err(err).Int64("room_id", room.ID).Msg("Failed to load participants for snapshot")
		participants = []model.Participant{}
	}

	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"room":         room,
			"stats":        statsOf(participants),
			"participants": participants,
		},
	})
	c.Writer.Flush()
}

func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, claims *service.Claims, roomID int64) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	participants, err := h.roomService.ListParticipants(ctx, claims.UserID, roomID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch participants for refresh")
		return
	}

	progress := make([]gin.H, 0, len(participants))
	for _, p := range participants {
		progress = append(progress, gin.H{
			"student_id":       p.StudentID,
			"answered_count":   p.AnsweredCount,
			"last_activity_at": p.LastActivityAt,
			"finished":         p.Finished(),
			"true_score":       p.TrueScore,
		})
	}

	c.SSEvent("message", gin.H{
		"type":         "refresh",
		"stats":        statsOf(participants),
		"participants": progress,
	})
	c.Writer.Flush()
}
