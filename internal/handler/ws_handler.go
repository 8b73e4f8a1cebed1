package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/middleware"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
	"github.com/stemsi/exstem-adaptive/internal/validator"
	ws "github.com/stemsi/exstem-adaptive/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams an exam session over a WebSocket: the same start,
// answer and finish operations as the REST endpoints, one frame each.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/rooms/:room_id/stream
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	studentID := claims.UserID

	wsLog := h.log.With().
		Str("student_id", studentID.String()).
		Int64("room_id", roomID).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		action, raw, err := ws.ReadRequest(conn)
		if err != nil {
			if errors.Is(err, ws.ErrMalformed) {
				ws.WriteError(conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch action {
		case ws.ActionStart:
			out, err := h.sessionService.Start(ctx, studentID, roomID)
			h.reply(conn, wsLog, err, ws.OutcomeResponse{Event: ws.EventOutcome, Outcome: out})
		case ws.ActionAnswer:
			h.handleAnswer(ctx, conn, wsLog, studentID, roomID, raw)
		case ws.ActionFinish:
			sum, err := h.sessionService.Finish(ctx, studentID, roomID)
			h.reply(conn, wsLog, err, ws.SummaryResponse{Event: ws.EventSummary, Summary: sum})
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(action))
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, studentID uuid.UUID, roomID int64, raw []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.QuestionID <= 0 {
		ws.WriteError(conn, string(response.ErrInvalidPayload), "question_id is required")
		return
	}
	if req.Answer != nil && strings.TrimSpace(*req.Answer) != "" && !validator.IsAnswerOption(*req.Answer) {
		ws.WriteError(conn, string(response.ErrValidation), "answer must be one of A, B, C, D or E")
		return
	}
	if req.TimeTakenSeconds != nil && *req.TimeTakenSeconds < 0 {
		ws.WriteError(conn, string(response.ErrValidation), "time_taken_seconds must not be negative")
		return
	}

	out, err := h.sessionService.Answer(ctx, service.AnswerInput{
		StudentID:        studentID,
		RoomID:           roomID,
		QuestionID:       req.QuestionID,
		Response:         req.Answer,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	h.reply(conn, wsLog, err, ws.OutcomeResponse{Event: ws.EventOutcome, Outcome: out})
}

// reply writes payload, or the coded error when err is set.
func (h *WSHandler) reply(conn *websocket.Conn, wsLog zerolog.Logger, err error, payload interface{}) {
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			wsLog.Error().Err(err).Msg("session operation failed")
		}
		ws.WriteError(conn, string(code), response.GetMessage(code))
		return
	}
	if err := ws.WriteTyped(conn, payload); err != nil {
		wsLog.Debug().Err(err).Msg("write failed")
	}
}
