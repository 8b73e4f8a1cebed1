package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/middleware"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
	"github.com/stemsi/exstem-adaptive/internal/validator"
)

// ExamHandler handles student-facing exam endpoints.
type ExamHandler struct {
	sessionService *service.ExamSessionService
	roomService    *service.RoomService
	log            zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessionService *service.ExamSessionService, roomService *service.RoomService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		sessionService: sessionService,
		roomService:    roomService,
		log:            log.With().Str("component", "exam_handler").Logger(),
	}
}

// JoinRoom godoc
// POST /api/v1/student/rooms/join
// Enrols the student in the room matching the keypass (idempotent).
func (h *ExamHandler) JoinRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.JoinRoomRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	room, participant, err := h.roomService.JoinRoom(c.Request.Context(), claims.UserID, req.Keypass)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"room_id":     room.ID,
		"name":        room.Name,
		"mechanism":   room.Mechanism,
		"status":      room.Status,
		"participant": participant,
	})
}

// ListMyRooms godoc
// GET /api/v1/student/rooms
func (h *ExamHandler) ListMyRooms(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	rooms, err := h.roomService.ListMyRooms(c.Request.Context(), claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rooms": rooms})
}

// LeaveRoom godoc
// POST /api/v1/student/rooms/:room_id/leave
// Only allowed before the first answer.
func (h *ExamHandler) LeaveRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	if err := h.roomService.LeaveRoom(c.Request.Context(), claims.UserID, roomID); err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// Start godoc
// POST /api/v1/student/rooms/:room_id/start
// Opens or resumes the session and returns the question to show.
func (h *ExamHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	out, err := h.sessionService.Start(c.Request.Context(), claims.UserID, roomID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// Answer godoc
// POST /api/v1/student/rooms/:room_id/answer
// Records one answer and returns the next question or the end of the session.
func (h *ExamHandler) Answer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.sessionService.Answer(c.Request.Context(), service.AnswerInput{
		StudentID:        claims.UserID,
		RoomID:           roomID,
		QuestionID:       req.QuestionID,
		Response:         req.Answer,
		TimeTakenSeconds: req.TimeTakenSeconds,
	})
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// GetQuestion godoc
// GET /api/v1/student/rooms/:room_id/questions/:question_id
// Free navigation inside a static or random session.
func (h *ExamHandler) GetQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	questionID, ok := paramID(c, "question_id")
	if !ok {
		return
	}

	view, err := h.sessionService.Question(c.Request.Context(), claims.UserID, roomID, questionID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Finish godoc
// POST /api/v1/student/rooms/:room_id/finish
func (h *ExamHandler) Finish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	summary, err := h.sessionService.Finish(c.Request.Context(), claims.UserID, roomID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// Result godoc
// GET /api/v1/student/rooms/:room_id/result
func (h *ExamHandler) Result(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	summary, err := h.sessionService.Result(c.Request.Context(), claims.UserID, roomID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}
