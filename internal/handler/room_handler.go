package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/middleware"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
	"github.com/stemsi/exstem-adaptive/internal/validator"
)

// RoomHandler handles instructor room management endpoints.
type RoomHandler struct {
	roomService *service.RoomService
	log         zerolog.Logger
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(roomService *service.RoomService, log zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		log:         log.With().Str("component", "room_handler").Logger(),
	}
}

// CreateRoom godoc
// POST /api/v1/instructor/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateRoomRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, room)
}

// GetRoom godoc
// GET /api/v1/instructor/rooms/:room_id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	room, err := h.roomService.GetRoom(c.Request.Context(), claims.UserID, roomID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, room)
}

// UpdateStatus godoc
// PATCH /api/v1/instructor/rooms/:room_id/status
func (h *RoomHandler) UpdateStatus(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	var req model.UpdateRoomStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	room, err := h.roomService.UpdateStatus(c.Request.Context(), claims.UserID, roomID, model.RoomStatus(req.Status))
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, room)
}

// DeleteRoom godoc
// DELETE /api/v1/instructor/rooms/:room_id
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	if err := h.roomService.DeleteRoom(c.Request.Context(), claims.UserID, roomID); err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListParticipants godoc
// GET /api/v1/instructor/rooms/:room_id/participants
func (h *RoomHandler) ListParticipants(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}

	participants, err := h.roomService.ListParticipants(c.Request.Context(), claims.UserID, roomID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"participants": participants})
}

// ListRooms godoc
// GET /api/v1/instructor/rooms?q=&status=
func (h *RoomHandler) ListRooms(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var filter model.RoomFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	rooms, err := h.roomService.ListRooms(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rooms": rooms})
}

// RemoveParticipant godoc
// DELETE /api/v1/instructor/rooms/:room_id/participants/:student_id
func (h *RoomHandler) RemoveParticipant(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	roomID, ok := paramID(c, "room_id")
	if !ok {
		return
	}
	studentID, err := uuid.Parse(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.roomService.RemoveParticipant(c.Request.Context(), claims.UserID, roomID, studentID); err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
