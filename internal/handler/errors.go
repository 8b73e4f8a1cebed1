package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
)

// errorMapping pairs a service sentinel with its HTTP status and API code.
type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// Specific sentinels first; the two families catch anything added later.
var serviceErrors = []errorMapping{
	{service.ErrRoomNotFound, http.StatusNotFound, response.ErrRoomNotFound},
	{service.ErrInvalidQuestion, http.StatusNotFound, response.ErrInvalidQuestion},
	{service.ErrResultNotFound, http.StatusNotFound, response.ErrResultNotFound},
	{service.ErrParticipantNotFound, http.StatusNotFound, response.ErrParticipantNotFound},
	{service.ErrLeaveNotAllowed, http.StatusConflict, response.ErrLeaveNotAllowed},
	{service.ErrRoomNotActive, http.StatusConflict, response.ErrRoomNotActive},
	{service.ErrRoomNotJoinable, http.StatusConflict, response.ErrRoomNotJoinable},
	{service.ErrNotEnrolled, http.StatusForbidden, response.ErrNotEnrolled},
	{service.ErrNotRoomOwner, http.StatusForbidden, response.ErrNotRoomOwner},
	{service.ErrQuestionNotInSession, http.StatusBadRequest, response.ErrQuestionNotInSession},
	{service.ErrNavigationNotAllowed, http.StatusConflict, response.ErrNavigationNotAllowed},
	{service.ErrInsufficientQuestions, http.StatusUnprocessableEntity, response.ErrInsufficientQuestions},
	{service.ErrUnknownMechanism, http.StatusConflict, response.ErrUnknownMechanism},
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrInvalidState, http.StatusConflict, response.ErrInvalidState},
}

// classify maps a service error to its HTTP status and API code.
func classify(err error) (int, response.ErrCode) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failWith writes the error envelope for err, logging anything unexpected.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("request failed")
	}
	response.Fail(c, status, code)
}

// paramID parses a positive int64 path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
