package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dadav/ticktick/internal/stats"
	"github.com/dadav/ticktick/internal/timer"
	"github.com/dadav/ticktick/internal/util"
)

// SessionHandler serves detail views and mutations of stored sessions.
type SessionHandler struct {
	Timer *timer.Service
	Stats *stats.Service
}

func NewSessionHandler(timerSvc *timer.Service, statsSvc *stats.Service) *SessionHandler {
	return &SessionHandler{Timer: timerSvc, Stats: statsSvc}
}

type updateSessionReq struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// GetSession returns one session with its ordered pauses.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	detail, err := h.Stats.Details(id)
	if err != nil {
		if errors.Is(err, stats.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "Session not found")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load session")
		return
	}
	util.Success(c, detail)
}

// UpdateSession edits the bounds of a completed session.
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req updateSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusUnprocessableEntity, util.CodeValidation, "invalid request body")
		return
	}
	if req.StartTime == nil && req.EndTime == nil {
		util.Error(c, http.StatusUnprocessableEntity, util.CodeValidation, "nothing to update")
		return
	}

	session, err := h.Timer.UpdateSession(id, timer.UpdateSessionRequest{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeTimerError(c, err)
		return
	}
	util.Success(c, gin.H{
		"success": true,
		"message": "Session updated",
		"session": session,
	})
}

// DeleteSession removes a completed (non-current) session and its pauses.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	result, err := h.Timer.DeleteSession(id)
	if err != nil {
		writeTimerError(c, err)
		return
	}
	util.Success(c, result)
}

func sessionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusUnprocessableEntity, util.CodeValidation, "invalid session id")
		return 0, false
	}
	return uint(id), true
}

// writeTimerError maps the state machine's error kinds onto HTTP statuses.
func writeTimerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, timer.ErrNotFound):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, err.Error())
	case errors.Is(err, timer.ErrConflict):
		util.Error(c, http.StatusConflict, util.CodeConflict, err.Error())
	case errors.Is(err, timer.ErrInvalidState):
		util.Error(c, http.StatusConflict, util.CodeInvalidState, err.Error())
	case errors.Is(err, timer.ErrValidation):
		util.Error(c, http.StatusUnprocessableEntity, util.CodeValidation, err.Error())
	default:
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "session mutation failed")
	}
}
