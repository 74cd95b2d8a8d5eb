package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dadav/ticktick/internal/timer"
	"github.com/dadav/ticktick/internal/util"
)

// TimerHandler exposes the timer actions and the status poll. Rejected
// transitions are not HTTP errors: they come back as success=false with
// the state that blocked them.
type TimerHandler struct {
	Timer *timer.Service
}

func NewTimerHandler(svc *timer.Service) *TimerHandler {
	return &TimerHandler{Timer: svc}
}

// Status returns the live snapshot; it may auto-stop a session that has
// reached the daily cap.
func (h *TimerHandler) Status(c *gin.Context) {
	snapshot, err := h.Timer.Status()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to read timer status")
		return
	}
	util.Success(c, snapshot)
}

func (h *TimerHandler) Start(c *gin.Context) {
	h.action(c, h.Timer.Start)
}

func (h *TimerHandler) Pause(c *gin.Context) {
	h.action(c, h.Timer.Pause)
}

func (h *TimerHandler) Continue(c *gin.Context) {
	h.action(c, h.Timer.Continue)
}

func (h *TimerHandler) Stop(c *gin.Context) {
	h.action(c, h.Timer.Stop)
}

func (h *TimerHandler) Reset(c *gin.Context) {
	h.action(c, h.Timer.Reset)
}

func (h *TimerHandler) action(c *gin.Context, fn func() (timer.ActionResult, error)) {
	result, err := fn()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "timer action failed")
		return
	}
	util.Success(c, result)
}
