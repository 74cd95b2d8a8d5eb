package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dadav/ticktick/internal/stats"
	"github.com/dadav/ticktick/internal/util"
	"github.com/dadav/ticktick/internal/version"
)

// StatsHandler serves the aggregated statistics API.
type StatsHandler struct {
	Stats *stats.Service
}

func NewStatsHandler(svc *stats.Service) *StatsHandler {
	return &StatsHandler{Stats: svc}
}

// Summary returns weekly/monthly totals plus the recent session list.
func (h *StatsHandler) Summary(c *gin.Context) {
	summary, err := h.Stats.Get()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to build statistics")
		return
	}
	util.Success(c, summary)
}

// Version reports the running build.
func Version(c *gin.Context) {
	util.Success(c, gin.H{"version": version.Get()})
}
