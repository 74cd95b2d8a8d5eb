package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dadav/ticktick/internal/config"
	"github.com/dadav/ticktick/internal/handler"
	"github.com/dadav/ticktick/internal/middleware"
	"github.com/dadav/ticktick/internal/stats"
	"github.com/dadav/ticktick/internal/timer"
	"github.com/dadav/ticktick/internal/version"
)

// Setup configures the Gin engine, templates and static resources.
func Setup(cfg *config.Config, db *gorm.DB, log zerolog.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log), gin.Recovery())

	// static files and templates
	r.Static("/static", "./web/static")
	r.LoadHTMLGlob("web/templates/*")

	accountingCfg := cfg.Accounting()
	timerSvc := timer.New(db, accountingCfg, log)
	statsSvc := stats.New(db, accountingCfg)

	// pages
	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", gin.H{
			"title":       "TickTick - Timer",
			"active_page": "timer",
			"version":     version.Get(),
		})
	})
	r.GET("/statistics", func(c *gin.Context) {
		summary, err := statsSvc.Get()
		if err != nil {
			c.HTML(http.StatusInternalServerError, "statistics.html", gin.H{
				"title":   "TickTick - Statistics",
				"version": version.Get(),
			})
			return
		}
		c.HTML(http.StatusOK, "statistics.html", gin.H{
			"title":       "TickTick - Statistics",
			"active_page": "statistics",
			"stats":       summary,
			"version":     version.Get(),
		})
	})

	// ====== API ======
	api := r.Group("/api")

	timerHandler := handler.NewTimerHandler(timerSvc)
	api.GET("/status", timerHandler.Status)
	api.POST("/start", timerHandler.Start)
	api.POST("/pause", timerHandler.Pause)
	api.POST("/continue", timerHandler.Continue)
	api.POST("/stop", timerHandler.Stop)
	api.POST("/reset", timerHandler.Reset)

	sessionHandler := handler.NewSessionHandler(timerSvc, statsSvc)
	api.GET("/sessions/:id", sessionHandler.GetSession)
	api.PUT("/sessions/:id", sessionHandler.UpdateSession)
	api.DELETE("/sessions/:id", sessionHandler.DeleteSession)

	statsHandler := handler.NewStatsHandler(statsSvc)
	api.GET("/statistics/summary", statsHandler.Summary)

	exportHandler := handler.NewExportHandler(statsSvc, accountingCfg)
	api.GET("/export/csv", exportHandler.ExportCSV)
	api.GET("/export/xlsx", exportHandler.ExportXLSX)

	api.GET("/version", handler.Version)

	return r
}
