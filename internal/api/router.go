package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"schedule-sync-backend/config"
	"schedule-sync-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. Responses cached by
// rc are purged after every successful write.
func NewRouter(cfg config.ServerConfig, h *Handler, rc *mw.ResponseCache) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.Logger(h.log))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	caching := rc.Cache()

	api := r.Group("/api")
	api.Use(rateLimiter, rc.PurgeOnWrite())
	{
		api.GET("/status", h.GetStatus)
		api.GET("/dataset", caching, h.GetDataset)
		api.GET("/audit", caching, h.GetAudit)
		api.POST("/sync", h.PostSync)
		api.POST("/connectivity/hint", h.PostConnectivityHint)

		api.GET("/employees", caching, h.ListEmployees)
		api.POST("/employees", h.CreateEmployee)
		api.PUT("/employees/:id", h.UpdateEmployee)
		api.DELETE("/employees/:id", h.ArchiveEmployee)

		api.GET("/schedule", caching, h.GetSchedule)
		api.DELETE("/schedule", h.ClearSchedule)
		api.PUT("/schedule/:employee_id/:date", h.PutShift)
		api.PUT("/notes/:employee_id/:date", h.PutNote)
		api.GET("/stats/:employee_id", caching, h.GetStats)
		api.GET("/conflicts", caching, h.GetConflicts)

		api.GET("/pto", caching, h.ListPTO)
		api.POST("/pto", h.SubmitPTO)
		api.POST("/pto/:id/approve", h.ApprovePTO)
		api.POST("/pto/:id/deny", h.DenyPTO)

		api.POST("/history/undo", h.Undo)
		api.POST("/history/redo", h.Redo)

		api.GET("/backup", h.GetBackup)
		api.POST("/backup", h.PostBackup)
		api.GET("/local/export", h.GetLocalExport)
		api.POST("/local/import", h.PostLocalImport)

		api.GET("/announcements", caching, h.ListAnnouncements)
		api.POST("/announcements", h.PostAnnouncement)
		api.GET("/time/:employee_id", h.ListTimeEntries)
		api.POST("/time/:employee_id/clock_in", h.ClockIn)
		api.POST("/time/:employee_id/clock_out", h.ClockOut)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	if cfg.StaticDir != "" {
		if _, err := os.Stat(cfg.StaticDir); err == nil {
			files := http.FileServer(http.Dir(cfg.StaticDir))
			r.NoRoute(func(c *gin.Context) {
				if strings.HasPrefix(c.Request.URL.Path, "/api/") {
					c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "no such endpoint"})
					return
				}
				files.ServeHTTP(c.Writer, c.Request)
			})
		} else {
			h.log.WithField("dir", cfg.StaticDir).Warn("Static directory not found; serving API only")
		}
	}

	return r
}
