package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/dataaccess"
	"schedule-sync-backend/internal/localstore"
	"schedule-sync-backend/internal/monitor"
	"schedule-sync-backend/internal/roster"
	"schedule-sync-backend/internal/syncqueue"
)

// SyncControl is the part of the data access facade the API exposes.
type SyncControl interface {
	Status() dataaccess.Status
	Drain(ctx context.Context) (syncqueue.Result, error)
	RestoreLocal(replace func() error) error
}

// LocalVault is the raw side of the local store.
type LocalVault interface {
	Stats() (localstore.Stats, error)
	Export() (*localstore.Backup, error)
	Import(b *localstore.Backup) error
}

// Connectivity is the part of the monitor the API exposes.
type Connectivity interface {
	Status() monitor.Status
	LastProbe() time.Time
	Hint(online bool)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	roster  *roster.Service
	sync    SyncControl
	conn    Connectivity
	local   LocalVault
	db      *gorm.DB
	webpush *webpush.Options
	log     logrus.FieldLogger
}

// NewHandler creates a new API handler. db holds push subscriptions.
func NewHandler(svc *roster.Service, sync SyncControl, conn Connectivity, local LocalVault, db *gorm.DB, webpushOptions *webpush.Options, log logrus.FieldLogger) *Handler {
	return &Handler{
		roster:  svc,
		sync:    sync,
		conn:    conn,
		local:   local,
		db:      db,
		webpush: webpushOptions,
		log:     log.WithField("component", "api"),
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// respondError writes err as JSON with the status its code maps to.
func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("Unhandled error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		})
		return
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

// bind decodes the JSON body into dest and reports a validation error on
// failure.
func (h *Handler) bind(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.respondError(c, apperror.Validation("invalid request body"))
		return false
	}
	return true
}
