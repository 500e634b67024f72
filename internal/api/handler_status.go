package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"schedule-sync-backend/internal/dataaccess"
	"schedule-sync-backend/internal/localstore"
	"schedule-sync-backend/internal/monitor"
	"schedule-sync-backend/internal/roster"
)

type statusResponse struct {
	Sync         dataaccess.Status `json:"sync"`
	Connectivity monitor.Status    `json:"connectivity"`
	LastProbe    *time.Time        `json:"lastProbe,omitempty"`
	Local        *localstore.Stats `json:"local,omitempty"`
	CanUndo      bool              `json:"canUndo"`
	CanRedo      bool              `json:"canRedo"`
}

type hintRequest struct {
	Online *bool `json:"online" binding:"required"`
}

type historyResponse struct {
	Changed bool `json:"changed"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(c *gin.Context) {
	resp := statusResponse{
		Sync:         h.sync.Status(),
		Connectivity: h.conn.Status(),
		CanUndo:      h.roster.CanUndo(),
		CanRedo:      h.roster.CanRedo(),
	}
	if lp := h.conn.LastProbe(); !lp.IsZero() {
		resp.LastProbe = &lp
	}
	if st, err := h.local.Stats(); err == nil {
		resp.Local = &st
	} else {
		h.log.WithError(err).Warn("Could not read local store stats")
	}
	c.JSON(http.StatusOK, resp)
}

// GetDataset handles GET /api/dataset.
func (h *Handler) GetDataset(c *gin.Context) {
	c.JSON(http.StatusOK, h.roster.Snapshot())
}

// GetAudit handles GET /api/audit?limit=N.
func (h *Handler) GetAudit(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		limit = 100
	}
	c.JSON(http.StatusOK, h.roster.AuditLog(limit))
}

// PostSync handles POST /api/sync. When the queue empties the working set
// is reloaded so it reflects the backend.
func (h *Handler) PostSync(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := h.sync.Drain(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(res.Remaining) == 0 && len(res.Synced) > 0 {
		if err := h.roster.Load(ctx); err != nil {
			h.log.WithError(err).Warn("Reload after sync failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"synced":    len(res.Synced),
		"remaining": len(res.Remaining),
		"rejected":  len(res.Rejected),
		"status":    h.sync.Status(),
	})
}

// Undo handles POST /api/history/undo.
func (h *Handler) Undo(c *gin.Context) {
	changed, err := h.roster.Undo(c.Request.Context())
	h.respondHistory(c, changed, err)
}

// Redo handles POST /api/history/redo.
func (h *Handler) Redo(c *gin.Context) {
	changed, err := h.roster.Redo(c.Request.Context())
	h.respondHistory(c, changed, err)
}

func (h *Handler) respondHistory(c *gin.Context, changed bool, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, historyResponse{
		Changed: changed,
		CanUndo: h.roster.CanUndo(),
		CanRedo: h.roster.CanRedo(),
	})
}

// GetBackup handles GET /api/backup.
func (h *Handler) GetBackup(c *gin.Context) {
	b := h.roster.Export()
	c.Header("Content-Disposition", `attachment; filename="schedule-backup-`+b.Timestamp.Format("2006-01-02")+`.json"`)
	c.JSON(http.StatusOK, b)
}

// PostBackup handles POST /api/backup.
func (h *Handler) PostBackup(c *gin.Context) {
	var b roster.Backup
	if !h.bind(c, &b) {
		return
	}
	if err := h.roster.Import(c.Request.Context(), b); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLocalExport handles GET /api/local/export: every raw entry of the
// local store, sync queue included.
func (h *Handler) GetLocalExport(c *gin.Context) {
	b, err := h.local.Export()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="local-store-`+b.ExportDate.Format("2006-01-02")+`.json"`)
	c.JSON(http.StatusOK, b)
}

// PostLocalImport handles POST /api/local/import. The local store is
// replaced with the upload and the working set re-read from it.
func (h *Handler) PostLocalImport(c *gin.Context) {
	var b localstore.Backup
	if !h.bind(c, &b) {
		return
	}
	if err := h.sync.RestoreLocal(func() error { return h.local.Import(&b) }); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.roster.Reload(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostConnectivityHint handles POST /api/connectivity/hint. Clients report
// their own link changes; the monitor re-probes rather than trusting them.
func (h *Handler) PostConnectivityHint(c *gin.Context) {
	var req hintRequest
	if !h.bind(c, &req) {
		return
	}
	h.conn.Hint(*req.Online)
	c.Status(http.StatusAccepted)
}
