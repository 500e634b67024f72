package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/roster"
)

type clockRequest struct {
	LocationVerified bool `json:"locationVerified"`
}

// ListAnnouncements handles GET /api/announcements.
func (h *Handler) ListAnnouncements(c *gin.Context) {
	list := h.roster.Announcements()
	if list == nil {
		list = []model.Announcement{}
	}
	c.JSON(http.StatusOK, list)
}

// PostAnnouncement handles POST /api/announcements.
func (h *Handler) PostAnnouncement(c *gin.Context) {
	var in roster.AnnouncementInput
	if !h.bind(c, &in) {
		return
	}
	a, err := h.roster.PostAnnouncement(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// ListTimeEntries handles GET /api/time/:employee_id.
func (h *Handler) ListTimeEntries(c *gin.Context) {
	list := h.roster.TimeEntries(c.Param("employee_id"))
	if list == nil {
		list = []model.TimeEntry{}
	}
	c.JSON(http.StatusOK, list)
}

// ClockIn handles POST /api/time/:employee_id/clock_in.
func (h *Handler) ClockIn(c *gin.Context) {
	h.clock(c, h.roster.ClockIn)
}

// ClockOut handles POST /api/time/:employee_id/clock_out.
func (h *Handler) ClockOut(c *gin.Context) {
	h.clock(c, h.roster.ClockOut)
}

func (h *Handler) clock(c *gin.Context, fn func(ctx context.Context, employeeID string, locationVerified bool) (model.TimeEntry, error)) {
	var req clockRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}
	entry, err := fn(c.Request.Context(), c.Param("employee_id"), req.LocationVerified)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}
