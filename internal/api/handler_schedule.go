package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type shiftRequest struct {
	Shift string `json:"shift"`
}

type noteRequest struct {
	Text string `json:"text"`
}

// month returns the ?month= query value, defaulting to the current month.
func month(c *gin.Context) string {
	if m := c.Query("month"); m != "" {
		return m
	}
	return time.Now().Format("2006-01")
}

// GetSchedule handles GET /api/schedule?month=YYYY-MM.
func (h *Handler) GetSchedule(c *gin.Context) {
	view, err := h.roster.MonthGrid(month(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ClearSchedule handles DELETE /api/schedule?month=YYYY-MM.
func (h *Handler) ClearSchedule(c *gin.Context) {
	n, err := h.roster.ClearSchedule(c.Request.Context(), c.Query("month"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// PutShift handles PUT /api/schedule/:employee_id/:date.
func (h *Handler) PutShift(c *gin.Context) {
	var req shiftRequest
	if !h.bind(c, &req) {
		return
	}
	employeeID, date := c.Param("employee_id"), c.Param("date")
	if err := h.roster.SetShift(c.Request.Context(), employeeID, date, req.Shift); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shift": h.roster.Snapshot().ScheduleData.Get(employeeID, date)})
}

// PutNote handles PUT /api/notes/:employee_id/:date.
func (h *Handler) PutNote(c *gin.Context) {
	var req noteRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.roster.SetNote(c.Request.Context(), c.Param("employee_id"), c.Param("date"), req.Text); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStats handles GET /api/stats/:employee_id?month=YYYY-MM.
func (h *Handler) GetStats(c *gin.Context) {
	st, err := h.roster.EmployeeStats(c.Param("employee_id"), month(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetConflicts handles GET /api/conflicts?month=YYYY-MM.
func (h *Handler) GetConflicts(c *gin.Context) {
	conflicts, err := h.roster.Conflicts(month(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conflicts)
}
