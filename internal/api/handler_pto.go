package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/roster"
)

type denyRequest struct {
	Reason string `json:"reason"`
}

// ListPTO handles GET /api/pto?status=pending.
func (h *Handler) ListPTO(c *gin.Context) {
	reqs := h.roster.PTORequests(c.Query("status"))
	if reqs == nil {
		reqs = []model.PTORequest{}
	}
	c.JSON(http.StatusOK, reqs)
}

// SubmitPTO handles POST /api/pto.
func (h *Handler) SubmitPTO(c *gin.Context) {
	var in roster.PTOInput
	if !h.bind(c, &in) {
		return
	}
	req, err := h.roster.SubmitPTO(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ApprovePTO handles POST /api/pto/:id/approve.
func (h *Handler) ApprovePTO(c *gin.Context) {
	req, err := h.roster.ApprovePTO(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// DenyPTO handles POST /api/pto/:id/deny.
func (h *Handler) DenyPTO(c *gin.Context) {
	var body denyRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &body) {
		return
	}
	req, err := h.roster.DenyPTO(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
