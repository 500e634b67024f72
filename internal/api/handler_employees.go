package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schedule-sync-backend/internal/roster"
)

// ListEmployees handles GET /api/employees.
func (h *Handler) ListEmployees(c *gin.Context) {
	includeArchived := c.Query("include_archived") == "true"
	c.JSON(http.StatusOK, h.roster.Employees(includeArchived))
}

// CreateEmployee handles POST /api/employees.
func (h *Handler) CreateEmployee(c *gin.Context) {
	var in roster.EmployeeInput
	if !h.bind(c, &in) {
		return
	}
	emp, err := h.roster.AddEmployee(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, emp)
}

// UpdateEmployee handles PUT /api/employees/:id.
func (h *Handler) UpdateEmployee(c *gin.Context) {
	var in roster.EmployeeInput
	if !h.bind(c, &in) {
		return
	}
	emp, err := h.roster.UpdateEmployee(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, emp)
}

// ArchiveEmployee handles DELETE /api/employees/:id.
func (h *Handler) ArchiveEmployee(c *gin.Context) {
	if err := h.roster.ArchiveEmployee(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
