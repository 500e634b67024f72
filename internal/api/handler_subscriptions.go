package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint   string `json:"endpoint" binding:"required"`
	P256DH     string `json:"p256dh" binding:"required"`
	Auth       string `json:"auth" binding:"required"`
	EmployeeID string `json:"employeeId"`
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// PutSubscription handles the creation or replacement of a subscription.
// Without an employeeId the device receives manager notices.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if !h.bind(c, &req) {
		return
	}

	sub := model.PushSubscription{
		Endpoint:   strings.TrimSpace(req.Endpoint),
		P256DH:     req.P256DH,
		Auth:       req.Auth,
		EmployeeID: req.EmployeeID,
	}
	err := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "employee_id"}),
	}).Create(&sub).Error
	if err != nil {
		h.respondError(c, apperror.StorageFailure(err, "push_subscriptions"))
		return
	}

	c.Status(http.StatusCreated)
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(&model.PushSubscription{Endpoint: req.Endpoint}).Error; err != nil {
		h.respondError(c, apperror.StorageFailure(err, "push_subscriptions"))
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		h.respondError(c, apperror.RequiredField("Endpoint"))
		return
	}

	var sub model.PushSubscription
	if err := h.db.WithContext(c.Request.Context()).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.respondError(c, apperror.NotFound("subscription", endpoint))
		} else {
			h.respondError(c, apperror.StorageFailure(err, "push_subscriptions"))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"employeeId": sub.EmployeeID, "createdAt": sub.CreatedAt})
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		h.respondError(c, apperror.New("PUSH_DISABLED", "vapid keys are not configured", http.StatusServiceUnavailable))
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
