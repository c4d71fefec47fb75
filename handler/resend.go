package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/service"
)

type resender interface {
	Resend(ctx context.Context, req service.ResendRequest) (*model.Order, error)
}

type ResendHandler struct {
	reconciler resender
}

func NewResendHandler(reconciler resender) *ResendHandler {
	return &ResendHandler{reconciler: reconciler}
}

type ResendRequest struct {
	OrderID   string `json:"orderId"`
	SessionID string `json:"sessionId"`
	Force     bool   `json:"force"`
}

// Resend re-sends the confirmation for a paid order.
func (h *ResendHandler) Resend(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	order, err := h.reconciler.Resend(c.Request.Context(), service.ResendRequest(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                   true,
		"orderId":              order.ID,
		"confirmation_sent_at": order.NotificationSentAt,
	})
}
