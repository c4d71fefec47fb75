package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/logger"
	"github.com/AnTengye/rollingquote/service"
)

// maxWebhookBytes bounds the raw event body read before verification.
const maxWebhookBytes = 1 << 20

type webhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (service.Outcome, error)
}

type WebhookHandler struct {
	reconciler webhookProcessor
}

func NewWebhookHandler(reconciler webhookProcessor) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandleStripe receives payment events. The body must be read raw: the
// signature covers the exact bytes sent.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if len(payload) > maxWebhookBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
		return
	}

	outcome, err := h.reconciler.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, model.ErrSignatureVerification) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}
		// Anything else is ours to fix; a 5xx makes the processor redeliver.
		logger.Error(c.Request.Context(), "webhook processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	logger.Debug(c.Request.Context(), "webhook acknowledged", "outcome", outcome)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
