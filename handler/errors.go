package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/middleware"
	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/logger"
)

// respondError maps a service error onto an HTTP response. Only messages we
// wrote ourselves reach the client; everything else is logged and replaced.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	_ = c.Error(err)

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Errors})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	case errors.Is(err, model.ErrUnsupportedLanguagePair):
		logger.Info(ctx, "unsupported language pair", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unsupported language pair"})
	case errors.Is(err, model.ErrUnsupportedFormat):
		// parser errors carry library internals
		logger.Warn(ctx, "unreadable upload", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unsupported or unreadable file format"})
	case errors.Is(err, model.ErrSignatureVerification):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
	case errors.Is(err, model.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, model.ErrNotPaid):
		c.JSON(http.StatusConflict, gin.H{"error": "Order is not paid"})
	case errors.Is(err, model.ErrAlreadyNotified):
		c.JSON(http.StatusConflict, gin.H{"error": "Confirmation already sent"})
	case errors.Is(err, model.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Order cannot be changed in its current state"})
	case errors.Is(err, model.ErrUpstreamUnavailable):
		logger.Error(ctx, "upstream unavailable", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "A required service is unavailable, please retry",
			"request_id": middleware.GetRequestID(c),
		})
	default:
		logger.Error(ctx, "unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"request_id": middleware.GetRequestID(c),
		})
	}
}
