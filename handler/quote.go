package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/middleware"
	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/service"
)

type quoteBuilder interface {
	Build(ctx context.Context, tenant string, req service.QuoteRequest) (*model.Quote, error)
}

type QuoteHandler struct {
	quotes quoteBuilder
}

func NewQuoteHandler(quotes quoteBuilder) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

type QuoteRequest struct {
	OrderID      string                   `json:"orderId"`
	Files        []model.UploadedDocument `json:"files"`
	Pairs        []model.LanguagePair     `json:"pairs"`
	Options      model.QuoteOptions       `json:"options"`
	AllowPartial bool                     `json:"allowPartial"`
}

// Create builds a quote for previously uploaded files. A quote that cannot be
// priced is still returned in the body, next to the reason.
func (h *QuoteHandler) Create(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	q, err := h.quotes.Build(c.Request.Context(), middleware.GetTenant(c), service.QuoteRequest{
		OrderID:      req.OrderID,
		Documents:    req.Files,
		Pairs:        req.Pairs,
		Options:      req.Options,
		AllowPartial: req.AllowPartial,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	switch q.Status {
	case model.QuoteStatusPriced:
		c.JSON(http.StatusOK, q)
	case model.QuoteStatusScanned:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "A PDF appears to be a scanned image and needs OCR before it can be quoted",
			"quote": q,
		})
	default:
		status := http.StatusUnprocessableEntity
		if onlyUpstreamFailures(q) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error": "Some files could not be analyzed",
			"quote": q,
		})
	}
}

// onlyUpstreamFailures reports whether every failed file failed for a
// reason a retry could fix.
func onlyUpstreamFailures(q *model.Quote) bool {
	failed := q.FailedFiles()
	if len(failed) == 0 {
		return false
	}
	for _, f := range failed {
		if !errors.Is(f.Err, model.ErrUpstreamUnavailable) {
			return false
		}
	}
	return true
}
