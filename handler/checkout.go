package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/middleware"
	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/service"
)

type checkoutCreator interface {
	CreateCheckout(ctx context.Context, tenant string, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

type CheckoutHandler struct {
	checkout checkoutCreator
}

func NewCheckoutHandler(checkout checkoutCreator) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type CheckoutRequest struct {
	OrderID      string               `json:"orderId"`
	ContactEmail string               `json:"contactEmail"`
	Pairs        []model.LanguagePair `json:"pairs"`
	TotalWords   int                  `json:"totalWords"`
	Options      model.QuoteOptions   `json:"options"`
}

// Create opens a payment session for a confirmed quote.
func (h *CheckoutHandler) Create(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := h.checkout.CreateCheckout(c.Request.Context(), middleware.GetTenant(c), service.CheckoutRequest{
		OrderID:      req.OrderID,
		ContactEmail: req.ContactEmail,
		Pairs:        req.Pairs,
		TotalWords:   req.TotalWords,
		Options:      req.Options,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
