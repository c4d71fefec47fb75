package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/rollingquote/middleware"
	"github.com/AnTengye/rollingquote/model"
)

type orderReader interface {
	Get(ctx context.Context, id string) (*model.Order, error)
}

type OrderHandler struct {
	orders orderReader
}

func NewOrderHandler(orders orderReader) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// orderView is what a client sees of its order; claim bookkeeping stays internal.
type orderView struct {
	ID                 string               `json:"id"`
	Status             model.OrderStatus    `json:"status"`
	ContactEmail       string               `json:"contact_email,omitempty"`
	Pairs              []model.LanguagePair `json:"pairs,omitempty"`
	Options            model.QuoteOptions   `json:"options"`
	TotalWords         int                  `json:"total_words"`
	AmountCents        int64                `json:"amount_cents"`
	Currency           string               `json:"currency,omitempty"`
	CheckoutSessionID  string               `json:"checkout_session_id,omitempty"`
	AmountPaidCents    *int64               `json:"amount_paid_cents,omitempty"`
	PaymentConfirmedAt *time.Time           `json:"payment_confirmed_at,omitempty"`
	ConfirmationSentAt *time.Time           `json:"confirmation_sent_at,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

func newOrderView(o *model.Order) orderView {
	return orderView{
		ID:                 o.ID,
		Status:             o.Status,
		ContactEmail:       o.ContactEmail,
		Pairs:              o.Pairs,
		Options:            o.Options,
		TotalWords:         o.TotalWords,
		AmountCents:        o.AmountCents,
		Currency:           o.Currency,
		CheckoutSessionID:  o.CheckoutSessionID,
		AmountPaidCents:    o.AmountPaidCents,
		PaymentConfirmedAt: o.PaymentConfirmedAt,
		ConfirmationSentAt: o.NotificationSentAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

// Get returns one order of the caller's tenant. Orders of other tenants are
// reported as missing.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if order.Tenant != middleware.GetTenant(c) && middleware.GetRole(c) != middleware.RoleAdmin {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, newOrderView(order))
}
