package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
)

// SessionRequest describes a single-line-item checkout session.
type SessionRequest struct {
	OrderID       string
	CustomerEmail string
	Description   string
	AmountCents   int64
	Currency      string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the created session as far as callers care.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway is the payment processor capability.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*CheckoutSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	// VerifyEvent authenticates a raw webhook payload against its signature header.
	VerifyEvent(payload []byte, signatureHeader string) (*model.PaymentEvent, error)
}

// StripeGateway implements PaymentGateway on Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	productName   string
}

// NewStripeGateway creates the gateway. backends may be nil to use Stripe's
// public API endpoints.
func NewStripeGateway(cfg config.StripeConfig, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		productName:   cfg.ProductName,
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(g.productName),
						Description: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, model.Upstream("create checkout session", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return model.Upstream("expire checkout session", err)
	}
	return nil
}

func (g *StripeGateway) VerifyEvent(payload []byte, signatureHeader string) (*model.PaymentEvent, error) {
	if signatureHeader == "" {
		return nil, fmt.Errorf("missing signature header: %w", model.ErrSignatureVerification)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSignatureVerification, err)
	}

	out := &model.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if !out.Confirms() {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		out.Malformed = true
		return out, nil
	}
	out.SessionID = cs.ID
	out.AmountTotal = cs.AmountTotal
	out.Currency = string(cs.Currency)
	out.Metadata = cs.Metadata
	out.Paid = cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
		out.CustomerEmail = cs.CustomerDetails.Email
	} else {
		out.CustomerEmail = cs.CustomerEmail
	}
	return out, nil
}
