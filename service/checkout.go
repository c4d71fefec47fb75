package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/logger"
	"github.com/AnTengye/rollingquote/pkg/metrics"
	"github.com/AnTengye/rollingquote/service/pricing"
)

var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

func validOrderID(id string) bool { return orderIDPattern.MatchString(id) }

// CheckoutRequest is what the client confirms after seeing a quote.
type CheckoutRequest struct {
	OrderID      string
	ContactEmail string
	Pairs        []model.LanguagePair
	TotalWords   int
	Options      model.QuoteOptions
}

// CheckoutResult is returned once the order is tracked and payable.
type CheckoutResult struct {
	OrderID     string `json:"orderId"`
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	TotalWords  int    `json:"totalWords"`
}

// CheckoutService turns a confirmed quote into a payment session and a
// pending order.
type CheckoutService struct {
	gateway     PaymentGateway
	engine      *pricing.Engine
	orders      *OrderStore
	events      OrderEventPublisher
	notifier    Notifier
	confirm     Confirmation
	sendTimeout time.Duration
	metrics     *metrics.Registry
	stripe      config.StripeConfig
}

// NewCheckoutService wires checkout. notifier sends the pre-payment receipt
// through confirm and may be nil to disable it.
func NewCheckoutService(gateway PaymentGateway, engine *pricing.Engine, orders *OrderStore, events OrderEventPublisher, notifier Notifier, confirm Confirmation, sendTimeout time.Duration, reg *metrics.Registry, cfg config.StripeConfig) *CheckoutService {
	return &CheckoutService{
		gateway:     gateway,
		engine:      engine,
		orders:      orders,
		events:      events,
		notifier:    notifier,
		confirm:     confirm,
		sendTimeout: sendTimeout,
		metrics:     reg,
		stripe:      cfg,
	}
}

// CreateCheckout prices the order server-side, opens a payment session and
// records the order as pending payment before the URL is handed out.
func (s *CheckoutService) CreateCheckout(ctx context.Context, tenant string, req CheckoutRequest) (*CheckoutResult, error) {
	res, err := s.createCheckout(ctx, tenant, req)
	outcome := "created"
	switch {
	case err == nil:
	case errors.Is(err, model.ErrUpstreamUnavailable):
		outcome = "upstream_error"
	default:
		outcome = "rejected"
	}
	s.metrics.Checkouts.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *CheckoutService) createCheckout(ctx context.Context, tenant string, req CheckoutRequest) (*CheckoutResult, error) {
	email, err := validateCheckout(req)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithOrderID(ctx, req.OrderID)

	opts, err := req.Options.Normalize()
	if err != nil {
		return nil, err
	}

	words, err := s.resolveWords(ctx, tenant, req)
	if err != nil {
		return nil, err
	}

	amount, lines, err := s.engine.PriceForOrder(words, req.Pairs, opts)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, model.NewValidationError("amount", "order total must be positive")
	}
	pairs := make([]model.LanguagePair, len(lines))
	for i, l := range lines {
		pairs[i] = l.Pair
	}
	currency := s.engine.Currency()

	session, err := s.gateway.CreateSession(ctx, SessionRequest{
		OrderID:       req.OrderID,
		CustomerEmail: email,
		Description:   fmt.Sprintf("%s, %d words", languageList(pairs), words),
		AmountCents:   amount,
		Currency:      currency,
		SuccessURL:    withOrderID(s.stripe.SuccessURL, req.OrderID),
		CancelURL:     withOrderID(s.stripe.CancelURL, req.OrderID),
		Metadata: map[string]string{
			model.MetaOrderID:    req.OrderID,
			model.MetaTotalWords: strconv.Itoa(words),
			model.MetaTenant:     tenant,
		},
	})
	if err != nil {
		logger.Error(ctx, "checkout session creation failed", "error", err)
		return nil, err
	}

	status := model.StatusPendingPayment
	order, err := s.orders.Upsert(ctx, req.OrderID, model.OrderPatch{
		Tenant:            &tenant,
		ContactEmail:      &email,
		Pairs:             pairs,
		Options:           &opts,
		TotalWords:        &words,
		AmountCents:       &amount,
		Currency:          &currency,
		Status:            &status,
		CheckoutSessionID: &session.ID,
	})
	if err != nil {
		// The session exists upstream but nothing tracks it. Expiring it keeps
		// it from being paid; the log line is what manual reconciliation uses.
		logger.Error(ctx, "orphaned checkout session",
			"session_id", session.ID,
			"amount_cents", amount,
			"error", err,
		)
		s.expireOrphan(ctx, session.ID)
		if errors.Is(err, model.ErrConflict) {
			return nil, err
		}
		return nil, model.Upstream("persist order", err)
	}

	s.events.Publish(ctx, NewOrderEvent(EventOrderPendingPayment, order, order.UpdatedAt))
	logger.Info(ctx, "checkout created",
		"session_id", session.ID,
		"amount_cents", amount,
		"total_words", words,
	)
	s.sendReceipt(ctx, order.ID)

	return &CheckoutResult{
		OrderID:     order.ID,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		AmountCents: amount,
		Currency:    currency,
		TotalWords:  words,
	}, nil
}

// resolveWords prefers the count persisted by an earlier quote over the one
// the client sends back.
func (s *CheckoutService) resolveWords(ctx context.Context, tenant string, req CheckoutRequest) (int, error) {
	existing, err := s.orders.Get(ctx, req.OrderID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return 0, err
	}

	if existing != nil {
		if existing.Tenant != "" && existing.Tenant != tenant {
			return 0, fmt.Errorf("order %s: %w", req.OrderID, model.ErrForbidden)
		}
		if existing.Status == model.StatusPaid {
			return 0, fmt.Errorf("order %s: %w: already paid", req.OrderID, model.ErrConflict)
		}
		if existing.TotalWords > 0 {
			if existing.TotalWords != req.TotalWords {
				logger.Warn(ctx, "client word count differs from persisted quote",
					"client_words", req.TotalWords,
					"persisted_words", existing.TotalWords,
				)
			}
			return existing.TotalWords, nil
		}
	}

	if req.TotalWords <= 0 {
		return 0, model.NewValidationError("totalWords", "must be greater than zero")
	}
	logger.Info(ctx, "no persisted quote, using client word count", "client_words", req.TotalWords)
	return req.TotalWords, nil
}

// sendReceipt emails the customer and operations once per order when it first
// becomes payable. Failures are logged and never fail the checkout.
func (s *CheckoutService) sendReceipt(ctx context.Context, orderID string) {
	if s.notifier == nil {
		return
	}
	order, err := s.orders.ClaimReceipt(ctx, orderID)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrAlreadyNotified):
		logger.Debug(ctx, "receipt already sent")
		return
	default:
		logger.Warn(ctx, "could not claim receipt", "error", err)
		return
	}

	msgs, err := s.confirm.ReceivedMessages(order, s.confirm.Recipients(order, ""))
	if err == nil && len(msgs) > 0 {
		sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		err = s.notifier.Send(sctx, msgs)
		cancel()
	}
	if err == nil {
		s.metrics.Notifications.WithLabelValues("receipt_sent").Inc()
		return
	}

	s.metrics.Notifications.WithLabelValues("receipt_failed").Inc()
	delivered := DeliveredRecipients(msgs, err)
	logger.Warn(ctx, "receipt not sent", "delivered", delivered, "error", err)
	if len(delivered) > 0 {
		return
	}
	if err := s.orders.ReleaseReceipt(ctx, orderID); err != nil {
		logger.Error(ctx, "could not release receipt marker", "error", err)
	}
}

func (s *CheckoutService) expireOrphan(ctx context.Context, sessionID string) {
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.gateway.ExpireSession(ectx, sessionID); err != nil {
		logger.Warn(ctx, "could not expire orphaned session", "session_id", sessionID, "error", err)
	}
}

func validateCheckout(req CheckoutRequest) (string, error) {
	verr := &model.ValidationError{}
	if !validOrderID(req.OrderID) {
		verr.Add("orderId", "must be 1-128 characters of letters, digits, '.', '_' or '-'")
	}
	email := strings.TrimSpace(req.ContactEmail)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("contactEmail", "must be a valid email address")
	}
	if len(req.Pairs) == 0 {
		verr.Add("pairs", "at least one language pair is required")
	}
	if req.TotalWords < 0 {
		verr.Add("totalWords", "must not be negative")
	}
	return email, verr.Err()
}

func withOrderID(tmpl, orderID string) string {
	return strings.ReplaceAll(tmpl, "{ORDER_ID}", url.QueryEscape(orderID))
}
