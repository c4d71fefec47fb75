package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/logger"
	"github.com/AnTengye/rollingquote/pkg/metrics"
)

// Outcome describes what happened to an acknowledged payment event.
type Outcome string

const (
	OutcomeProcessed       Outcome = "processed"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeMissingOrderID  Outcome = "missing_order_id"
	OutcomeAwaitingPayment Outcome = "awaiting_payment"
	OutcomeNotifyFailed    Outcome = "notify_failed"
)

// Reconciler applies verified payment events to orders and sends the
// confirmation exactly once per order.
type Reconciler struct {
	gateway     PaymentGateway
	orders      *OrderStore
	notifier    Notifier
	confirm     Confirmation
	events      OrderEventPublisher
	metrics     *metrics.Registry
	sendTimeout time.Duration
}

func NewReconciler(gateway PaymentGateway, orders *OrderStore, notifier Notifier, confirm Confirmation, events OrderEventPublisher, reg *metrics.Registry, sendTimeout time.Duration) *Reconciler {
	return &Reconciler{
		gateway:     gateway,
		orders:      orders,
		notifier:    notifier,
		confirm:     confirm,
		events:      events,
		metrics:     reg,
		sendTimeout: sendTimeout,
	}
}

// HandleWebhook verifies and applies one raw webhook delivery. A nil error
// means the event may be acknowledged; the Outcome says why.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ev, err := r.gateway.VerifyEvent(payload, signature)
	if err != nil {
		r.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		logger.Warn(ctx, "webhook rejected", "error", err)
		return "", err
	}

	outcome, err := r.apply(logger.WithEventID(ctx, ev.ID), ev)
	if err != nil {
		r.metrics.WebhookEvents.WithLabelValues("error").Inc()
		return "", err
	}
	r.metrics.WebhookEvents.WithLabelValues(string(outcome)).Inc()
	return outcome, nil
}

func (r *Reconciler) apply(ctx context.Context, ev *model.PaymentEvent) (Outcome, error) {
	// acknowledged so Stripe stops redelivering it
	if ev.Malformed {
		logger.Warn(ctx, "ignoring undecodable payment event", "type", ev.Type)
		return OutcomeIgnored, nil
	}
	if !ev.Confirms() {
		logger.Debug(ctx, "ignoring payment event", "type", ev.Type)
		return OutcomeIgnored, nil
	}

	orderID := ev.OrderID()
	if orderID == "" {
		logger.Warn(ctx, "payment event without order id", "session_id", ev.SessionID)
		return OutcomeMissingOrderID, nil
	}
	ctx = logger.WithOrderID(ctx, orderID)

	if !ev.Paid {
		logger.Info(ctx, "checkout completed, payment still pending", "session_id", ev.SessionID)
		return OutcomeAwaitingPayment, nil
	}

	existing, err := r.orders.Get(ctx, orderID)
	switch {
	case err == nil && existing.NotificationSentAt != nil:
		logger.Info(ctx, "duplicate payment event", "notified_by", existing.NotificationEventID)
		return OutcomeDuplicate, nil
	case err != nil && !errors.Is(err, model.ErrNotFound):
		return "", err
	}

	order, changed, err := r.orders.MarkPaid(ctx, orderID, model.Payment{
		SessionID:       ev.SessionID,
		PaymentIntentID: ev.PaymentIntentID,
		AmountPaidCents: ev.AmountTotal,
		EventID:         ev.ID,
		CustomerEmail:   ev.CustomerEmail,
	})
	if err != nil {
		logger.Error(ctx, "could not record payment", "session_id", ev.SessionID, "error", err)
		return "", err
	}
	if changed {
		if order.AmountCents > 0 && order.AmountCents != ev.AmountTotal {
			logger.Warn(ctx, "paid amount differs from quoted amount",
				"quoted_cents", order.AmountCents,
				"paid_cents", ev.AmountTotal,
			)
		}
		logger.Info(ctx, "order paid", "session_id", ev.SessionID, "amount_paid_cents", ev.AmountTotal)
		r.events.Publish(ctx, NewOrderEvent(EventOrderPaid, order, *order.PaymentConfirmedAt))
	}

	// Each delivery claims with its own token so concurrent retries of one
	// event cannot both hold the claim.
	_, err = r.notify(ctx, orderID, ev.ID+"/"+uuid.NewString(), ev.ID, false)
	switch {
	case err == nil:
		return OutcomeProcessed, nil
	case errors.Is(err, model.ErrAlreadyNotified), errors.Is(err, model.ErrConflict):
		// another delivery of this event holds or finished the claim
		logger.Info(ctx, "notification handled by another delivery", "reason", err)
		return OutcomeDuplicate, nil
	case errors.Is(err, model.ErrUpstreamUnavailable):
		// paid stays paid; the resend path retries the remaining recipients
		return OutcomeNotifyFailed, nil
	default:
		return "", err
	}
}

// ResendRequest identifies the order whose confirmation should go out again.
type ResendRequest struct {
	OrderID   string
	SessionID string
	Force     bool
}

// Resend re-sends the confirmation for a paid order. It refuses unpaid
// orders and, unless forced, orders already notified.
func (r *Reconciler) Resend(ctx context.Context, req ResendRequest) (*model.Order, error) {
	var (
		order *model.Order
		err   error
	)
	switch {
	case req.OrderID != "":
		order, err = r.orders.Get(ctx, req.OrderID)
	case req.SessionID != "":
		order, err = r.orders.FindBySession(ctx, req.SessionID)
	default:
		return nil, model.NewValidationError("orderId", "orderId or sessionId is required")
	}
	if err != nil {
		return nil, err
	}
	ctx = logger.WithOrderID(ctx, order.ID)

	if order.Status != model.StatusPaid {
		return nil, fmt.Errorf("order %s: %w", order.ID, model.ErrNotPaid)
	}
	if order.NotificationSentAt != nil && !req.Force {
		return nil, fmt.Errorf("order %s: %w", order.ID, model.ErrAlreadyNotified)
	}

	token := "resend-" + uuid.NewString()
	updated, err := r.notify(ctx, order.ID, token, token, req.Force)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "confirmation resent", "forced", req.Force)
	return updated, nil
}

// notify runs claim, send, then complete. On a send failure the claim is
// released with the recipients that were reached, so a retry skips them.
func (r *Reconciler) notify(ctx context.Context, orderID, token, eventID string, force bool) (*model.Order, error) {
	order, err := r.orders.ClaimNotification(ctx, orderID, token, force)
	if err != nil {
		return nil, err
	}

	recipients := order.PendingRecipients(r.confirm.Recipients(order, ""))
	var msgs []Message
	if len(recipients) > 0 {
		msgs, err = r.confirm.Messages(order, order.ContactEmail, recipients)
		if err != nil {
			r.release(ctx, orderID, token, nil)
			return nil, err
		}
		sctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
		err = r.notifier.Send(sctx, msgs)
		cancel()
	} else {
		logger.Warn(ctx, "paid order has no one left to notify")
	}

	delivered := DeliveredRecipients(msgs, err)
	if err != nil {
		r.metrics.Notifications.WithLabelValues("failed").Inc()
		logger.Error(ctx, "confirmation not sent",
			"delivered", delivered,
			"error", err,
		)
		r.release(ctx, orderID, token, delivered)
		if !errors.Is(err, model.ErrUpstreamUnavailable) {
			err = model.Upstream("send confirmation", err)
		}
		return nil, err
	}

	done, err := r.orders.CompleteNotification(ctx, orderID, token, eventID, delivered)
	if err != nil {
		// The messages went out; only the marker is missing. A later delivery
		// may send again, which is the lesser failure.
		logger.Error(ctx, "confirmation sent but marker not recorded", "error", err)
		return nil, err
	}
	r.metrics.Notifications.WithLabelValues("sent").Inc()
	return done, nil
}

func (r *Reconciler) release(ctx context.Context, orderID, token string, delivered []string) {
	if _, err := r.orders.ReleaseNotification(ctx, orderID, token, delivered); err != nil {
		logger.Error(ctx, "could not release notification claim", "error", err)
	}
}
