package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnTengye/rollingquote/model"
)

// OrderStore is the order record store. Every write goes through the
// backend's Mutate so concurrent writers for one order never interleave.
type OrderStore struct {
	backend  OrderBackend
	claimTTL time.Duration
	now      func() time.Time
}

// NewOrderStore wraps backend. claimTTL bounds how long a notification claim
// blocks other senders before it is considered abandoned.
func NewOrderStore(backend OrderBackend, claimTTL time.Duration) *OrderStore {
	return &OrderStore{
		backend:  backend,
		claimTTL: claimTTL,
		now:      time.Now,
	}
}

func (s *OrderStore) Close() error { return s.backend.Close() }

func (s *OrderStore) Get(ctx context.Context, id string) (*model.Order, error) {
	return s.backend.Get(ctx, id)
}

func (s *OrderStore) FindBySession(ctx context.Context, sessionID string) (*model.Order, error) {
	return s.backend.FindBySession(ctx, sessionID)
}

// Upsert merges patch into the order, creating it when absent.
func (s *OrderStore) Upsert(ctx context.Context, id string, patch model.OrderPatch) (*model.Order, error) {
	if id == "" {
		return nil, model.NewValidationError("orderId", "is required")
	}
	return s.mutate(ctx, id, true, func(o *model.Order) error {
		return o.Apply(patch)
	})
}

// SaveQuote records a priced quote against id. Orders that already moved past
// quoting keep their status; paid orders refuse repricing.
func (s *OrderStore) SaveQuote(ctx context.Context, id, tenant string, q *model.Quote) (*model.Order, error) {
	words := q.TotalWords
	amount := q.AmountCents
	currency := q.Currency
	opts := q.Options
	return s.Upsert(ctx, id, model.OrderPatch{
		Tenant:      &tenant,
		Pairs:       q.Pairs,
		Options:     &opts,
		TotalWords:  &words,
		AmountCents: &amount,
		Currency:    &currency,
	})
}

// MarkPaid records a confirmed payment. changed is false when the order was
// already paid. An unknown order is created so that a payment is never lost.
func (s *OrderStore) MarkPaid(ctx context.Context, id string, pay model.Payment) (order *model.Order, changed bool, err error) {
	if pay.ConfirmedAt.IsZero() {
		pay.ConfirmedAt = s.now()
	}
	order, err = s.mutate(ctx, id, true, func(o *model.Order) error {
		changed = o.MarkPaid(pay)
		return nil
	})
	return order, changed, err
}

// ClaimNotification takes the notification marker for token.
func (s *OrderStore) ClaimNotification(ctx context.Context, id, token string, force bool) (*model.Order, error) {
	now := s.now()
	return s.mutate(ctx, id, false, func(o *model.Order) error {
		return o.ClaimNotification(token, force, now, s.claimTTL)
	})
}

// ReleaseNotification gives up token's claim after a failed send.
func (s *OrderStore) ReleaseNotification(ctx context.Context, id, token string, delivered []string) (*model.Order, error) {
	return s.mutate(ctx, id, false, func(o *model.Order) error {
		return o.ReleaseNotification(token, delivered)
	})
}

// CompleteNotification marks the confirmation as sent.
func (s *OrderStore) CompleteNotification(ctx context.Context, id, token, eventID string, delivered []string) (*model.Order, error) {
	now := s.now()
	return s.mutate(ctx, id, false, func(o *model.Order) error {
		return o.CompleteNotification(token, eventID, delivered, now)
	})
}

// ClaimReceipt takes the pre-payment receipt marker. It fails with
// ErrAlreadyNotified once any caller has claimed it.
func (s *OrderStore) ClaimReceipt(ctx context.Context, id string) (*model.Order, error) {
	now := s.now()
	return s.mutate(ctx, id, false, func(o *model.Order) error {
		return o.ClaimReceipt(now)
	})
}

// ReleaseReceipt lets a later checkout retry a receipt nobody received.
func (s *OrderStore) ReleaseReceipt(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, false, func(o *model.Order) error {
		o.ReleaseReceipt()
		return nil
	})
	return err
}

func (s *OrderStore) mutate(ctx context.Context, id string, create bool, fn func(*model.Order) error) (*model.Order, error) {
	now := s.now()
	order, err := s.backend.Mutate(ctx, id, create, func(o *model.Order) error {
		if err := fn(o); err != nil {
			return err
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, model.Upstream(fmt.Sprintf("store order %s", id), err)
	}
	return order, nil
}

// isDomainError reports whether err carries a meaning callers act on, as
// opposed to a storage failure.
func isDomainError(err error) bool {
	for _, target := range []error{
		model.ErrNotFound, model.ErrValidation, model.ErrConflict,
		model.ErrNotPaid, model.ErrAlreadyNotified, model.ErrUpstreamUnavailable,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
