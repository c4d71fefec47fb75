package model

import (
	"fmt"
	"slices"
	"time"
)

// Order represents a translation request from quote through payment confirmation.
// ID is supplied by the client and acts as the idempotency key for every write.
type Order struct {
	ID                 string         `json:"id"`
	Tenant             string         `json:"tenant,omitempty"`
	ContactEmail       string         `json:"contact_email,omitempty"`
	Pairs              []LanguagePair `json:"pairs,omitempty"`
	Options            QuoteOptions   `json:"options"`
	TotalWords         int            `json:"total_words"`
	AmountCents        int64          `json:"amount_cents"`
	Currency           string         `json:"currency,omitempty"`
	Status             OrderStatus    `json:"status"`
	CheckoutSessionID  string         `json:"checkout_session_id,omitempty"`
	PaymentIntentID    string         `json:"payment_intent_id,omitempty"`
	AmountPaidCents    *int64         `json:"amount_paid_cents,omitempty"`
	PaymentConfirmedAt *time.Time     `json:"payment_confirmed_at,omitempty"`
	PaymentEventID     string         `json:"payment_event_id,omitempty"`

	NotificationSentAt    *time.Time `json:"notification_sent_at,omitempty"`
	NotificationEventID   string     `json:"notification_event_id,omitempty"`
	NotificationClaim     string     `json:"notification_claim,omitempty"`
	NotificationClaimedAt *time.Time `json:"notification_claimed_at,omitempty"`
	NotifiedRecipients    []string   `json:"notified_recipients,omitempty"`

	// ReceiptSentAt marks the pre-payment receipt as taken.
	ReceiptSentAt *time.Time `json:"receipt_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderStatus constants. Status only ever moves forward.
type OrderStatus string

const (
	StatusQuoted         OrderStatus = "quoted"
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPaid           OrderStatus = "paid"
)

func (s OrderStatus) rank() int {
	switch s {
	case StatusQuoted:
		return 1
	case StatusPendingPayment:
		return 2
	case StatusPaid:
		return 3
	}
	return 0
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool { return s.rank() > 0 }

// OrderPatch carries a merge update. Nil fields are left untouched.
type OrderPatch struct {
	Tenant            *string
	ContactEmail      *string
	Pairs             []LanguagePair
	Options           *QuoteOptions
	TotalWords        *int
	AmountCents       *int64
	Currency          *string
	Status            *OrderStatus
	CheckoutSessionID *string
}

func (p OrderPatch) touchesPricing() bool {
	return p.Pairs != nil || p.Options != nil || p.TotalWords != nil || p.AmountCents != nil || p.Currency != nil
}

// Apply merges p into o.
func (o *Order) Apply(p OrderPatch) error {
	if p.Status != nil {
		if !p.Status.Valid() {
			return fmt.Errorf("order %s: %w: unknown status %q", o.ID, ErrValidation, *p.Status)
		}
		if o.Status.rank() > p.Status.rank() {
			return fmt.Errorf("order %s: %w: cannot move from %s to %s", o.ID, ErrConflict, o.Status, *p.Status)
		}
	}
	if o.Status == StatusPaid && p.touchesPricing() {
		return fmt.Errorf("order %s: %w: order already paid", o.ID, ErrConflict)
	}

	if p.Tenant != nil {
		o.Tenant = *p.Tenant
	}
	if p.ContactEmail != nil {
		o.ContactEmail = *p.ContactEmail
	}
	if p.Pairs != nil {
		o.Pairs = slices.Clone(p.Pairs)
	}
	if p.Options != nil {
		o.Options = *p.Options
	}
	if p.TotalWords != nil {
		o.TotalWords = *p.TotalWords
	}
	if p.AmountCents != nil {
		o.AmountCents = *p.AmountCents
	}
	if p.Currency != nil {
		o.Currency = *p.Currency
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.CheckoutSessionID != nil {
		o.CheckoutSessionID = *p.CheckoutSessionID
	}
	return nil
}

// Payment is the confirmed outcome of a completed checkout session.
type Payment struct {
	SessionID       string
	PaymentIntentID string
	AmountPaidCents int64
	EventID         string
	CustomerEmail   string
	ConfirmedAt     time.Time
}

// MarkPaid moves the order to paid. It returns false when the order was
// already paid, in which case nothing changes.
func (o *Order) MarkPaid(pay Payment) bool {
	if o.Status == StatusPaid {
		return false
	}
	o.Status = StatusPaid
	if pay.SessionID != "" {
		o.CheckoutSessionID = pay.SessionID
	}
	o.PaymentIntentID = pay.PaymentIntentID
	amount := pay.AmountPaidCents
	o.AmountPaidCents = &amount
	at := pay.ConfirmedAt
	o.PaymentConfirmedAt = &at
	o.PaymentEventID = pay.EventID
	if o.ContactEmail == "" {
		o.ContactEmail = pay.CustomerEmail
	}
	return true
}

// ClaimNotification takes the notification marker for token. A claim older
// than ttl is treated as abandoned and may be taken over.
func (o *Order) ClaimNotification(token string, force bool, now time.Time, ttl time.Duration) error {
	if o.Status != StatusPaid {
		return fmt.Errorf("order %s: %w", o.ID, ErrNotPaid)
	}
	if o.NotificationSentAt != nil && !force {
		return fmt.Errorf("order %s: %w", o.ID, ErrAlreadyNotified)
	}
	if o.NotificationClaim != "" && o.NotificationClaim != token {
		if o.NotificationClaimedAt != nil && now.Sub(*o.NotificationClaimedAt) < ttl {
			return fmt.Errorf("order %s: %w: notification in progress", o.ID, ErrConflict)
		}
	}
	if force && o.NotificationSentAt != nil {
		o.NotifiedRecipients = nil
	}
	o.NotificationClaim = token
	claimedAt := now
	o.NotificationClaimedAt = &claimedAt
	return nil
}

// ReleaseNotification drops the claim held by token, keeping any recipients
// that were already reached.
func (o *Order) ReleaseNotification(token string, delivered []string) error {
	if o.NotificationClaim != token {
		return fmt.Errorf("order %s: %w: claim not held", o.ID, ErrConflict)
	}
	o.addRecipients(delivered)
	o.NotificationClaim = ""
	o.NotificationClaimedAt = nil
	return nil
}

// CompleteNotification records the marker for the event that caused the send.
func (o *Order) CompleteNotification(token, eventID string, delivered []string, now time.Time) error {
	if o.NotificationClaim != token {
		return fmt.Errorf("order %s: %w: claim not held", o.ID, ErrConflict)
	}
	o.addRecipients(delivered)
	sentAt := now
	o.NotificationSentAt = &sentAt
	o.NotificationEventID = eventID
	o.NotificationClaim = ""
	o.NotificationClaimedAt = nil
	return nil
}

// ClaimReceipt takes the pre-payment receipt marker. Only the first caller
// for an order succeeds.
func (o *Order) ClaimReceipt(now time.Time) error {
	if o.Status != StatusPendingPayment {
		return fmt.Errorf("order %s: %w: receipt needs status %s, got %s", o.ID, ErrConflict, StatusPendingPayment, o.Status)
	}
	if o.ReceiptSentAt != nil {
		return fmt.Errorf("order %s: %w: receipt", o.ID, ErrAlreadyNotified)
	}
	at := now
	o.ReceiptSentAt = &at
	return nil
}

// ReleaseReceipt clears the marker after a send that reached nobody.
func (o *Order) ReleaseReceipt() {
	o.ReceiptSentAt = nil
}

// PendingRecipients filters out recipients that were already notified.
func (o *Order) PendingRecipients(all []string) []string {
	var out []string
	for _, r := range all {
		if !slices.Contains(o.NotifiedRecipients, r) {
			out = append(out, r)
		}
	}
	return out
}

func (o *Order) addRecipients(rs []string) {
	for _, r := range rs {
		if !slices.Contains(o.NotifiedRecipients, r) {
			o.NotifiedRecipients = append(o.NotifiedRecipients, r)
		}
	}
}

// Clone returns a deep copy so callers never share slices or pointers with a store.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Pairs = slices.Clone(o.Pairs)
	c.NotifiedRecipients = slices.Clone(o.NotifiedRecipients)
	c.AmountPaidCents = clonePtr(o.AmountPaidCents)
	c.PaymentConfirmedAt = clonePtr(o.PaymentConfirmedAt)
	c.NotificationSentAt = clonePtr(o.NotificationSentAt)
	c.NotificationClaimedAt = clonePtr(o.NotificationClaimedAt)
	c.ReceiptSentAt = clonePtr(o.ReceiptSentAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
