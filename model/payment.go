package model

// Payment events that can confirm a checkout. A completed session may still
// be awaiting an asynchronous payment method, in which case the later
// async_payment_succeeded event carries the confirmation.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// Metadata keys attached to checkout sessions for later correlation.
const (
	MetaOrderID    = "order_id"
	MetaTotalWords = "total_words"
	MetaTenant     = "tenant"
)

// PaymentEvent is a verified event from the payment processor, reduced to the
// fields reconciliation needs.
type PaymentEvent struct {
	ID              string
	Type            string
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
	// Paid is false while an asynchronous payment is still outstanding.
	Paid bool
	// Malformed marks a signed event whose session object could not be decoded.
	Malformed bool
}

// Confirms reports whether the event type can mark an order paid.
func (e *PaymentEvent) Confirms() bool {
	return e.Type == EventCheckoutCompleted || e.Type == EventAsyncPaymentSucceeded
}

// OrderID returns the correlation id carried in the event metadata.
func (e *PaymentEvent) OrderID() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetaOrderID]
}
