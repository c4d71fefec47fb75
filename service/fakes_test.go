package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/metrics"
	"github.com/AnTengye/rollingquote/service/pricing"
)

// fakeDocs serves documents from memory. counts holds word counts recorded at
// upload; fetchErr and delay apply per reference.
type fakeDocs struct {
	mu       sync.Mutex
	files    map[string][]byte
	counts   map[string]int
	fetchErr map[string]error
	delay    map[string]time.Duration
	fetches  int
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		files:    map[string][]byte{},
		counts:   map[string]int{},
		fetchErr: map[string]error{},
		delay:    map[string]time.Duration{},
	}
}

func (d *fakeDocs) Fetch(ctx context.Context, ref string) ([]byte, error) {
	d.mu.Lock()
	d.fetches++
	data, ok := d.files[ref]
	err := d.fetchErr[ref]
	delay := d.delay[ref]
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("object %s: %w", ref, model.ErrNotFound)
	}
	return data, nil
}

func (d *fakeDocs) WordCount(_ context.Context, ref string) (int, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.counts[ref]
	return n, ok, nil
}

func (d *fakeDocs) fetchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches
}

// fakeGateway records sessions and verifies events by looking up the payload
// in a table instead of checking signatures.
type fakeGateway struct {
	mu        sync.Mutex
	sessions  []SessionRequest
	expired   []string
	createErr error
	events    map[string]*model.PaymentEvent
	next      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{events: map[string]*model.PaymentEvent{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, req SessionRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.sessions = append(g.sessions, req)
	g.next++
	id := fmt.Sprintf("cs_test_%d", g.next)
	return &CheckoutSession{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (g *fakeGateway) ExpireSession(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = append(g.expired, sessionID)
	return nil
}

func (g *fakeGateway) VerifyEvent(payload []byte, signature string) (*model.PaymentEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if signature != "valid" {
		return nil, model.ErrSignatureVerification
	}
	ev, ok := g.events[string(payload)]
	if !ok {
		return nil, model.ErrSignatureVerification
	}
	c := *ev
	return &c, nil
}

// deliver registers ev and returns the payload that verifies to it.
func (g *fakeGateway) deliver(ev *model.PaymentEvent) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	payload := ev.ID
	g.events[payload] = ev
	return []byte(payload)
}

func (g *fakeGateway) sessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// fakeNotifier records sent messages. failFor makes delivery to an address
// fail until it is cleared.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failFor: map[string]bool{}}
}

func (n *fakeNotifier) Send(_ context.Context, msgs []Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	pf := &PartialFailure{Failed: map[string]error{}}
	for _, m := range msgs {
		if n.failFor[m.To] {
			pf.Failed[m.To] = errors.New("mailbox unavailable")
			continue
		}
		n.sent = append(n.sent, m)
		pf.Delivered = append(pf.Delivered, m.To)
	}
	if len(pf.Failed) > 0 {
		return pf
	}
	return nil
}

func (n *fakeNotifier) setFailing(addr string, failing bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failFor[addr] = failing
}

func (n *fakeNotifier) sentTo(addr string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.sent {
		if m.To == addr {
			count++
		}
	}
	return count
}

func (n *fakeNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func testStripeConfig() config.StripeConfig {
	return config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "https://shop.example.com/success?session_id={CHECKOUT_SESSION_ID}&orderId={ORDER_ID}",
		CancelURL:     "https://shop.example.com/quote?orderId={ORDER_ID}",
		ProductName:   "Translation services",
	}
}

func testQuoteConfig() config.QuoteConfig {
	return config.QuoteConfig{MaxParallel: 4, ExtractTimeout: 2 * time.Second, MaxFiles: 5}
}

// pipeline bundles the services over one in-memory order store.
type pipeline struct {
	orders    *OrderStore
	clock     *fakeClock
	docs      *fakeDocs
	gateway   *fakeGateway
	notifier  *fakeNotifier
	receipts  *fakeNotifier
	events    *recordingPublisher
	quotes    *QuoteService
	checkout  *CheckoutService
	reconcile *Reconciler
	metrics   *metrics.Registry
}

const opsAddress = "ops@example.com"

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	orders := NewOrderStore(NewMemoryBackend(100), 5*time.Minute)
	orders.now = clock.Now
	t.Cleanup(func() { _ = orders.Close() })

	reg := metrics.NewRegistry()
	engine := pricing.NewEngine(pricing.DefaultCatalog())
	p := &pipeline{
		orders:   orders,
		clock:    clock,
		docs:     newFakeDocs(),
		gateway:  newFakeGateway(),
		notifier: newFakeNotifier(),
		receipts: newFakeNotifier(),
		events:   &recordingPublisher{},
		metrics:  reg,
	}
	p.quotes = NewQuoteService(p.docs, engine, orders, reg, testQuoteConfig())
	p.checkout = NewCheckoutService(p.gateway, engine, orders, p.events, p.receipts, Confirmation{OpsAddress: opsAddress}, time.Second, reg, testStripeConfig())
	p.reconcile = NewReconciler(p.gateway, orders, p.notifier, Confirmation{OpsAddress: opsAddress}, p.events, reg, time.Second)
	return p
}

// paidEvent builds a confirming event for orderID.
func paidEvent(eventID, sessionID, orderID string, amount int64) *model.PaymentEvent {
	return &model.PaymentEvent{
		ID:              eventID,
		Type:            model.EventCheckoutCompleted,
		SessionID:       sessionID,
		PaymentIntentID: "pi_" + eventID,
		AmountTotal:     amount,
		Currency:        "usd",
		CustomerEmail:   "client@example.com",
		Metadata:        map[string]string{model.MetaOrderID: orderID},
		Paid:            true,
	}
}
