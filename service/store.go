package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/AnTengye/rollingquote/model"
)

// OrderBackend persists orders keyed by their client-supplied ID.
//
// Mutate loads the order (or starts a fresh quoted one when create is set),
// runs fn on a private copy and stores the copy only when fn succeeds. Each
// backend serialises Mutate calls for the same order.
type OrderBackend interface {
	Get(ctx context.Context, id string) (*model.Order, error)
	FindBySession(ctx context.Context, sessionID string) (*model.Order, error)
	Mutate(ctx context.Context, id string, create bool, fn func(*model.Order) error) (*model.Order, error)
	Close() error
}

// MemoryBackend keeps orders in process memory. Orders are lost on restart,
// so it suits development and tests.
type MemoryBackend struct {
	orders    map[string]*model.Order
	sessions  map[string]string
	mu        sync.RWMutex
	maxOrders int // Maximum orders to keep, 0 = unlimited
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(maxOrders int) *MemoryBackend {
	if maxOrders < 0 {
		maxOrders = 0
	}
	slog.Info("memory order store initialized", "max_orders", maxOrders)
	return &MemoryBackend{
		orders:    make(map[string]*model.Order),
		sessions:  make(map[string]string),
		maxOrders: maxOrders,
	}
}

func (s *MemoryBackend) Get(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	return o.Clone(), nil
}

func (s *MemoryBackend) FindBySession(_ context.Context, sessionID string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
	}
	return o.Clone(), nil
}

func (s *MemoryBackend) Mutate(_ context.Context, id string, create bool, fn func(*model.Order) error) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	var work *model.Order
	switch {
	case ok:
		work = current.Clone()
	case create:
		work = &model.Order{ID: id, Status: model.StatusQuoted}
	default:
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}

	if err := fn(work); err != nil {
		return nil, err
	}

	if ok && current.CheckoutSessionID != "" && current.CheckoutSessionID != work.CheckoutSessionID {
		delete(s.sessions, current.CheckoutSessionID)
	}
	if work.CheckoutSessionID != "" {
		s.sessions[work.CheckoutSessionID] = id
	}
	s.orders[id] = work

	s.cleanupIfNeeded()
	return work.Clone(), nil
}

func (s *MemoryBackend) Close() error { return nil }

// Count returns the number of orders in the store
func (s *MemoryBackend) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// cleanupIfNeeded drops the oldest quoted drafts once the store exceeds
// maxOrders. Orders that reached checkout are never evicted.
// Must be called with lock held
func (s *MemoryBackend) cleanupIfNeeded() {
	if s.maxOrders <= 0 || len(s.orders) <= s.maxOrders {
		return
	}

	drafts := make([]*model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.Status == model.StatusQuoted {
			drafts = append(drafts, o)
		}
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
	})

	removeCount := len(s.orders) - s.maxOrders
	for i := 0; i < removeCount && i < len(drafts); i++ {
		slog.Info("auto-cleaning quoted order",
			"order_id", drafts[i].ID,
			"created_at", drafts[i].CreatedAt,
		)
		delete(s.orders, drafts[i].ID)
	}
}
