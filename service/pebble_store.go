package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/AnTengye/rollingquote/model"
	"github.com/cockroachdb/pebble"
)

const (
	orderKeyPrefix   = "order/"
	sessionKeyPrefix = "session/"
)

// PebbleBackend stores orders as JSON documents in a local Pebble database
// with a secondary session -> order index.
type PebbleBackend struct {
	db *pebble.DB
	mu sync.Mutex
}

func NewPebbleBackend(dir string) (*PebbleBackend, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleBackend{db: d}, nil
}

func (p *PebbleBackend) Close() error { return p.db.Close() }

func (p *PebbleBackend) Get(_ context.Context, id string) (*model.Order, error) {
	o, err := p.load(id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	return o, nil
}

func (p *PebbleBackend) FindBySession(ctx context.Context, sessionID string) (*model.Order, error) {
	v, closer, err := p.db.Get([]byte(sessionKeyPrefix + sessionID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("pebble get session: %w", err)
	}
	id := string(v)
	_ = closer.Close()
	return p.Get(ctx, id)
}

func (p *PebbleBackend) Mutate(ctx context.Context, id string, create bool, fn func(*model.Order) error) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.load(id)
	if err != nil {
		return nil, err
	}
	var work *model.Order
	switch {
	case current != nil:
		work = current.Clone()
	case create:
		work = &model.Order{ID: id, Status: model.StatusQuoted}
	default:
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}

	if err := fn(work); err != nil {
		return nil, err
	}

	data, err := json.Marshal(work)
	if err != nil {
		return nil, fmt.Errorf("encode order %s: %w", id, err)
	}

	wb := p.db.NewBatch()
	defer wb.Close()
	if err := wb.Set([]byte(orderKeyPrefix+id), data, nil); err != nil {
		return nil, err
	}
	if current != nil && current.CheckoutSessionID != "" && current.CheckoutSessionID != work.CheckoutSessionID {
		if err := wb.Delete([]byte(sessionKeyPrefix+current.CheckoutSessionID), nil); err != nil {
			return nil, err
		}
	}
	if work.CheckoutSessionID != "" {
		if err := wb.Set([]byte(sessionKeyPrefix+work.CheckoutSessionID), []byte(id), nil); err != nil {
			return nil, err
		}
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("pebble commit order %s: %w", id, err)
	}
	return work, nil
}

// Count returns the number of stored orders.
func (p *PebbleBackend) Count() (int, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(orderKeyPrefix),
		UpperBound: []byte("order0"), // '0' sorts right after '/'
	})
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	return n, it.Error()
}

// load returns nil without error when the order does not exist.
func (p *PebbleBackend) load(id string) (*model.Order, error) {
	v, closer, err := p.db.Get([]byte(orderKeyPrefix + id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pebble get order %s: %w", id, err)
	}
	defer closer.Close()

	var o model.Order
	if err := json.Unmarshal(v, &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", id, err)
	}
	return &o, nil
}
