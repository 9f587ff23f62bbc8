package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
)

type state int

const (
	uninitialized state = iota
	opening
	ready
)

func (s state) String() string {
	switch s {
	case opening:
		return "opening"
	case ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// A lifecycle guards the connection state of a storage.
//
// Uninitialized -> Opening -> Ready. A failed open goes back to
// Uninitialized, so Init may be called again. Every operation holds the
// read lock while it uses the connection, so close waits for in-flight
// operations.
type lifecycle struct {
	mu    sync.RWMutex
	state state
}

// open runs fn unless the storage is already ready.
func (l *lifecycle) open(fn func() error) error {
	if l.isReady() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == ready {
		return nil
	}

	l.state = opening
	if err := fn(); err != nil {
		l.state = uninitialized
		return err
	}
	l.state = ready
	return nil
}

func (l *lifecycle) close(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != ready {
		return
	}
	fn()
	l.state = uninitialized
}

func (l *lifecycle) isReady() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == ready
}

// acquire returns the release func of a ready storage. It does not wait
// for an open or close in progress.
func (l *lifecycle) acquire(op string) (func(), error) {
	if !l.mu.TryRLock() {
		return nil, fmt.Errorf("%s: state=busy: %w", op, domain.ErrNotInitialized)
	}
	if l.state != ready {
		st := l.state
		l.mu.RUnlock()
		return nil, fmt.Errorf("%s: state=%s: %w", op, st, domain.ErrNotInitialized)
	}
	return l.mu.RUnlock, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

type orderRecord struct {
	ID             uint64          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	ConfirmationID string          `json:"confirmation_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toRecord(o domain.Order) orderRecord {
	return orderRecord{
		ID:             o.ID,
		Name:           o.Name,
		Category:       o.Category,
		Price:          o.Price,
		Quantity:       o.Quantity,
		ConfirmationID: o.ConfirmationID,
		CreatedAt:      o.CreatedAt,
	}
}

func (r orderRecord) toDomain() domain.Order {
	return domain.Order{
		ID: r.ID,
		OrderFields: domain.OrderFields{
			Name:           r.Name,
			Category:       r.Category,
			Price:          r.Price,
			Quantity:       r.Quantity,
			ConfirmationID: r.ConfirmationID,
			CreatedAt:      r.CreatedAt,
		},
	}
}
