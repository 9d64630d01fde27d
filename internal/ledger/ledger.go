package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
)

var (
	// ErrInsufficientStock rejects a withdrawal larger than the balance.
	ErrInsufficientStock = errors.New("ledger: not enough gas in store")
	// ErrCapacityExceeded rejects an injection past the maximum fill level.
	ErrCapacityExceeded = errors.New("ledger: maximum capacity would be exceeded")
)

// Ledger tracks per-customer gas in store over the durable key-value store.
type Ledger struct {
	db *pebblestore.DB

	// maxCapacity bounds a single account when > 0.
	maxCapacity int

	// mu serializes read-modify-write cycles in AddQuantity. SetQuantity is
	// last-writer-wins by design.
	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMaxCapacity bounds per-account quantity. Zero leaves it unbounded.
func WithMaxCapacity(max int) Option {
	return func(l *Ledger) { l.maxCapacity = max }
}

// New creates a Ledger over the given store.
func New(db *pebblestore.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Quantity returns the customer's gas in store. Accounts without a record
// hold zero.
func (l *Ledger) Quantity(customerID uuid.UUID) (int, error) {
	return l.readInt(keyQuantity(customerID.String()), 0)
}

// SetQuantity overwrites the customer's gas in store. Last writer wins; see
// AddQuantity for the serialized alternative.
func (l *Ledger) SetQuantity(customerID uuid.UUID, quantity int) error {
	return l.db.Put(keyQuantity(customerID.String()), []byte(strconv.Itoa(quantity)))
}

// AddQuantity applies a signed delta under a lock, so concurrent appliers
// cannot lose an increment. Returns the new quantity.
func (l *Ledger) AddQuantity(customerID uuid.UUID, delta int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, err := l.Quantity(customerID)
	if err != nil {
		return 0, err
	}
	next := current + delta
	if err := l.SetQuantity(customerID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Validate checks whether applying delta would violate a balance invariant.
// The check is advisory: it gates admission into the outbox, while the
// authoritative mutation happens when the plant's response is applied.
func (l *Ledger) Validate(customerID uuid.UUID, delta int) error {
	current, err := l.Quantity(customerID)
	if err != nil {
		return err
	}
	next := current + delta
	if next < 0 {
		return fmt.Errorf("%w: withdrawing %d from %d", ErrInsufficientStock, -delta, current)
	}
	if l.maxCapacity > 0 && next > l.maxCapacity {
		return fmt.Errorf("%w: %d over %d", ErrCapacityExceeded, next, l.maxCapacity)
	}
	return nil
}

// CachedFillLevel returns the last overall fill level reported by the plant.
// ok is false when no response has been seen yet.
func (l *Ledger) CachedFillLevel() (int, bool, error) {
	return l.readCached(keyCachedFill)
}

// CachedMaxFillLevel returns the last maximum fill level reported by the
// plant. ok is false when no response has been seen yet.
func (l *Ledger) CachedMaxFillLevel() (int, bool, error) {
	return l.readCached(keyCachedMax)
}

// CacheFillLevel records the overall fill level from a plant response.
func (l *Ledger) CacheFillLevel(v int) error {
	return l.db.Put(keyCachedFill, []byte(strconv.Itoa(v)))
}

// CacheMaxFillLevel records the maximum fill level from a plant response.
func (l *Ledger) CacheMaxFillLevel(v int) error {
	return l.db.Put(keyCachedMax, []byte(strconv.Itoa(v)))
}

func (l *Ledger) readCached(key []byte) (int, bool, error) {
	b, err := l.db.Get(key)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, false, fmt.Errorf("ledger: corrupt cache record: %w", err)
	}
	return n, true, nil
}

func (l *Ledger) readInt(key []byte, absent int) (int, error) {
	b, err := l.db.Get(key)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return absent, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("ledger: corrupt quantity record: %w", err)
	}
	return n, nil
}
