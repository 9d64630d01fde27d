package plant

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
)

var (
	// ErrOverCapacity rejects an injection past the maximum fill level.
	ErrOverCapacity = errors.New("plant: injection exceeds maximum fill level")
	// ErrInsufficientGas rejects a withdrawal larger than the current fill.
	ErrInsufficientGas = errors.New("plant: not enough gas in store")
)

// DefaultMaxFillLevel bounds the overall store.
const DefaultMaxFillLevel = 100

var keyFill = []byte("plant/gis")

// Store holds the plant's single gas-in-store record. Mutations are
// serialized so fill never escapes [0, max].
type Store struct {
	db  *pebblestore.DB
	max int
	mu  sync.Mutex
}

// StoreOption tunes the store.
type StoreOption func(*Store)

// WithMaxFillLevel overrides the default capacity.
func WithMaxFillLevel(max int) StoreOption {
	return func(s *Store) {
		if max > 0 {
			s.max = max
		}
	}
}

// NewStore opens the plant store on db.
func NewStore(db *pebblestore.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, max: DefaultMaxFillLevel}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fill returns the current overall gas in store. Absent means empty.
func (s *Store) Fill() (int, error) {
	b, err := s.db.Get(keyFill)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("plant: corrupt fill record %q: %w", b, err)
	}
	return v, nil
}

// MaxFillLevel returns the configured capacity.
func (s *Store) MaxFillLevel() int { return s.max }

// SetFill overwrites the record, clamped to [0, max]. Used for seeding.
func (s *Store) SetFill(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > s.max {
		v = s.max
	}
	return s.write(v)
}

// Inject adds amount and returns the new fill. The record is untouched when
// the result would exceed capacity.
func (s *Store) Inject(amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.Fill()
	if err != nil {
		return 0, err
	}
	next := current + amount
	if next > s.max {
		return current, ErrOverCapacity
	}
	if err := s.write(next); err != nil {
		return current, err
	}
	return next, nil
}

// Withdraw removes amount and returns the new fill. The record is untouched
// when the result would go negative.
func (s *Store) Withdraw(amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.Fill()
	if err != nil {
		return 0, err
	}
	next := current - amount
	if next < 0 {
		return current, ErrInsufficientGas
	}
	if err := s.write(next); err != nil {
		return current, err
	}
	return next, nil
}

func (s *Store) write(v int) error {
	return s.db.Put(keyFill, []byte(strconv.Itoa(v)))
}
