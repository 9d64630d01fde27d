package ledger

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
)

func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, opts...)
}

func TestQuantityDefaultsToZero(t *testing.T) {
	l := newTestLedger(t)
	q, err := l.Quantity(uuid.New())
	if err != nil {
		t.Fatalf("quantity: %v", err)
	}
	if q != 0 {
		t.Fatalf("want 0, got %d", q)
	}
}

func TestSetAndAddQuantity(t *testing.T) {
	l := newTestLedger(t)
	id := uuid.New()
	if err := l.SetQuantity(id, 10); err != nil {
		t.Fatalf("set: %v", err)
	}
	q, err := l.Quantity(id)
	if err != nil || q != 10 {
		t.Fatalf("quantity: %d %v", q, err)
	}
	next, err := l.AddQuantity(id, -4)
	if err != nil || next != 6 {
		t.Fatalf("add: %d %v", next, err)
	}
}

func TestValidate(t *testing.T) {
	l := newTestLedger(t, WithMaxCapacity(100))
	id := uuid.New()
	if err := l.SetQuantity(id, 10); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := l.Validate(id, 5); err != nil {
		t.Fatalf("valid inject rejected: %v", err)
	}
	if err := l.Validate(id, -10); err != nil {
		t.Fatalf("withdraw to zero rejected: %v", err)
	}
	if err := l.Validate(id, -20); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock, got %v", err)
	}
	if err := l.Validate(id, 95); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("want ErrCapacityExceeded, got %v", err)
	}
}

func TestValidateUnboundedCapacity(t *testing.T) {
	l := newTestLedger(t)
	id := uuid.New()
	if err := l.Validate(id, 1_000_000); err != nil {
		t.Fatalf("no capacity configured, inject must pass: %v", err)
	}
}

func TestCachedLevelsUnknownUntilSet(t *testing.T) {
	l := newTestLedger(t)
	if _, ok, err := l.CachedFillLevel(); err != nil || ok {
		t.Fatalf("fill level should be unknown: ok=%v err=%v", ok, err)
	}
	if _, ok, err := l.CachedMaxFillLevel(); err != nil || ok {
		t.Fatalf("max fill level should be unknown: ok=%v err=%v", ok, err)
	}

	if err := l.CacheFillLevel(55); err != nil {
		t.Fatalf("cache fill: %v", err)
	}
	if err := l.CacheMaxFillLevel(100); err != nil {
		t.Fatalf("cache max: %v", err)
	}
	v, ok, err := l.CachedFillLevel()
	if err != nil || !ok || v != 55 {
		t.Fatalf("fill: %d %v %v", v, ok, err)
	}
	m, ok, err := l.CachedMaxFillLevel()
	if err != nil || !ok || m != 100 {
		t.Fatalf("max: %d %v %v", m, ok, err)
	}
}
