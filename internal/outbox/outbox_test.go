package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loekd/MissionCriticalDemo/internal/ledger"
	"github.com/loekd/MissionCriticalDemo/internal/messages"
	"github.com/loekd/MissionCriticalDemo/internal/relay"
	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, append([]byte(nil), payload...))
	return nil
}

func (p *fakePublisher) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func newTestRelay(t *testing.T) (*Relay, *relay.Queue, *ledger.Ledger) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	led := ledger.New(db)
	q := relay.New(db, "outbox")
	return NewRelay(led, q, log.NewTestLogger()), q, led
}

func validRequest(customer uuid.UUID) messages.Request {
	return messages.Request{
		RequestID:   uuid.New(),
		CustomerID:  customer,
		Direction:   messages.Inject,
		AmountInGWh: 5,
		Timestamp:   time.Now().UTC(),
	}
}

func TestSubmitThenDeliverRemoves(t *testing.T) {
	r, q, _ := newTestRelay(t)
	ctx := context.Background()
	req := validRequest(uuid.New())

	if err := r.Submit(ctx, req); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if n, _ := r.Pending(); n != 1 {
		t.Fatalf("want 1 pending, got %d", n)
	}

	pub := &fakePublisher{}
	w := NewWorker(q, pub, log.NewTestLogger(), WorkerConfig{})
	if err := w.cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if pub.count() != 1 {
		t.Fatalf("want 1 published message, got %d", pub.count())
	}
	if n, _ := r.Pending(); n != 0 {
		t.Fatalf("delivered request still pending: %d", n)
	}

	got, err := messages.DecodeRequest(pub.payloads[0])
	if err != nil {
		t.Fatalf("decode published payload: %v", err)
	}
	if got.RequestID != req.RequestID || got.AmountInGWh != req.AmountInGWh {
		t.Fatalf("payload mismatch: %+v vs %+v", got, req)
	}
}

func TestSubmitRejectsOverdraw(t *testing.T) {
	r, _, led := newTestRelay(t)
	ctx := context.Background()
	customer := uuid.New()
	if err := led.SetQuantity(customer, 3); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	req := validRequest(customer)
	req.Direction = messages.Withdraw
	req.AmountInGWh = 10
	err := r.Submit(ctx, req)
	if !errors.Is(err, ledger.ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock, got %v", err)
	}
	if n, _ := r.Pending(); n != 0 {
		t.Fatalf("rejected request was persisted: %d pending", n)
	}
}

func TestSubmitRejectsMalformedRequest(t *testing.T) {
	r, _, _ := newTestRelay(t)
	req := validRequest(uuid.New())
	req.AmountInGWh = 0
	if err := r.Submit(context.Background(), req); err == nil {
		t.Fatalf("zero amount must be rejected")
	}
	req = validRequest(uuid.New())
	req.Direction = "sideways"
	if err := r.Submit(context.Background(), req); err == nil {
		t.Fatalf("unknown direction must be rejected")
	}
}

func TestFailedPublishKeepsRequestUntilRecovery(t *testing.T) {
	r, q, _ := newTestRelay(t)
	ctx := context.Background()
	if err := r.Submit(ctx, validRequest(uuid.New())); err != nil {
		t.Fatalf("submit: %v", err)
	}

	pub := &fakePublisher{err: errors.New("broker down")}
	w := NewWorker(q, pub, log.NewTestLogger(), WorkerConfig{})

	if err := w.cycle(ctx); err != nil {
		t.Fatalf("cycle with failing publisher: %v", err)
	}
	if n, _ := r.Pending(); n != 1 {
		t.Fatalf("failed request must stay queued, got %d pending", n)
	}

	pub.setErr(nil)
	if err := w.cycle(ctx); err != nil {
		t.Fatalf("cycle after recovery: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("want exactly one delivery after recovery, got %d", pub.count())
	}
	if n, _ := r.Pending(); n != 0 {
		t.Fatalf("recovered request still pending: %d", n)
	}
}

func TestWorkerStopsOnCancel(t *testing.T) {
	_, q, _ := newTestRelay(t)
	w := NewWorker(q, &fakePublisher{}, log.NewTestLogger(), WorkerConfig{
		WarmUp:       time.Millisecond,
		PollInterval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop on cancel")
	}
}
