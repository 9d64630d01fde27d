package plant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loekd/MissionCriticalDemo/internal/messages"
	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
	"github.com/loekd/MissionCriticalDemo/internal/tracing"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, opts...)
}

type capturePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	traces   []tracing.Carrier
}

func (p *capturePublisher) Publish(ctx context.Context, _ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, append([]byte(nil), payload...))
	p.traces = append(p.traces, tracing.FromContext(ctx))
	return nil
}

func (p *capturePublisher) last(t *testing.T) messages.Response {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.payloads) == 0 {
		t.Fatalf("no response published")
	}
	resp, err := messages.DecodeResponse(p.payloads[len(p.payloads)-1])
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func request(direction messages.FlowDirection, amount int) messages.Request {
	return messages.Request{
		RequestID:   uuid.New(),
		CustomerID:  uuid.New(),
		Direction:   direction,
		AmountInGWh: amount,
		Timestamp:   time.Now().UTC(),
	}
}

func TestStoreInjectWithdraw(t *testing.T) {
	s := newTestStore(t)
	if fill, err := s.Inject(30); err != nil || fill != 30 {
		t.Fatalf("inject: %d, %v", fill, err)
	}
	if fill, err := s.Withdraw(10); err != nil || fill != 20 {
		t.Fatalf("withdraw: %d, %v", fill, err)
	}
}

func TestStoreCapacityInvariant(t *testing.T) {
	s := newTestStore(t, WithMaxFillLevel(50))
	if _, err := s.Inject(40); err != nil {
		t.Fatalf("inject: %v", err)
	}
	fill, err := s.Inject(20)
	if !errors.Is(err, ErrOverCapacity) {
		t.Fatalf("want ErrOverCapacity, got %v", err)
	}
	if fill != 40 {
		t.Fatalf("fill must be unchanged, got %d", fill)
	}
}

func TestStoreNonNegativeInvariant(t *testing.T) {
	s := newTestStore(t)
	fill, err := s.Withdraw(1)
	if !errors.Is(err, ErrInsufficientGas) {
		t.Fatalf("want ErrInsufficientGas, got %v", err)
	}
	if fill != 0 {
		t.Fatalf("fill must be unchanged, got %d", fill)
	}
}

func TestStoreSetFillClamps(t *testing.T) {
	s := newTestStore(t, WithMaxFillLevel(50))
	if err := s.SetFill(200); err != nil {
		t.Fatalf("set: %v", err)
	}
	if fill, _ := s.Fill(); fill != 50 {
		t.Fatalf("want clamp to 50, got %d", fill)
	}
	if err := s.SetFill(-3); err != nil {
		t.Fatalf("set: %v", err)
	}
	if fill, _ := s.Fill(); fill != 0 {
		t.Fatalf("want clamp to 0, got %d", fill)
	}
}

func TestProcessorSuccessResponse(t *testing.T) {
	s := newTestStore(t)
	pub := &capturePublisher{}
	p := NewProcessor(s, pub, log.NewTestLogger(), WithProcessingDelay(0))

	req := request(messages.Inject, 25)
	payload, _ := messages.Encode(req)
	if err := p.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	resp := pub.last(t)
	if !resp.Success {
		t.Fatalf("want success response: %+v", resp)
	}
	if resp.RequestID != req.RequestID || resp.CustomerID != req.CustomerID {
		t.Fatalf("response does not echo request: %+v", resp)
	}
	if resp.CurrentFillLevel != 25 || resp.MaxFillLevel != DefaultMaxFillLevel {
		t.Fatalf("fill levels wrong: %+v", resp)
	}
}

func TestProcessorFailureResponseOnOverCapacity(t *testing.T) {
	s := newTestStore(t, WithMaxFillLevel(10))
	pub := &capturePublisher{}
	p := NewProcessor(s, pub, log.NewTestLogger(), WithProcessingDelay(0))

	payload, _ := messages.Encode(request(messages.Inject, 25))
	if err := p.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}

	resp := pub.last(t)
	if resp.Success {
		t.Fatalf("over-capacity must fail: %+v", resp)
	}
	if resp.CurrentFillLevel != 0 {
		t.Fatalf("fill must be unchanged: %+v", resp)
	}
	if fill, _ := s.Fill(); fill != 0 {
		t.Fatalf("store mutated on failure: %d", fill)
	}
}

func TestProcessorContinuesTrace(t *testing.T) {
	s := newTestStore(t)
	pub := &capturePublisher{}
	p := NewProcessor(s, pub, log.NewTestLogger(), WithProcessingDelay(0))

	carrier := tracing.Carrier{
		TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
		SpanID:  "00f067aa0ba902b7",
		Flags:   "01",
	}
	ctx := carrier.ContextWith(context.Background())
	payload, _ := messages.Encode(request(messages.Withdraw, 0))
	_ = p.Handle(ctx, payload)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.traces) != 1 || pub.traces[0].TraceID != carrier.TraceID {
		t.Fatalf("response not published under the request trace: %+v", pub.traces)
	}
}

func TestProcessorIgnoresGarbage(t *testing.T) {
	s := newTestStore(t)
	pub := &capturePublisher{}
	p := NewProcessor(s, pub, log.NewTestLogger(), WithProcessingDelay(0))
	if err := p.Handle(context.Background(), []byte("{broken")); err != nil {
		t.Fatalf("garbage must not error the loop: %v", err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.payloads) != 0 {
		t.Fatalf("garbage must not produce a response")
	}
}
