package inbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loekd/MissionCriticalDemo/internal/ledger"
	"github.com/loekd/MissionCriticalDemo/internal/messages"
	"github.com/loekd/MissionCriticalDemo/internal/relay"
	"github.com/loekd/MissionCriticalDemo/internal/tracing"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Notifier receives status updates produced while applying responses.
type Notifier interface {
	Notify(ctx context.Context, update messages.StatusUpdate) error
}

// Outcome tags the result of applying one response.
type Outcome int

const (
	// OutcomeApplied means the ledger was updated and a notification sent.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the response id was seen recently and skipped.
	OutcomeDuplicate
	// OutcomeRejected means the plant reported failure; the ledger was left
	// untouched and the notification carries the last known quantity.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Relay persists inbound responses for later application.
type Relay struct {
	queue  *relay.Queue
	logger log.Logger
}

// NewRelay builds the admission side of the inbox.
func NewRelay(q *relay.Queue, logger log.Logger) *Relay {
	return &Relay{queue: q, logger: logger.WithComponent("inbox")}
}

// Receive stores an inbound response keyed by its response id, together with
// the trace context it arrived with. The write is the acknowledgement: once
// it succeeds the response will eventually be applied.
func (r *Relay) Receive(ctx context.Context, resp messages.Response, carrier tracing.Carrier) error {
	payload, err := messages.Encode(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := r.queue.Enqueue(ctx, resp.ResponseID.String(), payload, carrier); err != nil {
		return fmt.Errorf("enqueue response: %w", err)
	}
	r.logger.Debug("response received",
		log.Str("response_id", resp.ResponseID.String()),
		log.Bool("success", resp.Success))
	return nil
}

// Pending reports the number of tracked unapplied responses.
func (r *Relay) Pending() (int, error) { return r.queue.Len() }

// WorkerConfig tunes the apply loop. Zero durations fall back to defaults;
// DedupWindow 0 disables duplicate detection.
type WorkerConfig struct {
	WarmUp         time.Duration
	PollInterval   time.Duration
	FailureBackoff time.Duration
	// DedupWindow is the number of recently applied response ids remembered
	// to absorb redeliveries between apply and remove.
	DedupWindow int
}

const (
	defaultWarmUp         = 10 * time.Second
	defaultPollInterval   = time.Second
	defaultFailureBackoff = 10 * time.Second
)

// Worker drains the inbox and applies each response to the ledger.
type Worker struct {
	queue    *relay.Queue
	ledger   *ledger.Ledger
	notifier Notifier
	logger   log.Logger
	tracer   trace.Tracer
	seen     *seenSet

	warmUp  time.Duration
	poll    time.Duration
	backoff time.Duration
}

// NewWorker builds the apply loop.
func NewWorker(q *relay.Queue, l *ledger.Ledger, n Notifier, logger log.Logger, cfg WorkerConfig) *Worker {
	if cfg.WarmUp <= 0 {
		cfg.WarmUp = defaultWarmUp
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = defaultFailureBackoff
	}
	w := &Worker{
		queue:    q,
		ledger:   l,
		notifier: n,
		logger:   logger.WithComponent("inbox.worker"),
		tracer:   tracing.Tracer("inbox"),
		warmUp:   cfg.WarmUp,
		poll:     cfg.PollInterval,
		backoff:  cfg.FailureBackoff,
	}
	if cfg.DedupWindow > 0 {
		w.seen = newSeenSet(cfg.DedupWindow)
	}
	return w
}

// Run blocks until ctx is cancelled, applying pending responses in cycles.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker starting", log.Dur("warm_up", w.warmUp))
	if err := sleepCtx(ctx, w.warmUp); err != nil {
		return nil
	}
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping")
			return nil
		}
		delay := w.poll
		if err := w.cycle(ctx); err != nil {
			w.logger.Error("apply cycle failed", log.Err(err), log.Dur("backoff", w.backoff))
			delay = w.backoff
		}
		if err := sleepCtx(ctx, delay); err != nil {
			w.logger.Info("worker stopping")
			return nil
		}
	}
}

func (w *Worker) cycle(ctx context.Context) error {
	items, err := w.queue.Drain(ctx)
	if err != nil {
		return fmt.Errorf("drain inbox: %w", err)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return nil
		}
		w.process(ctx, item)
	}
	return nil
}

// process applies one persisted response. The item is removed on every path
// except a failed apply, so a poison payload cannot wedge the queue while a
// transient ledger error still earns a retry.
func (w *Worker) process(ctx context.Context, item relay.Item) {
	mctx := item.Trace.ContextWith(ctx)
	mctx, span := w.tracer.Start(mctx, "inbox apply",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	resp, err := messages.DecodeResponse(item.Payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		w.logger.Warn("discarding undecodable response",
			log.Str("key", item.Key), log.Err(err))
		w.remove(mctx, item.Key)
		return
	}

	outcome, err := w.apply(mctx, resp)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		w.logger.Warn("apply failed, response stays queued",
			log.Str("response_id", resp.ResponseID.String()), log.Err(err))
		return
	}

	w.logger.Info("response processed",
		log.Str("response_id", resp.ResponseID.String()),
		log.Str("outcome", outcome.String()))
	w.remove(mctx, item.Key)
}

// apply updates the ledger and notifies subscribers. The ledger write keeps
// the original read-then-set shape: concurrent writers are last-writer-wins,
// which the single-worker model makes safe within one process.
func (w *Worker) apply(ctx context.Context, resp messages.Response) (Outcome, error) {
	if w.seen != nil && w.seen.contains(resp.ResponseID) {
		return OutcomeDuplicate, nil
	}

	current, err := w.ledger.Quantity(resp.CustomerID)
	if err != nil {
		return 0, fmt.Errorf("read quantity: %w", err)
	}

	if !resp.Success {
		w.notify(ctx, messages.StatusFromResponse(resp, current))
		w.markSeen(resp.ResponseID)
		return OutcomeRejected, nil
	}

	total := current + messages.SignedDelta(resp.Direction, resp.AmountInGWh)
	if err := w.ledger.SetQuantity(resp.CustomerID, total); err != nil {
		return 0, fmt.Errorf("write quantity: %w", err)
	}
	if err := w.ledger.CacheFillLevel(resp.CurrentFillLevel); err != nil {
		return 0, fmt.Errorf("cache fill level: %w", err)
	}
	if err := w.ledger.CacheMaxFillLevel(resp.MaxFillLevel); err != nil {
		return 0, fmt.Errorf("cache max fill level: %w", err)
	}

	w.notify(ctx, messages.StatusFromResponse(resp, total))
	w.markSeen(resp.ResponseID)
	return OutcomeApplied, nil
}

func (w *Worker) notify(ctx context.Context, update messages.StatusUpdate) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, update); err != nil {
		w.logger.Warn("notification failed",
			log.Str("response_id", update.ResponseID.String()), log.Err(err))
	}
}

// markSeen records a response id once its apply has fully succeeded. A
// failed apply must not mark the id, or the retry would be misread as a
// duplicate and the update lost.
func (w *Worker) markSeen(id uuid.UUID) {
	if w.seen != nil {
		w.seen.record(id)
	}
}

func (w *Worker) remove(ctx context.Context, key string) {
	if err := w.queue.Remove(ctx, key); err != nil {
		w.logger.Warn("remove failed, response will be seen again",
			log.Str("key", key), log.Err(err))
	}
}

// seenSet is a fixed-size ring of recently observed response ids.
type seenSet struct {
	mu    sync.Mutex
	ids   map[uuid.UUID]struct{}
	order []uuid.UUID
	next  int
}

func newSeenSet(size int) *seenSet {
	return &seenSet{
		ids:   make(map[uuid.UUID]struct{}, size),
		order: make([]uuid.UUID, size),
	}
}

// contains reports whether id has been recorded.
func (s *seenSet) contains(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// record remembers id, evicting the oldest entry when the ring is full.
func (s *seenSet) record(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return
	}
	if old := s.order[s.next]; old != uuid.Nil {
		delete(s.ids, old)
	}
	s.order[s.next] = id
	s.next = (s.next + 1) % len(s.order)
	s.ids[id] = struct{}{}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
