package outbox

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loekd/MissionCriticalDemo/internal/ledger"
	"github.com/loekd/MissionCriticalDemo/internal/messages"
	"github.com/loekd/MissionCriticalDemo/internal/relay"
	"github.com/loekd/MissionCriticalDemo/internal/tracing"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Publisher delivers a serialized message to the bus. Implementations are
// bound to a topic at construction.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Relay admits flow requests into the outgoing queue.
type Relay struct {
	ledger *ledger.Ledger
	queue  *relay.Queue
	logger log.Logger
}

// NewRelay builds the admission side of the outbox.
func NewRelay(l *ledger.Ledger, q *relay.Queue, logger log.Logger) *Relay {
	return &Relay{ledger: l, queue: q, logger: logger.WithComponent("outbox")}
}

// Submit validates the request against the ledger and, when admissible,
// persists it for delivery together with the caller's trace context. A
// rejected request leaves the store untouched.
func (r *Relay) Submit(ctx context.Context, req messages.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := r.ledger.Validate(req.CustomerID, messages.SignedDelta(req.Direction, req.AmountInGWh)); err != nil {
		return err
	}

	payload, err := messages.Encode(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := r.queue.Enqueue(ctx, req.RequestID.String(), payload, tracing.FromContext(ctx)); err != nil {
		return fmt.Errorf("enqueue request: %w", err)
	}

	r.logger.Info("request accepted",
		log.Str("request_id", req.RequestID.String()),
		log.Str("customer_id", req.CustomerID.String()),
		log.Str("direction", string(req.Direction)),
		log.Int("amount_gwh", req.AmountInGWh))
	return nil
}

// Pending reports the number of tracked undelivered requests.
func (r *Relay) Pending() (int, error) { return r.queue.Len() }

// WorkerConfig tunes the delivery loop. Zero values fall back to the
// defaults below.
type WorkerConfig struct {
	// WarmUp delays the first cycle so the bus has time to come up.
	WarmUp time.Duration
	// PollInterval is the idle pause between cycles.
	PollInterval time.Duration
	// FailureBackoff is the pause after a cycle-level failure.
	FailureBackoff time.Duration
}

const (
	defaultWarmUp         = 10 * time.Second
	defaultPollInterval   = time.Second
	defaultFailureBackoff = 10 * time.Second
)

// Worker drains the queue and publishes each pending request. Run one
// worker per process.
type Worker struct {
	queue  *relay.Queue
	pub    Publisher
	logger log.Logger
	tracer trace.Tracer

	warmUp  time.Duration
	poll    time.Duration
	backoff time.Duration
}

// NewWorker builds the delivery loop for the given queue and publisher.
func NewWorker(q *relay.Queue, pub Publisher, logger log.Logger, cfg WorkerConfig) *Worker {
	if cfg.WarmUp <= 0 {
		cfg.WarmUp = defaultWarmUp
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = defaultFailureBackoff
	}
	return &Worker{
		queue:   q,
		pub:     pub,
		logger:  logger.WithComponent("outbox.worker"),
		tracer:  tracing.Tracer("outbox"),
		warmUp:  cfg.WarmUp,
		poll:    cfg.PollInterval,
		backoff: cfg.FailureBackoff,
	}
}

// Run blocks until ctx is cancelled, delivering pending requests in cycles.
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
			w.logger.Error("delivery cycle failed", log.Err(err), log.Dur("backoff", w.backoff))
			delay = w.backoff
		}
		if err := sleepCtx(ctx, delay); err != nil {
			w.logger.Info("worker stopping")
			return nil
		}
	}
}

// cycle drains the tracked requests and attempts delivery of each. A failed
// item stays tracked for the next cycle; the rest of the batch still runs.
func (w *Worker) cycle(ctx context.Context) error {
	items, err := w.queue.Drain(ctx)
	if err != nil {
		return fmt.Errorf("drain outbox: %w", err)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return nil
		}
		w.deliver(ctx, item)
	}
	return nil
}

func (w *Worker) deliver(ctx context.Context, item relay.Item) {
	mctx := item.Trace.ContextWith(ctx)
	mctx, span := w.tracer.Start(mctx, "outbox publish",
		trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	if err := w.pub.Publish(mctx, item.Key, item.Payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		w.logger.Warn("publish failed, request stays queued",
			log.Str("request_id", item.Key), log.Err(err))
		return
	}
	if err := w.queue.Remove(mctx, item.Key); err != nil {
		// The request will be published again next cycle; consumers must
		// treat redelivery as routine.
		w.logger.Warn("remove after publish failed",
			log.Str("request_id", item.Key), log.Err(err))
		return
	}
	w.logger.Debug("request delivered", log.Str("request_id", item.Key))
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
