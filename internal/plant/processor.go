package plant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loekd/MissionCriticalDemo/internal/messages"
	"github.com/loekd/MissionCriticalDemo/internal/tracing"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Publisher delivers serialized responses to the bus.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// DefaultProcessingDelay simulates the time the plant needs per request.
const DefaultProcessingDelay = 500 * time.Millisecond

// Processor applies flow requests to the store and publishes the result.
// Its Handle method satisfies the bus subscriber contract.
type Processor struct {
	store  *Store
	pub    Publisher
	logger log.Logger
	tracer trace.Tracer
	delay  time.Duration
}

// ProcessorOption tunes the processor.
type ProcessorOption func(*Processor)

// WithProcessingDelay overrides the simulated processing latency. Zero
// disables it.
func WithProcessingDelay(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.delay = d }
}

// NewProcessor builds the request processor.
func NewProcessor(store *Store, pub Publisher, logger log.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:  store,
		pub:    pub,
		logger: logger.WithComponent("plant.processor"),
		tracer: tracing.Tracer("plant"),
		delay:  DefaultProcessingDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle processes one flow request payload. Every decodable request earns a
// response; capacity violations produce a failure response rather than an
// error so the dispatch side can inform the customer.
func (p *Processor) Handle(ctx context.Context, payload []byte) error {
	req, err := messages.DecodeRequest(payload)
	if err != nil {
		p.logger.Warn("discarding undecodable request", log.Err(err))
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "plant process",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay):
		}
	}

	fill, success, applyErr := p.apply(req)
	if applyErr != nil {
		span.SetStatus(codes.Error, applyErr.Error())
	}

	resp := messages.ResponseForRequest(req, uuid.New(), success, fill, p.store.MaxFillLevel(), time.Now().UTC())
	out, err := messages.Encode(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := p.pub.Publish(ctx, resp.ResponseID.String(), out); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("publish response: %w", err)
	}

	p.logger.Info("request processed",
		log.Str("request_id", req.RequestID.String()),
		log.Str("direction", string(req.Direction)),
		log.Int("amount_gwh", req.AmountInGWh),
		log.Bool("success", success),
		log.Int("fill_level", fill))
	return nil
}

// apply mutates the store. A violated invariant yields success=false with
// the unchanged fill; a store error keeps success=false and is surfaced on
// the span only, since the response must still go out.
func (p *Processor) apply(req messages.Request) (fill int, success bool, err error) {
	switch req.Direction {
	case messages.Inject:
		fill, err = p.store.Inject(req.AmountInGWh)
	case messages.Withdraw:
		fill, err = p.store.Withdraw(req.AmountInGWh)
	default:
		fill, _ = p.store.Fill()
		return fill, false, fmt.Errorf("plant: unknown direction %q", req.Direction)
	}
	if errors.Is(err, ErrOverCapacity) || errors.Is(err, ErrInsufficientGas) {
		return fill, false, err
	}
	if err != nil {
		return fill, false, err
	}
	return fill, true, nil
}
