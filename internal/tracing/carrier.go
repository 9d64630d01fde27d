package tracing

import (
	"context"
	"encoding/hex"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Carrier is the serializable form of a span context, persisted alongside
// relay items so a span started before the store write can parent the span
// started by the worker that drains the item later.
type Carrier struct {
	TraceID string `json:"traceId"`
	SpanID  string `json:"spanId"`
	Flags   string `json:"traceFlags"`
	State   string `json:"traceState,omitempty"`
}

// Empty reports whether the carrier holds no usable context.
func (c Carrier) Empty() bool { return c.TraceID == "" || c.SpanID == "" }

// FromContext captures the active span context, if any.
func FromContext(ctx context.Context) Carrier {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return Carrier{}
	}
	return Carrier{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Flags:   fmt.Sprintf("%02x", byte(sc.TraceFlags())),
		State:   sc.TraceState().String(),
	}
}

// SpanContext rebuilds the remote span context. Malformed fields yield the
// zero (invalid) span context rather than an error.
func (c Carrier) SpanContext() trace.SpanContext {
	if c.Empty() {
		return trace.SpanContext{}
	}
	tid, err := trace.TraceIDFromHex(c.TraceID)
	if err != nil {
		return trace.SpanContext{}
	}
	sid, err := trace.SpanIDFromHex(c.SpanID)
	if err != nil {
		return trace.SpanContext{}
	}
	var flags trace.TraceFlags
	if b, err := hex.DecodeString(c.Flags); err == nil && len(b) == 1 {
		flags = trace.TraceFlags(b[0])
	}
	ts, _ := trace.ParseTraceState(c.State)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: flags,
		TraceState: ts,
		Remote:     true,
	})
}

// ContextWith returns ctx with the carrier's span context installed as the
// remote parent. When the carrier is unusable, ctx is returned unchanged.
func (c Carrier) ContextWith(ctx context.Context) context.Context {
	sc := c.SpanContext()
	if !sc.IsValid() {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// ExtractHTTP builds a context parented on the traceparent/tracestate header
// pair of an inbound webhook delivery.
func ExtractHTTP(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": traceparent}
	if tracestate != "" {
		carrier["tracestate"] = tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// InjectMap serializes the active trace context into header form.
func InjectMap(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer { return otel.Tracer(name) }
