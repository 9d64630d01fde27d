// Package tracing carries distributed-trace correlation context across the
// boundaries where the ambient Go context is lost: the durable store (relay
// items persist a serialized carrier next to the message key) and the bus
// (W3C traceparent/tracestate headers).
//
// Propagation is best-effort instrumentation. Malformed or missing context
// yields a zero carrier and a root span; it never fails a business operation.
package tracing
