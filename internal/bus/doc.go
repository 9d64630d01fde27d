// Package bus carries flow requests and responses between the dispatch and
// plant processes over Kafka. Writers and readers are wrapped with OpenTelemetry
// instrumentation so the W3C trace context travels in message headers.
package bus
