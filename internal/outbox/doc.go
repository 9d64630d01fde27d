// Package outbox implements the dispatch-side outgoing relay. Requests are
// admitted against the ledger, persisted with the active trace context, and
// delivered to the bus by a background worker with at-least-once semantics.
package outbox
