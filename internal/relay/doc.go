// Package relay implements the key-tracked queue both relays are built on.
//
// The durable store offers point lookups and transactional writes but no way
// to enumerate keys, so each queue maintains an explicit index record (the
// tracker) holding the set of pending message keys and, per key, an optional
// serialized trace context. Item and tracker are always written or deleted in
// the same transactional batch; no partial state is observable outside a
// batch boundary.
//
// Draining reads the tracker and then performs one point lookup per key.
// Items already removed by a concurrent drainer are skipped silently.
// Ordering is best-effort by the payload's timestamp field, newest first.
package relay
