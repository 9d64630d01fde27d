package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
	"github.com/loekd/MissionCriticalDemo/internal/tracing"
)

// Store is the slice of the durable store the queue needs: point reads and
// all-or-nothing batches. *pebblestore.DB satisfies it.
type Store interface {
	Get(key []byte) ([]byte, error)
	Apply(ctx context.Context, ops []pebblestore.Op) error
}

// Item is one pending message produced by Drain.
type Item struct {
	Key     string
	Payload []byte
	Trace   tracing.Carrier
}

// tracker is the enumeration index, stored under a single well-known key as
// JSON. messageKeys is exactly the set of persisted, not-yet-drained message
// ids; traceContexts may only hold keys present in messageKeys (stray entries
// are pruned on Remove).
type tracker struct {
	MessageKeys   []string                   `json:"messageKeys"`
	TraceContexts map[string]tracing.Carrier `json:"traceContexts,omitempty"`
}

func (tr *tracker) has(key string) bool {
	for _, k := range tr.MessageKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Queue is a key-tracked message queue bound to one tracker record.
type Queue struct {
	store Store
	name  string

	// mu serializes tracker read-modify-write cycles within this process.
	// Cross-process drains may still race; the system is at-least-once.
	mu sync.Mutex
}

// New creates a queue named name (e.g. "outbox"). The name prefixes all of
// the queue's keys.
func New(store Store, name string) *Queue {
	return &Queue{store: store, name: name}
}

func (q *Queue) itemKey(key string) []byte {
	return []byte(q.name + "/m/" + key)
}

func (q *Queue) trackerKey() []byte {
	return []byte(q.name + "/keys")
}

func (q *Queue) loadTracker() (tracker, error) {
	var tr tracker
	b, err := q.store.Get(q.trackerKey())
	if errors.Is(err, pebblestore.ErrNotFound) {
		return tr, nil
	}
	if err != nil {
		return tr, err
	}
	if err := json.Unmarshal(b, &tr); err != nil {
		return tr, fmt.Errorf("relay: corrupt tracker %s: %w", q.name, err)
	}
	return tr, nil
}

// Enqueue persists the payload and inserts its key (and trace context, when
// present) into the tracker as one transaction.
func (q *Queue) Enqueue(ctx context.Context, key string, payload []byte, trace tracing.Carrier) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	tr, err := q.loadTracker()
	if err != nil {
		return err
	}
	if !tr.has(key) {
		tr.MessageKeys = append(tr.MessageKeys, key)
	}
	if !trace.Empty() {
		if tr.TraceContexts == nil {
			tr.TraceContexts = make(map[string]tracing.Carrier)
		}
		tr.TraceContexts[key] = trace
	}
	trBytes, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return q.store.Apply(ctx, []pebblestore.Op{
		pebblestore.PutOp(q.itemKey(key), payload),
		pebblestore.PutOp(q.trackerKey(), trBytes),
	})
}

// timestamped extracts the ordering field shared by requests and responses.
type timestamped struct {
	Timestamp time.Time `json:"timestamp"`
}

// Drain returns all pending items, newest first by payload timestamp. Keys
// whose payload has already been deleted by a concurrent drain are skipped.
func (q *Queue) Drain(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tr, err := q.loadTracker()
	if err != nil {
		return nil, err
	}

	type ordered struct {
		item Item
		ts   time.Time
	}
	items := make([]ordered, 0, len(tr.MessageKeys))
	for _, key := range tr.MessageKeys {
		payload, err := q.store.Get(q.itemKey(key))
		if errors.Is(err, pebblestore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var ts timestamped
		_ = json.Unmarshal(payload, &ts)
		items = append(items, ordered{
			item: Item{Key: key, Payload: payload, Trace: tr.TraceContexts[key]},
			ts:   ts.Timestamp,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ts.After(items[j].ts) })

	out := make([]Item, len(items))
	for i := range items {
		out[i] = items[i].item
	}
	return out, nil
}

// Remove deletes the payload and drops the key and its trace entry from the
// tracker as one transaction. Removing an unknown key is a no-op. Trace
// entries without a tracked key are pruned along the way.
func (q *Queue) Remove(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	tr, err := q.loadTracker()
	if err != nil {
		return err
	}
	keys := tr.MessageKeys[:0]
	for _, k := range tr.MessageKeys {
		if k != key {
			keys = append(keys, k)
		}
	}
	tr.MessageKeys = keys
	for k := range tr.TraceContexts {
		if k == key || !tr.has(k) {
			delete(tr.TraceContexts, k)
		}
	}
	trBytes, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return q.store.Apply(ctx, []pebblestore.Op{
		pebblestore.DeleteOp(q.itemKey(key)),
		pebblestore.PutOp(q.trackerKey(), trBytes),
	})
}

// Len reports the number of tracked keys.
func (q *Queue) Len() (int, error) {
	tr, err := q.loadTracker()
	if err != nil {
		return 0, err
	}
	return len(tr.MessageKeys), nil
}
