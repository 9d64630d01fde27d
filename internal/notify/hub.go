package notify

import (
	"sync"

	"github.com/loekd/MissionCriticalDemo/internal/messages"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Event is one update as delivered to stream subscribers.
type Event struct {
	Seq     uint64
	Update  messages.StatusUpdate
	Payload []byte
}

// Subscriber is one registered stream client. Events arrive on Events();
// when the client falls behind its buffer, events are dropped and Dropped()
// reflects the count.
type Subscriber struct {
	ch      chan Event
	filter  Filter
	mu      sync.Mutex
	dropped int
}

// Events is the subscriber's delivery channel. Closed on Unsubscribe.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Dropped reports how many events were discarded for this subscriber.
func (s *Subscriber) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Hub fans events out to subscribers without ever blocking the sender.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	logger log.Logger
}

// NewHub builds an empty hub.
func NewHub(logger log.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		logger: logger.WithComponent("notify.hub"),
	}
}

const defaultSubscriberBuffer = 32

// Subscribe registers a client with the given filter. Buffer <= 0 uses the
// default.
func (h *Hub) Subscribe(filter Filter, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	s := &Subscriber{ch: make(chan Event, buffer), filter: filter}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes the client and closes its channel.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
	h.mu.Unlock()
}

// Broadcast offers the event to every subscriber whose filter matches. A
// full subscriber buffer drops the event for that subscriber only.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.filter.Match(ev.Update, ev.Payload) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			h.logger.Debug("subscriber lagging, event dropped", log.Int64("seq", int64(ev.Seq)))
		}
	}
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
