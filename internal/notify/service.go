package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loekd/MissionCriticalDemo/internal/messages"
	pebblestore "github.com/loekd/MissionCriticalDemo/internal/storage/pebble"
	"github.com/loekd/MissionCriticalDemo/pkg/log"
)

// Service ties the durable journal and the live hub together. It satisfies
// the inbox worker's Notifier contract.
type Service struct {
	hub     *Hub
	journal *Journal
	logger  log.Logger
}

// New opens the journal on db and builds the fan-out hub.
func New(db *pebblestore.DB, logger log.Logger) (*Service, error) {
	journal, err := OpenJournal(db)
	if err != nil {
		return nil, fmt.Errorf("open notification journal: %w", err)
	}
	return &Service{
		hub:     NewHub(logger),
		journal: journal,
		logger:  logger.WithComponent("notify"),
	}, nil
}

// Notify journals the update and broadcasts it to live subscribers. The
// journal write is the durable part; broadcast is best effort.
func (s *Service) Notify(ctx context.Context, update messages.StatusUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode status update: %w", err)
	}
	seq, err := s.journal.Append(ctx, payload)
	if err != nil {
		return err
	}
	s.hub.Broadcast(Event{Seq: seq, Update: update, Payload: payload})
	return nil
}

// Subscribe compiles the filter expression and registers a live subscriber.
func (s *Service) Subscribe(filterExpr string, buffer int) (*Subscriber, error) {
	filter, err := NewFilter(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	return s.hub.Subscribe(filter, buffer), nil
}

// Unsubscribe removes a live subscriber.
func (s *Service) Unsubscribe(sub *Subscriber) { s.hub.Unsubscribe(sub) }

// Replay returns journaled events newer than the given sequence, applying
// the same filter semantics as live delivery.
func (s *Service) Replay(after uint64, filterExpr string, limit int) ([]Event, error) {
	filter, err := NewFilter(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	entries, err := s.journal.ReadAfter(after, limit)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	out := make([]Event, 0, len(entries))
	for _, e := range entries {
		var update messages.StatusUpdate
		if err := json.Unmarshal(e.Payload, &update); err != nil {
			s.logger.Warn("skipping unreadable journal entry", log.Int64("seq", int64(e.Seq)), log.Err(err))
			continue
		}
		if !filter.Match(update, e.Payload) {
			continue
		}
		out = append(out, Event{Seq: e.Seq, Update: update, Payload: e.Payload})
	}
	return out, nil
}

// Last returns the newest journaled sequence.
func (s *Service) Last() uint64 { return s.journal.Last() }
