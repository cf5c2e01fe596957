package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fastygo/ledger/domain"
)

type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]domain.Envelope
	now     func() time.Time
}

func NewEventStore() *EventStore {
	return &EventStore{
		streams: make(map[string][]domain.Envelope),
		now:     time.Now,
	}
}

func (s *EventStore) Append(ctx context.Context, aggregateID string, expectedSequence int64, events []domain.Event, metadata map[string]string) ([]domain.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("append events", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	if int64(len(stream)) != expectedSequence {
		return nil, domain.ErrConcurrencyConflict
	}

	envelopes := domain.Stamp(aggregateID, expectedSequence, events, metadata, s.now())
	s.streams[aggregateID] = append(stream, envelopes...)

	out := make([]domain.Envelope, len(envelopes))
	copy(out, envelopes)
	return out, nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]domain.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("load events", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	out := make([]domain.Envelope, len(stream))
	copy(out, stream)
	return out, nil
}

func (s *EventStore) AggregateIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("list aggregates", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping always succeeds; it lets the monitor treat every driver alike.
func (s *EventStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
