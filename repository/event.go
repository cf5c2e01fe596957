package repository

import (
	"context"

	"github.com/fastygo/ledger/domain"
)

// EventStore is the append-only, per-stream event log.
//
// Append commits all events as one unit with contiguous sequence numbers
// following expectedSequence. It fails with domain.ErrConcurrencyConflict when
// the stream's latest sequence differs from expectedSequence at commit time.
type EventStore interface {
	Append(ctx context.Context, aggregateID string, expectedSequence int64, events []domain.Event, metadata map[string]string) ([]domain.Envelope, error)
	Load(ctx context.Context, aggregateID string) ([]domain.Envelope, error)
	AggregateIDs(ctx context.Context) ([]string, error)
}
