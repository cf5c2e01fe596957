package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/ledger/domain"
)

type EventStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewEventStore creates a Postgres-backed event log.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool, now: time.Now}
}

func (s *EventStore) Append(ctx context.Context, aggregateID string, expectedSequence int64, events []domain.Event, metadata map[string]string) ([]domain.Envelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	envelopes := domain.Stamp(aggregateID, expectedSequence, events, metadata, s.now())
	meta := marshalMap(metadata)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.StoreError("begin append", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM events WHERE aggregate_id = $1`,
		aggregateID,
	).Scan(&current); err != nil {
		return nil, domain.StoreError("read stream head", err)
	}
	if current != expectedSequence {
		return nil, domain.ErrConcurrencyConflict
	}

	const insert = `
	INSERT INTO events (id, aggregate_id, sequence, event_type, payload, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	batch := &pgx.Batch{}
	for _, env := range envelopes {
		payload, err := domain.EncodeEvent(env.Event)
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInternal, "encode event", err)
		}
		batch.Queue(insert, env.ID, env.AggregateID, env.Sequence, string(env.Type), payload, meta, env.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range envelopes {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			if isUniqueViolation(err) {
				return nil, domain.ErrConcurrencyConflict
			}
			return nil, domain.StoreError("insert event", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, domain.StoreError("insert event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConcurrencyConflict
		}
		return nil, domain.StoreError("commit append", err)
	}
	return envelopes, nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]domain.Envelope, error) {
	const query = `
	SELECT id, aggregate_id, sequence, event_type, payload, metadata, created_at
	FROM events
	WHERE aggregate_id = $1
	ORDER BY sequence
	`
	rows, err := s.pool.Query(ctx, query, aggregateID)
	if err != nil {
		return nil, domain.StoreError("load events", err)
	}
	defer rows.Close()

	var envelopes []domain.Envelope
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, env)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("load events", err)
	}
	return envelopes, nil
}

func (s *EventStore) AggregateIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT aggregate_id FROM events ORDER BY aggregate_id`)
	if err != nil {
		return nil, domain.StoreError("list aggregates", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.StoreError("scan aggregate id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *EventStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
