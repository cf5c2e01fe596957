package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fastygo/ledger/domain"
)

type EventStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

func (s *EventStore) Append(ctx context.Context, aggregateID string, expectedSequence int64, events []domain.Event, metadata map[string]string) ([]domain.Envelope, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("append events", err)
	}

	envelopes := domain.Stamp(aggregateID, expectedSequence, events, metadata, s.now())
	meta, err := marshalMap(metadata)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "encode metadata", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StoreError("begin append", err)
	}
	defer tx.Rollback()

	var current int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM events WHERE aggregate_id = ?`,
		aggregateID,
	).Scan(&current); err != nil {
		return nil, domain.StoreError("read stream head", err)
	}
	if current != expectedSequence {
		return nil, domain.ErrConcurrencyConflict
	}

	for _, env := range envelopes {
		payload, err := domain.EncodeEvent(env.Event)
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInternal, "encode event", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, aggregate_id, sequence, event_type, payload, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			env.ID,
			env.AggregateID,
			env.Sequence,
			string(env.Type),
			string(payload),
			meta,
			toMillis(env.CreatedAt),
		); err != nil {
			if isConstraintError(err) {
				return nil, domain.ErrConcurrencyConflict
			}
			return nil, domain.StoreError("insert event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isConstraintError(err) {
			return nil, domain.ErrConcurrencyConflict
		}
		return nil, domain.StoreError("commit append", err)
	}
	return envelopes, nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]domain.Envelope, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, sequence, event_type, payload, metadata, created_at
		 FROM events
		 WHERE aggregate_id = ?
		 ORDER BY sequence`,
		aggregateID,
	)
	if err != nil {
		return nil, domain.StoreError("load events", err)
	}
	defer rows.Close()

	var envelopes []domain.Envelope
	for rows.Next() {
		var (
			env       domain.Envelope
			eventType string
			payload   []byte
			meta      []byte
			createdAt int64
		)
		if err := rows.Scan(&env.ID, &env.AggregateID, &env.Sequence, &eventType, &payload, &meta, &createdAt); err != nil {
			return nil, domain.StoreError("scan event", err)
		}
		env.Type = domain.EventType(eventType)
		env.Event, err = domain.DecodeEvent(env.Type, payload)
		if err != nil {
			return nil, err
		}
		env.Metadata, err = unmarshalMap(meta)
		if err != nil {
			return nil, err
		}
		env.CreatedAt = fromMillis(createdAt)
		envelopes = append(envelopes, env)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("load events", err)
	}
	return envelopes, nil
}

func (s *EventStore) AggregateIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT aggregate_id FROM events ORDER BY aggregate_id`)
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
	return s.db.PingContext(ctx)
}
