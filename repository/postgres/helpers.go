// Package postgres implements the event log and read model on pgx.
package postgres

import (
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

var (
	_ repository.EventStore       = (*EventStore)(nil)
	_ repository.AccountReadModel = (*AccountReadModel)(nil)
)

const uniqueViolation = "23505"

func marshalMap(data map[string]string) []byte {
	if len(data) == 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanEnvelope(row interface {
	Scan(dest ...interface{}) error
}) (domain.Envelope, error) {
	var (
		env       domain.Envelope
		eventType string
		payload   []byte
		metadata  []byte
	)
	if err := row.Scan(
		&env.ID,
		&env.AggregateID,
		&env.Sequence,
		&eventType,
		&payload,
		&metadata,
		&env.CreatedAt,
	); err != nil {
		return domain.Envelope{}, domain.StoreError("scan event", err)
	}

	env.Type = domain.EventType(eventType)
	evt, err := domain.DecodeEvent(env.Type, payload)
	if err != nil {
		return domain.Envelope{}, err
	}
	env.Event = evt
	env.CreatedAt = env.CreatedAt.UTC()
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &env.Metadata); err != nil {
			return domain.Envelope{}, domain.WrapError(domain.ErrCodeInternal, "decode event metadata", err)
		}
	}
	return env, nil
}
