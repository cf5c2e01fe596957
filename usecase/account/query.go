package account

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

// Queries serves the read side. Results come from the materialized tables and
// may lag the event log by the projection step.
type Queries struct {
	readModel repository.AccountReadModel
	events    repository.EventStore
	logger    *zap.Logger
}

func NewQueries(readModel repository.AccountReadModel, events repository.EventStore, logger *zap.Logger) *Queries {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queries{readModel: readModel, events: events, logger: logger}
}

func (q *Queries) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := q.readModel.GetAccount(ctx, id)
	if err != nil {
		return nil, domain.StoreError("get account", err)
	}
	return account, nil
}

func (q *Queries) ListChecks(ctx context.Context, accountID string) ([]domain.Check, error) {
	checks, err := q.readModel.ListChecks(ctx, accountID)
	if err != nil {
		return nil, domain.StoreError("list checks", err)
	}
	return checks, nil
}

func (q *Queries) ListLedgerEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	entries, err := q.readModel.ListLedgerEntries(ctx, accountID)
	if err != nil {
		return nil, domain.StoreError("list ledger entries", err)
	}
	return entries, nil
}

// ListEvents returns the committed stream, read straight from the event log.
func (q *Queries) ListEvents(ctx context.Context, accountID string) ([]domain.Envelope, error) {
	envelopes, err := q.events.Load(ctx, accountID)
	if err != nil {
		return nil, domain.StoreError("load events", err)
	}
	if len(envelopes) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	if seq, err := domain.VerifyStream(envelopes); err != nil {
		q.logger.Warn("event stream failed balance verification",
			zap.String("account_id", accountID),
			zap.Int64("sequence", seq),
			zap.Error(err))
	}
	return envelopes, nil
}
