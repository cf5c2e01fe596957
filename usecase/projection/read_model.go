package projection

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
	"github.com/fastygo/ledger/usecase"
)

// ReadModelName identifies the accounts/ledger_entries/checks projection.
const ReadModelName = "read_model"

// ReadModel materializes account events into the query tables.
type ReadModel struct {
	store  repository.AccountReadModel
	logger *zap.Logger
}

var _ usecase.Projection = (*ReadModel)(nil)

func NewReadModel(store repository.AccountReadModel, logger *zap.Logger) *ReadModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadModel{store: store, logger: logger}
}

func (p *ReadModel) Name() string { return ReadModelName }

// Project applies env as one transaction. Already applied events are skipped.
func (p *ReadModel) Project(ctx context.Context, env domain.Envelope) error {
	change, err := Plan(env)
	if err != nil {
		return err
	}
	applied, err := p.store.ApplyChange(ctx, change)
	if err != nil {
		return err
	}
	if !applied {
		p.logger.Debug("event already projected",
			zap.String("account_id", env.AggregateID),
			zap.Int64("sequence", env.Sequence))
	}
	return nil
}

// Plan maps one event to its row writes.
func Plan(env domain.Envelope) (domain.RowChange, error) {
	change := domain.RowChange{AccountID: env.AggregateID, Sequence: env.Sequence}
	switch e := env.Event.(type) {
	case domain.AccountOpened:
		change.Balance = 0
	case domain.CustomerDepositedMoney:
		change.Balance = e.Balance
		change.Entry = &domain.LedgerEntry{Description: domain.DescriptionDeposit, Amount: e.Amount}
	case domain.CustomerWithdrewCash:
		change.Balance = e.Balance
		change.Entry = &domain.LedgerEntry{Description: domain.DescriptionATMWithdrawal, Amount: e.Amount}
	case domain.CustomerWroteCheck:
		change.Balance = e.Balance
		change.Entry = &domain.LedgerEntry{Description: e.CheckNumber, Amount: e.Amount}
		change.CheckNumber = e.CheckNumber
	default:
		return domain.RowChange{}, domain.ErrUnknownEvent
	}
	if change.Entry != nil {
		change.Entry.AccountID = env.AggregateID
	}
	return change, nil
}
