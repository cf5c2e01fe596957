package repository

import (
	"context"

	"github.com/fastygo/ledger/domain"
)

// AccountReadModel owns the materialized accounts, ledger_entries and checks
// tables.
//
// ApplyChange writes one event's rows in a single transaction. It returns
// applied=false when the change's sequence was already applied and
// domain.ErrProjectionGap when an earlier sequence is still missing.
type AccountReadModel interface {
	ApplyChange(ctx context.Context, change domain.RowChange) (applied bool, err error)
	Reset(ctx context.Context, accountID string) error
	Offset(ctx context.Context, accountID string) (int64, error)

	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListLedgerEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error)
	ListChecks(ctx context.Context, accountID string) ([]domain.Check, error)
}
