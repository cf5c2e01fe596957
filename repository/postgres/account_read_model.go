package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/ledger/domain"
)

type AccountReadModel struct {
	pool *pgxpool.Pool
}

// NewAccountReadModel returns the Postgres-backed accounts, ledger_entries and
// checks tables.
func NewAccountReadModel(pool *pgxpool.Pool) *AccountReadModel {
	return &AccountReadModel{pool: pool}
}

func (r *AccountReadModel) ApplyChange(ctx context.Context, change domain.RowChange) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, domain.StoreError("begin projection", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row lock on the offset serializes concurrent projectors of one account.
	var offset int64
	err = tx.QueryRow(ctx,
		`SELECT sequence FROM projection_offsets WHERE aggregate_id = $1 FOR UPDATE`,
		change.AccountID,
	).Scan(&offset)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, domain.StoreError("read projection offset", err)
	}
	if change.Sequence <= offset {
		return false, nil
	}
	if change.Sequence != offset+1 {
		return false, domain.ErrProjectionGap
	}

	if _, err := tx.Exec(ctx, `
	INSERT INTO accounts (id, balance) VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance
	`, change.AccountID, change.Balance); err != nil {
		return false, domain.StoreError("upsert account", err)
	}

	if change.Entry != nil {
		if _, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (account_id, sequence, description, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, sequence) DO NOTHING
		`, change.AccountID, change.Sequence, change.Entry.Description, change.Entry.Amount); err != nil {
			return false, domain.StoreError("insert ledger entry", err)
		}
	}

	if change.CheckNumber != "" {
		if _, err := tx.Exec(ctx, `
		INSERT INTO checks (account_id, sequence, check_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, sequence) DO NOTHING
		`, change.AccountID, change.Sequence, change.CheckNumber); err != nil {
			return false, domain.StoreError("insert check", err)
		}
	}

	if _, err := tx.Exec(ctx, `
	INSERT INTO projection_offsets (aggregate_id, sequence, updated_at) VALUES ($1, $2, NOW())
	ON CONFLICT (aggregate_id) DO UPDATE SET sequence = EXCLUDED.sequence, updated_at = NOW()
	`, change.AccountID, change.Sequence); err != nil {
		return false, domain.StoreError("advance projection offset", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, domain.StoreError("commit projection", err)
	}
	return true, nil
}

func (r *AccountReadModel) Reset(ctx context.Context, accountID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.StoreError("begin reset", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range []string{
		`DELETE FROM ledger_entries WHERE account_id = $1`,
		`DELETE FROM checks WHERE account_id = $1`,
		`DELETE FROM accounts WHERE id = $1`,
		`DELETE FROM projection_offsets WHERE aggregate_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, accountID); err != nil {
			return domain.StoreError("reset projection", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StoreError("commit reset", err)
	}
	return nil
}

func (r *AccountReadModel) Offset(ctx context.Context, accountID string) (int64, error) {
	var offset int64
	err := r.pool.QueryRow(ctx,
		`SELECT sequence FROM projection_offsets WHERE aggregate_id = $1`,
		accountID,
	).Scan(&offset)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.StoreError("read projection offset", err)
	}
	return offset, nil
}

func (r *AccountReadModel) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	err := r.pool.QueryRow(ctx, `SELECT id, balance FROM accounts WHERE id = $1`, id).
		Scan(&account.ID, &account.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, domain.StoreError("get account", err)
	}
	return &account, nil
}

func (r *AccountReadModel) ListLedgerEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	const query = `
	SELECT id, account_id, description, amount
	FROM ledger_entries
	WHERE account_id = $1
	ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, domain.StoreError("list ledger entries", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Description, &e.Amount); err != nil {
			return nil, domain.StoreError("scan ledger entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list ledger entries", err)
	}
	return entries, nil
}

func (r *AccountReadModel) ListChecks(ctx context.Context, accountID string) ([]domain.Check, error) {
	const query = `
	SELECT id, account_id, check_number
	FROM checks
	WHERE account_id = $1
	ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, domain.StoreError("list checks", err)
	}
	defer rows.Close()

	checks := []domain.Check{}
	for rows.Next() {
		var c domain.Check
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CheckNumber); err != nil {
			return nil, domain.StoreError("scan check", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list checks", err)
	}
	return checks, nil
}
