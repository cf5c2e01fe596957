package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastygo/ledger/domain"
)

type AccountReadModel struct {
	db  *sql.DB
	now func() time.Time
}

func NewAccountReadModel(db *sql.DB) *AccountReadModel {
	return &AccountReadModel{db: db, now: time.Now}
}

func (r *AccountReadModel) ApplyChange(ctx context.Context, change domain.RowChange) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StoreError("begin projection", err)
	}
	defer tx.Rollback()

	var offset int64
	err = tx.QueryRowContext(ctx,
		`SELECT sequence FROM projection_offsets WHERE aggregate_id = ?`,
		change.AccountID,
	).Scan(&offset)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, domain.StoreError("read projection offset", err)
	}
	if change.Sequence <= offset {
		return false, nil
	}
	if change.Sequence != offset+1 {
		return false, domain.ErrProjectionGap
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, balance) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET balance = excluded.balance`,
		change.AccountID, change.Balance,
	); err != nil {
		return false, domain.StoreError("upsert account", err)
	}

	if change.Entry != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_entries (account_id, sequence, description, amount)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (account_id, sequence) DO NOTHING`,
			change.AccountID, change.Sequence, change.Entry.Description, change.Entry.Amount,
		); err != nil {
			return false, domain.StoreError("insert ledger entry", err)
		}
	}

	if change.CheckNumber != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO checks (account_id, sequence, check_number)
			 VALUES (?, ?, ?)
			 ON CONFLICT (account_id, sequence) DO NOTHING`,
			change.AccountID, change.Sequence, change.CheckNumber,
		); err != nil {
			return false, domain.StoreError("insert check", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projection_offsets (aggregate_id, sequence, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (aggregate_id) DO UPDATE SET sequence = excluded.sequence, updated_at = excluded.updated_at`,
		change.AccountID, change.Sequence, toMillis(r.now()),
	); err != nil {
		return false, domain.StoreError("advance projection offset", err)
	}

	if err := tx.Commit(); err != nil {
		return false, domain.StoreError("commit projection", err)
	}
	return true, nil
}

func (r *AccountReadModel) Reset(ctx context.Context, accountID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError("begin reset", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM ledger_entries WHERE account_id = ?`,
		`DELETE FROM checks WHERE account_id = ?`,
		`DELETE FROM accounts WHERE id = ?`,
		`DELETE FROM projection_offsets WHERE aggregate_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, accountID); err != nil {
			return domain.StoreError("reset projection", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StoreError("commit reset", err)
	}
	return nil
}

func (r *AccountReadModel) Offset(ctx context.Context, accountID string) (int64, error) {
	var offset int64
	err := r.db.QueryRowContext(ctx,
		`SELECT sequence FROM projection_offsets WHERE aggregate_id = ?`,
		accountID,
	).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.StoreError("read projection offset", err)
	}
	return offset, nil
}

func (r *AccountReadModel) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, balance FROM accounts WHERE id = ?`,
		id,
	).Scan(&account.ID, &account.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, domain.StoreError("get account", err)
	}
	return &account, nil
}

func (r *AccountReadModel) ListLedgerEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, description, amount
		 FROM ledger_entries
		 WHERE account_id = ?
		 ORDER BY id`,
		accountID,
	)
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
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, check_number
		 FROM checks
		 WHERE account_id = ?
		 ORDER BY id`,
		accountID,
	)
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
