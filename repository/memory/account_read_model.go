package memory

import (
	"context"
	"sync"

	"github.com/fastygo/ledger/domain"
)

type entryKey struct {
	accountID string
	sequence  int64
}

type AccountReadModel struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	entries  []domain.LedgerEntry
	checks   []domain.Check
	offsets  map[string]int64
	seen     map[entryKey]struct{}
	nextID   int64
}

func NewAccountReadModel() *AccountReadModel {
	return &AccountReadModel{
		accounts: make(map[string]*domain.Account),
		offsets:  make(map[string]int64),
		seen:     make(map[entryKey]struct{}),
	}
}

func (r *AccountReadModel) ApplyChange(ctx context.Context, change domain.RowChange) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.StoreError("apply projection", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	offset := r.offsets[change.AccountID]
	if change.Sequence <= offset {
		return false, nil
	}
	if change.Sequence != offset+1 {
		return false, domain.ErrProjectionGap
	}

	if account, ok := r.accounts[change.AccountID]; ok {
		account.Balance = change.Balance
	} else {
		r.accounts[change.AccountID] = &domain.Account{ID: change.AccountID, Balance: change.Balance}
	}

	key := entryKey{accountID: change.AccountID, sequence: change.Sequence}
	if _, dup := r.seen[key]; !dup {
		if change.Entry != nil {
			r.nextID++
			entry := *change.Entry
			entry.ID = r.nextID
			entry.AccountID = change.AccountID
			r.entries = append(r.entries, entry)
		}
		if change.CheckNumber != "" {
			r.nextID++
			r.checks = append(r.checks, domain.Check{ID: r.nextID, AccountID: change.AccountID, CheckNumber: change.CheckNumber})
		}
		r.seen[key] = struct{}{}
	}

	r.offsets[change.AccountID] = change.Sequence
	return true, nil
}

func (r *AccountReadModel) Reset(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("reset projection", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, accountID)
	delete(r.offsets, accountID)
	for key := range r.seen {
		if key.accountID == accountID {
			delete(r.seen, key)
		}
	}

	entries := r.entries[:0]
	for _, e := range r.entries {
		if e.AccountID != accountID {
			entries = append(entries, e)
		}
	}
	r.entries = entries

	checks := r.checks[:0]
	for _, c := range r.checks {
		if c.AccountID != accountID {
			checks = append(checks, c)
		}
	}
	r.checks = checks
	return nil
}

func (r *AccountReadModel) Offset(ctx context.Context, accountID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.offsets[accountID], nil
}

func (r *AccountReadModel) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *account
	return &out, nil
}

func (r *AccountReadModel) ListLedgerEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.LedgerEntry{}
	for _, e := range r.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *AccountReadModel) ListChecks(ctx context.Context, accountID string) ([]domain.Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Check{}
	for _, c := range r.checks {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}
