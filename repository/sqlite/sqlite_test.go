package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/ledger/domain"
	sqliteInfra "github.com/fastygo/ledger/internal/infrastructure/sqlite"
	"github.com/fastygo/ledger/repository/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqliteInfra.Open(context.Background(), sqliteInfra.MemoryPath, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openFileDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqliteInfra.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEventStoreRoundTrip(t *testing.T) {
	s := sqlite.NewEventStore(openDB(t))
	ctx := context.Background()

	meta := map[string]string{"request_id": "req-1", "correlation_id": "corr-1"}
	appended, err := s.Append(ctx, "acct-1", 0, []domain.Event{
		domain.AccountOpened{AccountID: "acct-1"},
		domain.CustomerDepositedMoney{Amount: 1000, Balance: 1000},
	}, meta)
	require.NoError(t, err)

	_, err = s.Append(ctx, "acct-1", 2, []domain.Event{
		domain.CustomerWroteCheck{CheckNumber: "1170", Amount: 250, Balance: 750},
	}, nil)
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, appended[0].ID, loaded[0].ID)
	assert.Equal(t, appended[1].Event, loaded[1].Event)
	assert.Equal(t, meta, loaded[0].Metadata)
	assert.Nil(t, loaded[2].Metadata)
	assert.Equal(t, domain.CustomerWroteCheck{CheckNumber: "1170", Amount: 250, Balance: 750}, loaded[2].Event)
	assert.WithinDuration(t, appended[0].CreatedAt, loaded[0].CreatedAt, time.Millisecond)

	state, seq, err := domain.Fold(loaded)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
	assert.Equal(t, 750.0, state.Balance)
}

func TestEventStoreConflict(t *testing.T) {
	s := sqlite.NewEventStore(openDB(t))
	ctx := context.Background()

	_, err := s.Append(ctx, "acct-1", 0, []domain.Event{domain.AccountOpened{}}, nil)
	require.NoError(t, err)

	_, err = s.Append(ctx, "acct-1", 0, []domain.Event{domain.AccountOpened{}}, nil)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	loaded, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestEventStoreConcurrentAppendsSingleWinner(t *testing.T) {
	s := sqlite.NewEventStore(openDB(t))
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(ctx, "acct-1", 0, []domain.Event{domain.AccountOpened{}}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrConcurrencyConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, conflicts)
}

func TestEventStoreAggregateIDs(t *testing.T) {
	s := sqlite.NewEventStore(openDB(t))
	ctx := context.Background()
	for _, id := range []string{"b", "a"} {
		_, err := s.Append(ctx, id, 0, []domain.Event{domain.AccountOpened{AccountID: id}}, nil)
		require.NoError(t, err)
	}

	ids, err := s.AggregateIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestAccountReadModel(t *testing.T) {
	r := sqlite.NewAccountReadModel(openDB(t))
	ctx := context.Background()

	changes := []domain.RowChange{
		{AccountID: "acct-1", Sequence: 1},
		{AccountID: "acct-1", Sequence: 2, Balance: 1000, Entry: &domain.LedgerEntry{Description: domain.DescriptionDeposit, Amount: 1000}},
		{AccountID: "acct-1", Sequence: 3, Balance: 900, Entry: &domain.LedgerEntry{Description: domain.DescriptionATMWithdrawal, Amount: 100}},
		{AccountID: "acct-1", Sequence: 4, Balance: 650, Entry: &domain.LedgerEntry{Description: "1170", Amount: 250}, CheckNumber: "1170"},
	}
	for _, c := range changes {
		applied, err := r.ApplyChange(ctx, c)
		require.NoError(t, err)
		assert.True(t, applied)
	}

	for _, c := range changes {
		applied, err := r.ApplyChange(ctx, c)
		require.NoError(t, err)
		assert.False(t, applied)
	}

	_, err := r.ApplyChange(ctx, domain.RowChange{AccountID: "acct-1", Sequence: 6})
	assert.ErrorIs(t, err, domain.ErrProjectionGap)

	acct, err := r.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, &domain.Account{ID: "acct-1", Balance: 650}, acct)

	entries, err := r.ListLedgerEntries(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"deposit", "atm_withdrawal", "1170"},
		[]string{entries[0].Description, entries[1].Description, entries[2].Description})

	checks, err := r.ListChecks(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, "1170", checks[0].CheckNumber)

	offset, err := r.Offset(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), offset)

	require.NoError(t, r.Reset(ctx, "acct-1"))
	_, err = r.GetAccount(ctx, "acct-1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	entries, err = r.ListLedgerEntries(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	offset, err = r.Offset(ctx, "acct-1")
	require.NoError(t, err)
	assert.Zero(t, offset)
}

func TestOpenReadCursorDoesNotBlockWrites(t *testing.T) {
	db := openFileDB(t)
	events := sqlite.NewEventStore(db)
	readModel := sqlite.NewAccountReadModel(db)
	ctx := context.Background()

	_, err := events.Append(ctx, "acct-1", 0, []domain.Event{domain.AccountOpened{AccountID: "acct-1"}}, nil)
	require.NoError(t, err)
	for seq, amount := range []float64{10, 20} {
		_, err := readModel.ApplyChange(ctx, domain.RowChange{
			AccountID: "acct-1",
			Sequence:  int64(seq + 1),
			Balance:   amount,
			Entry:     &domain.LedgerEntry{Description: domain.DescriptionDeposit, Amount: amount},
		})
		require.NoError(t, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT id FROM ledger_entries WHERE account_id = ?`, "acct-1")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err = events.Append(writeCtx, "acct-1", 1, []domain.Event{
		domain.CustomerDepositedMoney{Amount: 5, Balance: 5},
	}, nil)
	require.NoError(t, err)

	applied, err := readModel.ApplyChange(writeCtx, domain.RowChange{
		AccountID: "acct-1",
		Sequence:  3,
		Balance:   35,
		Entry:     &domain.LedgerEntry{Description: domain.DescriptionDeposit, Amount: 5},
	})
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, rows.Close())
	stream, err := events.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, stream, 2)
}

func TestFileEventStoreConcurrentAppendsSingleWinner(t *testing.T) {
	s := sqlite.NewEventStore(openFileDB(t))
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(ctx, "acct-1", 0, []domain.Event{domain.AccountOpened{}}, nil)
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrConcurrencyConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, conflicts)
}
