package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/ledger/domain"
)

func TestEventStoreAppendAndLoad(t *testing.T) {
	s := NewEventStore()
	ctx := context.Background()

	envs, err := s.Append(ctx, "acct-1", 0, []domain.Event{
		domain.AccountOpened{AccountID: "acct-1"},
		domain.CustomerDepositedMoney{Amount: 5, Balance: 5},
	}, map[string]string{"request_id": "r1"})
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, int64(2), envs[1].Sequence)

	loaded, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, envs, loaded)

	empty, err := s.Load(ctx, "acct-2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEventStoreConflict(t *testing.T) {
	s := NewEventStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "acct-1", 0, []domain.Event{domain.AccountOpened{}}, nil)
	require.NoError(t, err)

	_, err = s.Append(ctx, "acct-1", 0, []domain.Event{domain.AccountOpened{}}, nil)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	_, err = s.Append(ctx, "acct-1", 5, []domain.Event{domain.CustomerDepositedMoney{Amount: 1, Balance: 1}}, nil)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	loaded, err := s.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestEventStoreSingleWinner(t *testing.T) {
	s := NewEventStore()
	ctx := context.Background()

	const writers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Append(ctx, "acct-1", 0, []domain.Event{domain.AccountOpened{}}, nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestEventStoreAggregateIDs(t *testing.T) {
	s := NewEventStore()
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		_, err := s.Append(ctx, id, 0, []domain.Event{domain.AccountOpened{AccountID: id}}, nil)
		require.NoError(t, err)
	}

	ids, err := s.AggregateIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
