package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acct1Stream() []Envelope {
	return Stamp("acct-1", 0, []Event{
		AccountOpened{AccountID: "acct-1"},
		CustomerDepositedMoney{Amount: 1000, Balance: 1000},
		CustomerWithdrewCash{Amount: 100, Balance: 900},
		CustomerWroteCheck{CheckNumber: "1170", Amount: 250, Balance: 650},
	}, nil, time.Now())
}

func TestFold(t *testing.T) {
	state, seq, err := Fold(acct1Stream())
	require.NoError(t, err)

	assert.True(t, state.Opened)
	assert.Equal(t, 650.0, state.Balance)
	assert.Equal(t, int64(4), seq)
	assert.True(t, state.HasCheck("1170"))
	assert.False(t, state.HasCheck("1171"))
}

func TestFoldEmptyStream(t *testing.T) {
	state, seq, err := Fold(nil)
	require.NoError(t, err)

	assert.False(t, state.Opened)
	assert.Zero(t, state.Balance)
	assert.Zero(t, seq)
	assert.NotNil(t, state.WrittenChecks)
}

func TestFoldRejectsGaps(t *testing.T) {
	stream := acct1Stream()
	stream = append(stream[:1], stream[2:]...)

	_, _, err := Fold(stream)
	require.Error(t, err)
	assert.True(t, IsDomainError(err, ErrCodeInternal))
}

func TestFoldUsesRecordedBalance(t *testing.T) {
	stream := Stamp("acct-2", 0, []Event{
		AccountOpened{AccountID: "acct-2"},
		CustomerDepositedMoney{Amount: 10, Balance: 500},
	}, nil, time.Now())

	state, _, err := Fold(stream)
	require.NoError(t, err)
	assert.Equal(t, 500.0, state.Balance)
}

func TestVerifyStream(t *testing.T) {
	seq, err := VerifyStream(acct1Stream())
	require.NoError(t, err)
	assert.Zero(t, seq)

	corrupt := Stamp("acct-3", 0, []Event{
		AccountOpened{AccountID: "acct-3"},
		CustomerDepositedMoney{Amount: 100, Balance: 100},
		CustomerWithdrewCash{Amount: 10, Balance: 95},
	}, nil, time.Now())

	seq, err = VerifyStream(corrupt)
	require.Error(t, err)
	assert.Equal(t, int64(3), seq)
	assert.Contains(t, err.Error(), "balance mismatch at sequence 3")
}

func TestStamp(t *testing.T) {
	meta := map[string]string{"request_id": "req-1"}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))

	envs := Stamp("acct-1", 7, []Event{
		CustomerDepositedMoney{Amount: 1, Balance: 1},
		CustomerDepositedMoney{Amount: 1, Balance: 2},
	}, meta, now)

	require.Len(t, envs, 2)
	assert.Equal(t, int64(8), envs[0].Sequence)
	assert.Equal(t, int64(9), envs[1].Sequence)
	assert.NotEqual(t, envs[0].ID, envs[1].ID)
	assert.Equal(t, EventCustomerDepositedMoney, envs[0].Type)
	assert.Equal(t, time.UTC, envs[0].CreatedAt.Location())

	meta["request_id"] = "changed"
	assert.Equal(t, "req-1", envs[0].Metadata["request_id"])
	envs[0].Metadata["request_id"] = "mutated"
	assert.Equal(t, "req-1", envs[1].Metadata["request_id"])
}
