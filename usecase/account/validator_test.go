package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/ledger/domain"
)

func TestStrictValidator(t *testing.T) {
	engine := NewEngine(StrictValidator{})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := engine.Decide("acct-1", openState(100), domain.WithdrawMoney{Amount: 100.01})
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeValidationRejected, domain.Code(err))
		assert.Contains(t, err.Error(), "insufficient funds")
	})

	t.Run("exact balance", func(t *testing.T) {
		events, err := engine.Decide("acct-1", openState(100), domain.WithdrawMoney{Amount: 100})
		require.NoError(t, err)
		assert.Equal(t, []domain.Event{domain.CustomerWithdrewCash{Amount: 100, Balance: 0}}, events)
	})

	t.Run("duplicate check", func(t *testing.T) {
		_, err := engine.Decide("acct-1", openState(1000, "1170"), domain.WriteCheck{CheckNumber: "1170", Amount: 1})
		require.Error(t, err)
		assert.Equal(t, domain.ErrCodeValidationRejected, domain.Code(err))
		assert.Contains(t, err.Error(), "duplicate check")
	})

	t.Run("deposits always pass", func(t *testing.T) {
		_, err := engine.Decide("acct-1", openState(0), domain.DepositMoney{Amount: 1})
		assert.NoError(t, err)
	})
}

func TestHappyPathValidatorAcceptsEverything(t *testing.T) {
	v := HappyPathValidator{}
	assert.NoError(t, v.Validate(domain.WithdrawMoney{Amount: 1e9}, openState(0)))
	assert.NoError(t, v.Validate(domain.WriteCheck{CheckNumber: "1", Amount: 1}, openState(0, "1")))
}

func TestNewValidator(t *testing.T) {
	for name, want := range map[string]Validator{
		"":           HappyPathValidator{},
		"happy":      HappyPathValidator{},
		"Happy_Path": HappyPathValidator{},
		" strict ":   StrictValidator{},
	} {
		got, err := NewValidator(name)
		require.NoError(t, err, name)
		assert.IsType(t, want, got, name)
	}

	_, err := NewValidator("lenient")
	assert.Error(t, err)
}
