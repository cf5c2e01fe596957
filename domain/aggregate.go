package domain

import (
	"fmt"
	"math"
)

// AccountState is the in-memory view of one account, derived by folding its
// event stream. It is never stored.
type AccountState struct {
	Opened        bool                `json:"opened"`
	Balance       float64             `json:"balance"`
	WrittenChecks map[string]struct{} `json:"-"`
}

// NewAccountState returns the state of an account with no events.
func NewAccountState() AccountState {
	return AccountState{WrittenChecks: make(map[string]struct{})}
}

// HasCheck reports whether the check number was already written.
func (s AccountState) HasCheck(checkNumber string) bool {
	_, ok := s.WrittenChecks[checkNumber]
	return ok
}

// Apply folds one event into the state. Balances are taken from the event as
// recorded, never recomputed.
func (s *AccountState) Apply(evt Event) {
	if s.WrittenChecks == nil {
		s.WrittenChecks = make(map[string]struct{})
	}
	switch e := evt.(type) {
	case AccountOpened:
		s.Opened = true
		s.Balance = 0
	case CustomerDepositedMoney:
		s.Balance = e.Balance
	case CustomerWithdrewCash:
		s.Balance = e.Balance
	case CustomerWroteCheck:
		s.Balance = e.Balance
		s.WrittenChecks[e.CheckNumber] = struct{}{}
	}
}

// Fold replays envelopes in order from the empty state and returns the state
// together with the sequence of the last envelope. The stream must be
// contiguous starting at sequence 1.
func Fold(envelopes []Envelope) (AccountState, int64, error) {
	state := NewAccountState()
	var seq int64
	for _, env := range envelopes {
		if env.Sequence != seq+1 {
			return AccountState{}, 0, NewError(ErrCodeInternal,
				fmt.Sprintf("stream %s is not contiguous: expected sequence %d, got %d", env.AggregateID, seq+1, env.Sequence))
		}
		state.Apply(env.Event)
		seq = env.Sequence
	}
	return state, seq, nil
}

// balanceTolerance absorbs float rounding when checking recorded balances.
const balanceTolerance = 1e-9

// VerifyStream checks that every recorded balance equals the previous balance
// moved by the event amount. It returns the sequence of the first event that
// breaks the chain, or 0 when the stream is consistent.
func VerifyStream(envelopes []Envelope) (int64, error) {
	var balance float64
	for _, env := range envelopes {
		var expected float64
		switch e := env.Event.(type) {
		case AccountOpened:
			continue
		case CustomerDepositedMoney:
			expected, balance = balance+e.Amount, e.Balance
		case CustomerWithdrewCash:
			expected, balance = balance-e.Amount, e.Balance
		case CustomerWroteCheck:
			expected, balance = balance-e.Amount, e.Balance
		default:
			return env.Sequence, ErrUnknownEvent
		}
		if math.Abs(expected-balance) > balanceTolerance {
			return env.Sequence, NewError(ErrCodeInternal,
				fmt.Sprintf("balance mismatch at sequence %d: recorded %v, expected %v", env.Sequence, balance, expected))
		}
	}
	return 0, nil
}
