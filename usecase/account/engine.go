package account

import (
	"fmt"
	"math"

	"github.com/fastygo/ledger/domain"
)

// Engine decides which events a command produces against the current state.
type Engine struct {
	validator Validator
}

func NewEngine(validator Validator) *Engine {
	if validator == nil {
		validator = HappyPathValidator{}
	}
	return &Engine{validator: validator}
}

// Decide returns the events for cmd or the reason it was refused. It never
// touches storage and does not mutate state.
func (e *Engine) Decide(aggregateID string, state domain.AccountState, cmd domain.Command) ([]domain.Event, error) {
	if err := domain.ValidateCommand(cmd); err != nil {
		return nil, err
	}

	if _, opening := cmd.(domain.OpenAccount); opening {
		if state.Opened {
			return nil, domain.ErrAlreadyOpened
		}
	} else if !state.Opened {
		return nil, domain.ErrAggregateNotInitialized
	}

	if err := e.validator.Validate(cmd, state); err != nil {
		return nil, err
	}

	var events []domain.Event
	switch c := cmd.(type) {
	case domain.OpenAccount:
		return []domain.Event{domain.AccountOpened{AccountID: aggregateID}}, nil
	case domain.DepositMoney:
		events = []domain.Event{domain.CustomerDepositedMoney{Amount: c.Amount, Balance: state.Balance + c.Amount}}
	case domain.WithdrawMoney:
		events = []domain.Event{domain.CustomerWithdrewCash{Amount: c.Amount, Balance: state.Balance - c.Amount}}
	case domain.WriteCheck:
		events = []domain.Event{domain.CustomerWroteCheck{CheckNumber: c.CheckNumber, Amount: c.Amount, Balance: state.Balance - c.Amount}}
	default:
		return nil, domain.ErrUnknownCommand
	}
	if err := checkBalances(events); err != nil {
		return nil, err
	}
	return events, nil
}

// checkBalances refuses events whose resulting balance cannot be represented.
func checkBalances(events []domain.Event) error {
	for _, evt := range events {
		var balance float64
		switch e := evt.(type) {
		case domain.CustomerDepositedMoney:
			balance = e.Balance
		case domain.CustomerWithdrewCash:
			balance = e.Balance
		case domain.CustomerWroteCheck:
			balance = e.Balance
		default:
			continue
		}
		if math.IsInf(balance, 0) || math.IsNaN(balance) {
			return domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("%s would overflow the account balance", evt.EventType()))
		}
	}
	return nil
}
