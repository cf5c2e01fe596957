package account

import (
	"fmt"
	"strings"

	"github.com/fastygo/ledger/domain"
)

// Validator applies business rules to a command before it may produce events.
type Validator interface {
	Validate(cmd domain.Command, state domain.AccountState) error
}

// HappyPathValidator accepts every command.
type HappyPathValidator struct{}

func (HappyPathValidator) Validate(domain.Command, domain.AccountState) error { return nil }

// StrictValidator refuses overdrafts and reused check numbers.
type StrictValidator struct{}

func (StrictValidator) Validate(cmd domain.Command, state domain.AccountState) error {
	switch c := cmd.(type) {
	case domain.WithdrawMoney:
		if c.Amount > state.Balance {
			return domain.Rejected(fmt.Sprintf("insufficient funds: balance %v, requested %v", state.Balance, c.Amount))
		}
	case domain.WriteCheck:
		if state.HasCheck(c.CheckNumber) {
			return domain.Rejected(fmt.Sprintf("duplicate check: %s was already written", c.CheckNumber))
		}
		if c.Amount > state.Balance {
			return domain.Rejected(fmt.Sprintf("insufficient funds: balance %v, check amount %v", state.Balance, c.Amount))
		}
	}
	return nil
}

// NewValidator resolves a validation policy by its configured name.
func NewValidator(name string) (Validator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "happy", "happy_path":
		return HappyPathValidator{}, nil
	case "strict":
		return StrictValidator{}, nil
	default:
		return nil, fmt.Errorf("unknown command validator %q", name)
	}
}
