package domain

import (
	"fmt"
	"math"
	"strings"
)

// Command is a requested state change. Commands are never persisted.
type Command interface {
	CommandName() string
	isCommand()
}

// OpenAccount starts a new account. AccountID is informational; the stream id wins.
type OpenAccount struct {
	AccountID string `json:"account_id,omitempty"`
}

type DepositMoney struct {
	Amount float64 `json:"amount"`
}

type WithdrawMoney struct {
	Amount float64 `json:"amount"`
}

type WriteCheck struct {
	CheckNumber string  `json:"check_number"`
	Amount      float64 `json:"amount"`
}

func (OpenAccount) CommandName() string   { return "OpenAccount" }
func (DepositMoney) CommandName() string  { return "DepositMoney" }
func (WithdrawMoney) CommandName() string { return "WithdrawMoney" }
func (WriteCheck) CommandName() string    { return "WriteCheck" }

func (OpenAccount) isCommand()   {}
func (DepositMoney) isCommand()  {}
func (WithdrawMoney) isCommand() {}
func (WriteCheck) isCommand()    {}

// ValidateCommand checks the shape of a command independent of account state.
func ValidateCommand(cmd Command) error {
	switch c := cmd.(type) {
	case OpenAccount:
		return nil
	case DepositMoney:
		return validateAmount(c.Amount)
	case WithdrawMoney:
		return validateAmount(c.Amount)
	case WriteCheck:
		if strings.TrimSpace(c.CheckNumber) == "" {
			return NewError(ErrCodeInvalid, "check number is required")
		}
		return validateAmount(c.Amount)
	default:
		return ErrUnknownCommand
	}
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return NewError(ErrCodeInvalid, fmt.Sprintf("amount must be a positive number, got %v", amount))
	}
	return nil
}
