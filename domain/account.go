package domain

// Account is the materialized current balance of one account.
type Account struct {
	ID      string  `json:"id"`
	Balance float64 `json:"balance"`
}

// LedgerEntry is one money movement as shown on a statement.
type LedgerEntry struct {
	ID          int64   `json:"id"`
	AccountID   string  `json:"account_id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Check is an issued check.
type Check struct {
	ID          int64  `json:"id"`
	AccountID   string `json:"account_id"`
	CheckNumber string `json:"check_number"`
}

// Ledger descriptions for non-check movements.
const (
	DescriptionDeposit       = "deposit"
	DescriptionATMWithdrawal = "atm_withdrawal"
)

// RowChange is the set of read-model writes produced by one event. Stores
// apply it as a single transaction keyed by (AccountID, Sequence).
type RowChange struct {
	AccountID   string
	Sequence    int64
	Balance     float64
	Entry       *LedgerEntry
	CheckNumber string
}
