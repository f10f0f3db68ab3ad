package ports

import (
	"context"
	"errors"
	"time"
)

// ErrInsufficientFunds is returned when a debit would take a wallet below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// TransactionKind labels a ledger entry.
type TransactionKind string

const (
	TransactionEntry  TransactionKind = "entry"
	TransactionWin    TransactionKind = "win"
	TransactionRefund TransactionKind = "refund"
	TransactionBonus  TransactionKind = "bonus"
)

// Transaction is one row of the wager ledger.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	MatchID   string          `json:"match_id"`
	Amount    int64           `json:"amount"`
	Kind      TransactionKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

// WagerLedger moves match money in and out of player wallets.
type WagerLedger interface {
	// Balance retrieves the current gold balance for a user.
	Balance(ctx context.Context, userID string) (int64, error)

	// Debit takes amount from the wallet. It returns ErrInsufficientFunds
	// without changing anything when the balance is too low.
	Debit(ctx context.Context, userID string, amount int64) error

	// Credit adds amount to the wallet.
	Credit(ctx context.Context, userID string, amount int64) error

	// RecordTransaction appends a ledger row.
	RecordTransaction(ctx context.Context, tx Transaction) error
}
