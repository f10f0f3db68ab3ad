package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ludo/internal/ports"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

const walletCurrency = "gold"

// walletAPI is the part of runtime.NakamaModule the ledger needs.
type walletAPI interface {
	AccountGetId(ctx context.Context, userID string) (*api.Account, error)
	WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
}

// NakamaWagerLedger implements ports.WagerLedger on Nakama wallets, with
// transaction rows in storage.
type NakamaWagerLedger struct {
	nk  walletAPI
	now func() time.Time
}

// NewNakamaWagerLedger creates a new ledger adapter.
func NewNakamaWagerLedger(nk walletAPI) *NakamaWagerLedger {
	return &NakamaWagerLedger{nk: nk, now: time.Now}
}

// Balance retrieves the current gold balance for a user.
func (a *NakamaWagerLedger) Balance(ctx context.Context, userID string) (int64, error) {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	if account.GetWallet() == "" {
		return 0, nil
	}

	var wallet map[string]int64
	if err := json.Unmarshal([]byte(account.GetWallet()), &wallet); err != nil {
		return 0, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return wallet[walletCurrency], nil
}

// Debit takes amount from the wallet.
func (a *NakamaWagerLedger) Debit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	balance, err := a.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return ports.ErrInsufficientFunds
	}
	_, _, err = a.nk.WalletUpdate(ctx, userID, map[string]int64{walletCurrency: -amount}, map[string]interface{}{"reason": "match_entry"}, true)
	if err != nil {
		// A concurrent spend can still drive the wallet negative; Nakama refuses it.
		if strings.Contains(err.Error(), "negative") {
			return ports.ErrInsufficientFunds
		}
		return fmt.Errorf("failed to debit wallet for user %s: %w", userID, err)
	}
	return nil
}

// Credit adds amount to the wallet.
func (a *NakamaWagerLedger) Credit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	_, _, err := a.nk.WalletUpdate(ctx, userID, map[string]int64{walletCurrency: amount}, map[string]interface{}{"reason": "match_payout"}, true)
	if err != nil {
		return fmt.Errorf("failed to credit wallet for user %s: %w", userID, err)
	}
	return nil
}

// RecordTransaction appends a ledger row owned by the user.
func (a *NakamaWagerLedger) RecordTransaction(ctx context.Context, tx ports.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = a.now().UTC()
	}
	value, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	_, err = a.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      transactionCollection,
		Key:             tx.ID,
		UserID:          tx.UserID,
		Value:           string(value),
		PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	if err != nil {
		return fmt.Errorf("failed to record %s transaction: %w", tx.Kind, err)
	}
	return nil
}

var _ ports.WagerLedger = (*NakamaWagerLedger)(nil)
