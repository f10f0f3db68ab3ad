package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"ludo/internal/app"
	"ludo/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNakama implements the narrow slices of runtime.NakamaModule used by the adapters.
type fakeNakama struct {
	wallets   map[string]map[string]int64
	objects   map[string]string // collection/user/key -> value
	walletErr error
	multiErr  error
	notes     []string
	renamed   map[string]string
}

func newFakeNakama() *fakeNakama {
	return &fakeNakama{
		wallets: map[string]map[string]int64{},
		objects: map[string]string{},
		renamed: map[string]string{},
	}
}

func (f *fakeNakama) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	wallet, err := json.Marshal(f.wallets[userID])
	if err != nil {
		return nil, err
	}
	return &api.Account{
		User:   &api.User{Id: userID, DisplayName: "Player " + userID},
		Wallet: string(wallet),
	}, nil
}

func (f *fakeNakama) AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error {
	f.renamed[userID] = displayName
	return nil
}

func (f *fakeNakama) WalletUpdate(ctx context.Context, userID string, changeset map[string]int64, metadata map[string]interface{}, updateLedger bool) (map[string]int64, map[string]int64, error) {
	if f.walletErr != nil {
		return nil, nil, f.walletErr
	}
	if f.wallets[userID] == nil {
		f.wallets[userID] = map[string]int64{}
	}
	previous := map[string]int64{walletCurrency: f.wallets[userID][walletCurrency]}
	for k, v := range changeset {
		f.wallets[userID][k] += v
	}
	return f.wallets[userID], previous, nil
}

func (f *fakeNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	var out []*api.StorageObject
	for _, r := range reads {
		if v, ok := f.objects[r.Collection+"/"+r.UserID+"/"+r.Key]; ok {
			out = append(out, &api.StorageObject{Collection: r.Collection, Key: r.Key, UserId: r.UserID, Value: v})
		}
	}
	return out, nil
}

func (f *fakeNakama) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	for _, w := range writes {
		if _, exists := f.objects[w.Collection+"/"+w.UserID+"/"+w.Key]; exists && w.Version == "*" {
			return nil, runtime.ErrStorageRejectedVersion
		}
	}
	var acks []*api.StorageObjectAck
	for _, w := range writes {
		f.objects[w.Collection+"/"+w.UserID+"/"+w.Key] = w.Value
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, UserId: w.UserID})
	}
	return acks, nil
}

func (f *fakeNakama) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	for _, d := range deletes {
		delete(f.objects, d.Collection+"/"+d.UserID+"/"+d.Key)
	}
	return nil
}

func (f *fakeNakama) NotificationSend(ctx context.Context, userID, subject string, content map[string]interface{}, code int, sender string, persistent bool) error {
	f.notes = append(f.notes, userID+":"+subject)
	return nil
}

func (f *fakeNakama) MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	if f.multiErr != nil {
		return nil, nil, f.multiErr
	}
	acks, err := f.StorageWrite(ctx, storageWrites)
	if err != nil {
		return nil, nil, err
	}
	for _, u := range walletUpdates {
		if _, _, err := f.WalletUpdate(ctx, u.UserID, u.Changeset, u.Metadata, updateLedger); err != nil {
			return nil, nil, err
		}
	}
	return acks, nil, nil
}

func TestWagerLedgerDebitAndCredit(t *testing.T) {
	nk := newFakeNakama()
	nk.wallets["u1"] = map[string]int64{walletCurrency: 300}
	ledger := NewNakamaWagerLedger(nk)
	ctx := context.Background()

	require.NoError(t, ledger.Debit(ctx, "u1", 100))
	balance, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)

	assert.ErrorIs(t, ledger.Debit(ctx, "u1", 500), ports.ErrInsufficientFunds)

	require.NoError(t, ledger.Credit(ctx, "u1", 180))
	balance, _ = ledger.Balance(ctx, "u1")
	assert.Equal(t, int64(380), balance)

	balance, err = ledger.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestWagerLedgerMapsNegativeWallet(t *testing.T) {
	nk := newFakeNakama()
	nk.wallets["u1"] = map[string]int64{walletCurrency: 300}
	nk.walletErr = errors.New("wallet update rejected: negative value")

	err := NewNakamaWagerLedger(nk).Debit(context.Background(), "u1", 100)
	assert.ErrorIs(t, err, ports.ErrInsufficientFunds)
}

func TestWagerLedgerRecordsTransaction(t *testing.T) {
	nk := newFakeNakama()
	ledger := NewNakamaWagerLedger(nk)

	require.NoError(t, ledger.RecordTransaction(context.Background(), ports.Transaction{
		UserID: "u1", MatchID: "m1", Amount: 100, Kind: ports.TransactionEntry,
	}))

	require.Len(t, nk.objects, 1)
	for key, value := range nk.objects {
		assert.Contains(t, key, transactionCollection+"/u1/")
		var tx ports.Transaction
		require.NoError(t, json.Unmarshal([]byte(value), &tx))
		assert.NotEmpty(t, tx.ID)
		assert.False(t, tx.CreatedAt.IsZero())
		assert.Equal(t, ports.TransactionEntry, tx.Kind)
	}
}

func TestMatchStoreKeepsNewestVersion(t *testing.T) {
	nk := newFakeNakama()
	store := NewNakamaMatchStore(nk)
	ctx := context.Background()

	_, err := store.LoadActiveMatch(ctx, "u1")
	require.ErrorIs(t, err, ports.ErrNoActiveMatch)

	require.NoError(t, store.SaveMatch(ctx, ports.MatchRow{ID: "m1", OwnerID: "u1", Status: "in_progress", Version: 5}))
	err = store.SaveMatch(ctx, ports.MatchRow{ID: "m1", OwnerID: "u1", Status: "in_progress", Version: 3})
	require.ErrorIs(t, err, ports.ErrStaleMatch)

	row, err := store.LoadActiveMatch(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), row.Version)

	// A different match replaces the row whatever its version.
	require.NoError(t, store.SaveMatch(ctx, ports.MatchRow{ID: "m2", OwnerID: "u1", Status: "in_progress", Version: 1}))
	row, _ = store.LoadActiveMatch(ctx, "u1")
	assert.Equal(t, "m2", row.ID)

	assert.Error(t, store.SaveMatch(ctx, ports.MatchRow{ID: "m3"}))
}

func TestMatchStoreClearOnlyMatchingRow(t *testing.T) {
	nk := newFakeNakama()
	store := NewNakamaMatchStore(nk)
	ctx := context.Background()
	require.NoError(t, store.SaveMatch(ctx, ports.MatchRow{ID: "m2", OwnerID: "u1", Version: 1}))

	require.NoError(t, store.ClearActiveMatch(ctx, "u1", "m1"))
	_, err := store.LoadActiveMatch(ctx, "u1")
	require.NoError(t, err, "a stale clear keeps the newer match")

	require.NoError(t, store.ClearActiveMatch(ctx, "u1", "m2"))
	_, err = store.LoadActiveMatch(ctx, "u1")
	assert.ErrorIs(t, err, ports.ErrNoActiveMatch)

	require.NoError(t, store.ClearActiveMatch(ctx, "u1", "m2"))
}

func TestResumeClaimsAreOneShot(t *testing.T) {
	claims := NewNakamaResumeClaims(newFakeNakama())
	ctx := context.Background()

	_, claimed, err := claims.Claim(ctx, "u1", "old.node")
	require.NoError(t, err)
	assert.True(t, claimed)

	resumedAs, claimed, err := claims.Claim(ctx, "u1", "old.node")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, resumedAs, "still being recreated")

	require.NoError(t, claims.Settle(ctx, "u1", "old.node", "new.node"))
	resumedAs, claimed, err = claims.Claim(ctx, "u1", "old.node")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "new.node", resumedAs)

	// Other owners and other matches are independent.
	_, claimed, _ = claims.Claim(ctx, "u2", "old.node")
	assert.True(t, claimed)
	_, claimed, _ = claims.Claim(ctx, "u1", "other.node")
	assert.True(t, claimed)

	require.NoError(t, claims.Release(ctx, "u1", "other.node"))
	_, claimed, _ = claims.Claim(ctx, "u1", "other.node")
	assert.True(t, claimed)
}

func TestNotifierSendsWin(t *testing.T) {
	nk := newFakeNakama()
	err := NewNakamaNotifier(nk).NotifyWin(context.Background(), "u1", ports.Notification{Title: "You won!", Amount: 180})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1:You won!"}, nk.notes)
}

func TestAccountAdapter(t *testing.T) {
	nk := newFakeNakama()
	acc := NewNakamaAccountAdapter(nk)

	name, err := acc.DisplayName(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Player u1", name)

	require.NoError(t, acc.UpdateProfile(context.Background(), "u1", "user_1", "Lucky"))
	assert.Equal(t, "Lucky", nk.renamed["u1"])
}

func TestWelcomeBonusGrantedOnce(t *testing.T) {
	nk := newFakeNakama()
	bonus := NewNakamaWelcomeBonusAdapter(nk)
	ctx := context.Background()

	granted, err := bonus.GrantWelcomeBonusOnce(ctx, "u1", 1000, "welcome")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = bonus.GrantWelcomeBonusOnce(ctx, "u1", 1000, "welcome")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, int64(1000), nk.wallets["u1"][walletCurrency])

	var rows []ports.Transaction
	for key, value := range nk.objects {
		if strings.HasPrefix(key, transactionCollection+"/") {
			var tx ports.Transaction
			require.NoError(t, json.Unmarshal([]byte(value), &tx))
			rows = append(rows, tx)
		}
	}
	require.Len(t, rows, 1, "one ledger row per grant")
	assert.Equal(t, ports.TransactionBonus, rows[0].Kind)
	assert.Equal(t, int64(1000), rows[0].Amount)

	_, err = bonus.GrantWelcomeBonusOnce(ctx, "", 1000, "welcome")
	assert.Error(t, err)
	_, err = bonus.GrantWelcomeBonusOnce(ctx, "u2", 0, "welcome")
	assert.Error(t, err)

	nk.multiErr = errors.New("db down")
	_, err = bonus.GrantWelcomeBonusOnce(ctx, "u3", 1000, "welcome")
	assert.Error(t, err)
}

func TestEncodeEventOpcodes(t *testing.T) {
	tests := []struct {
		ev     app.Event
		opCode int64
		field  string
	}{
		{app.Event{Kind: app.EventDiceRolled, Payload: app.DiceRolledPayload{UserID: "u1", Value: 3}}, OpDiceRolled, `"movable":[]`},
		{app.Event{Kind: app.EventTurnChanged, Payload: app.TurnChangedPayload{UserID: "u1", ExtraTurn: true}}, OpTurnChanged, `"extra_turn":true`},
		{app.Event{Kind: app.EventGameCancelled, Payload: app.GameCancelledPayload{Reason: app.ReasonResigned}}, OpGameCancelled, `"reason":"resigned"`},
		{app.Event{Kind: app.EventGameEnded, Payload: app.GameEndedPayload{WinnerID: "u1", RewardAmount: 180}}, OpGameEnded, `"reward_amount":180`},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Kind), func(t *testing.T) {
			opCode, data, err := encodeEvent(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.opCode, opCode)
			assert.Contains(t, string(data), tt.field)
		})
	}

	_, _, err := encodeEvent(app.Event{Kind: "bogus"})
	assert.Error(t, err)
}
