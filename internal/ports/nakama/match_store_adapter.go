package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ludo/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// storageAPI is the part of runtime.NakamaModule the match store needs.
type storageAPI interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
	StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error
}

// NakamaMatchStore keeps one row per user: the latest snapshot of the match
// they own.
type NakamaMatchStore struct {
	nk storageAPI
}

// NewNakamaMatchStore creates a new storage-backed match store.
func NewNakamaMatchStore(nk storageAPI) *NakamaMatchStore {
	return &NakamaMatchStore{nk: nk}
}

// SaveMatch writes row under its owner. Older versions of the same match
// never overwrite newer ones; they are reported as ports.ErrStaleMatch.
func (s *NakamaMatchStore) SaveMatch(ctx context.Context, row ports.MatchRow) error {
	if row.OwnerID == "" {
		return fmt.Errorf("match %s has no owner", row.ID)
	}
	current, err := s.LoadActiveMatch(ctx, row.OwnerID)
	switch {
	case err == nil:
		if current.ID == row.ID && current.Version > row.Version {
			return fmt.Errorf("match %s version %d behind %d: %w", row.ID, row.Version, current.Version, ports.ErrStaleMatch)
		}
	case errors.Is(err, ports.ErrNoActiveMatch):
	default:
		return err
	}

	value, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal match row: %w", err)
	}
	_, err = s.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      matchCollection,
		Key:             row.OwnerID,
		UserID:          row.OwnerID,
		Value:           string(value),
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", row.ID, err)
	}
	return nil
}

// LoadActiveMatch returns the stored row of userID.
func (s *NakamaMatchStore) LoadActiveMatch(ctx context.Context, userID string) (ports.MatchRow, error) {
	objects, err := s.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: matchCollection,
		Key:        userID,
		UserID:     userID,
	}})
	if err != nil {
		return ports.MatchRow{}, fmt.Errorf("failed to read match for user %s: %w", userID, err)
	}
	if len(objects) == 0 {
		return ports.MatchRow{}, ports.ErrNoActiveMatch
	}

	var row ports.MatchRow
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &row); err != nil {
		return ports.MatchRow{}, fmt.Errorf("failed to unmarshal match row: %w", err)
	}
	return row, nil
}

// ClearActiveMatch deletes the row of userID if it still holds matchID. An
// empty matchID clears whatever is stored.
func (s *NakamaMatchStore) ClearActiveMatch(ctx context.Context, userID, matchID string) error {
	if matchID != "" {
		current, err := s.LoadActiveMatch(ctx, userID)
		if errors.Is(err, ports.ErrNoActiveMatch) {
			return nil
		}
		if err != nil {
			return err
		}
		if current.ID != matchID {
			return nil
		}
	}
	err := s.nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: matchCollection,
		Key:        userID,
		UserID:     userID,
	}})
	if err != nil {
		return fmt.Errorf("failed to clear match for user %s: %w", userID, err)
	}
	return nil
}

var _ ports.MatchStore = (*NakamaMatchStore)(nil)
