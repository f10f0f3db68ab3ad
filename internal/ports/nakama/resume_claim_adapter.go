package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// resumeClaims makes recreating a stored match a one-shot operation.
type resumeClaims interface {
	// Claim reserves matchID for the caller. When someone else already holds
	// it, claimed is false and resumedAs is the match it was recreated as, if
	// that has happened yet.
	Claim(ctx context.Context, userID, matchID string) (resumedAs string, claimed bool, err error)
	// Settle records the match a claimed record was recreated as.
	Settle(ctx context.Context, userID, matchID, resumedAs string) error
	// Release gives up a claim so the record can be resumed again.
	Release(ctx context.Context, userID, matchID string) error
}

type resumeClaim struct {
	ResumedAs string    `json:"resumed_as,omitempty"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// NakamaResumeClaims keeps one storage object per resumed match, created only
// if absent.
type NakamaResumeClaims struct {
	nk  storageAPI
	now func() time.Time
}

// NewNakamaResumeClaims creates a new storage-backed claim set.
func NewNakamaResumeClaims(nk storageAPI) *NakamaResumeClaims {
	return &NakamaResumeClaims{nk: nk, now: time.Now}
}

func (c *NakamaResumeClaims) Claim(ctx context.Context, userID, matchID string) (string, bool, error) {
	err := c.write(ctx, userID, matchID, resumeClaim{ClaimedAt: c.now().UTC()}, "*")
	if err == nil {
		return "", true, nil
	}
	if !errors.Is(err, runtime.ErrStorageRejectedVersion) {
		return "", false, err
	}

	objects, err := c.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: resumeClaimCollection,
		Key:        matchID,
		UserID:     userID,
	}})
	if err != nil {
		return "", false, fmt.Errorf("failed to read resume claim %s: %w", matchID, err)
	}
	if len(objects) == 0 {
		return "", false, nil
	}
	var held resumeClaim
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &held); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal resume claim: %w", err)
	}
	return held.ResumedAs, false, nil
}

func (c *NakamaResumeClaims) Settle(ctx context.Context, userID, matchID, resumedAs string) error {
	return c.write(ctx, userID, matchID, resumeClaim{ResumedAs: resumedAs, ClaimedAt: c.now().UTC()}, "")
}

func (c *NakamaResumeClaims) Release(ctx context.Context, userID, matchID string) error {
	err := c.nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: resumeClaimCollection,
		Key:        matchID,
		UserID:     userID,
	}})
	if err != nil {
		return fmt.Errorf("failed to release resume claim %s: %w", matchID, err)
	}
	return nil
}

func (c *NakamaResumeClaims) write(ctx context.Context, userID, matchID string, claim resumeClaim, version string) error {
	value, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to marshal resume claim: %w", err)
	}
	_, err = c.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      resumeClaimCollection,
		Key:             matchID,
		UserID:          userID,
		Value:           string(value),
		Version:         version,
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return err
		}
		return fmt.Errorf("failed to write resume claim %s: %w", matchID, err)
	}
	return nil
}

var _ resumeClaims = (*NakamaResumeClaims)(nil)
