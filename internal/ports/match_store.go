package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoActiveMatch is returned when a user has no stored match to resume.
var ErrNoActiveMatch = errors.New("no active match")

// ErrStaleMatch is returned by SaveMatch when a newer version of the same
// match is already stored and the row was not written.
var ErrStaleMatch = errors.New("stale match snapshot")

// PlayerRow is the stored form of one seat.
type PlayerRow struct {
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	IsBot          bool   `json:"is_bot"`
	Color          string `json:"color"`
	TokenPositions [4]int `json:"token_positions"`
	TokensHome     int    `json:"tokens_home"`
	ForfeitedTurns int    `json:"forfeited_turns,omitempty"`
}

// MatchRow is the stored form of a match, keyed by its owner.
type MatchRow struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	Status       string          `json:"status"`
	PlayerCount  int             `json:"player_count"`
	EntryAmount  int64           `json:"entry_amount"`
	RewardAmount int64           `json:"reward_amount"`
	GameState    json.RawMessage `json:"game_state"`
	Players      []PlayerRow     `json:"players"`
	Version      int64           `json:"version"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MatchStore persists the latest snapshot of a user's match.
type MatchStore interface {
	// SaveMatch returns ErrStaleMatch when a newer version is already stored.
	SaveMatch(ctx context.Context, row MatchRow) error
	// LoadActiveMatch returns ErrNoActiveMatch when nothing is stored.
	LoadActiveMatch(ctx context.Context, userID string) (MatchRow, error)
	// ClearActiveMatch removes the stored row if it still belongs to matchID.
	ClearActiveMatch(ctx context.Context, userID, matchID string) error
}
