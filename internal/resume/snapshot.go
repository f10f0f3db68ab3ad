// Package resume turns a running game into a compact record that can be
// stored and later rebuilt into a playable game after a disconnect.
package resume

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ludo/internal/domain"
	"ludo/internal/ports"
)

var (
	// ErrInconsistentSnapshot is returned when a record contradicts itself.
	ErrInconsistentSnapshot = errors.New("inconsistent match snapshot")
	ErrNotOwner             = errors.New("only the match owner can resume")
	ErrNotResumable         = errors.New("match is not in progress")
	ErrWindowExpired        = errors.New("resume window expired")
)

// PlayerRecord is the persisted state of one seat.
type PlayerRecord struct {
	UserID         string                      `json:"user_id"`
	DisplayName    string                      `json:"display_name"`
	IsBot          bool                        `json:"is_bot"`
	Color          string                      `json:"color"`
	TokenPositions [domain.TokensPerPlayer]int `json:"token_positions"`
	TokensHome     int                         `json:"tokens_home"`
	ForfeitedTurns int                         `json:"forfeited_turns,omitempty"`
}

// Record is the minimal state needed to resume a match.
type Record struct {
	MatchID       string         `json:"match_id"`
	OwnerID       string         `json:"owner_id"`
	Tier          string         `json:"tier"`
	EntryAmount   int64          `json:"entry_amount"`
	RewardAmount  int64          `json:"reward_amount"`
	BotDifficulty string         `json:"bot_difficulty,omitempty"`
	BotLevel      string         `json:"bot_level,omitempty"`
	Status        domain.Status  `json:"status"`
	CurrentTurn   int            `json:"current_turn"`
	DiceValue     int            `json:"dice_value"`
	HasRolled     bool           `json:"has_rolled"`
	WinnerID      string         `json:"winner_id,omitempty"`
	TurnSeq       int64          `json:"turn_seq"`
	Version       int64          `json:"version"`
	Players       []PlayerRecord `json:"players"`
	LastActivity  time.Time      `json:"last_activity"`
}

// Snapshot captures game at lastActivity.
func Snapshot(g *domain.Game, lastActivity time.Time) Record {
	r := Record{
		MatchID:       g.ID,
		OwnerID:       g.OwnerID,
		Tier:          g.Tier,
		EntryAmount:   g.EntryAmount,
		RewardAmount:  g.RewardAmount,
		BotDifficulty: g.BotDifficulty,
		BotLevel:      g.BotLevel,
		Status:        g.Status,
		CurrentTurn:   g.CurrentTurn,
		DiceValue:     g.DiceValue,
		HasRolled:     g.HasRolled,
		WinnerID:      g.WinnerID,
		TurnSeq:       g.TurnSeq,
		Version:       g.Version,
		LastActivity:  lastActivity.UTC(),
	}
	for _, p := range g.Players {
		pr := PlayerRecord{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			IsBot:          p.IsBot,
			Color:          p.Color.String(),
			TokensHome:     p.TokensHome(),
			ForfeitedTurns: p.ForfeitedTurns,
		}
		for i, t := range p.Tokens {
			pr.TokenPositions[i] = t.Position
		}
		r.Players = append(r.Players, pr)
	}
	return r
}

// Restore rebuilds a game from r. A roll that was already taken is never
// granted again: the game resumes waiting for the move, or with the turn
// resolved when the roll left nothing to move.
func Restore(r Record) (*domain.Game, error) {
	n := len(r.Players)
	if n < domain.MinPlayers || n > domain.MaxPlayers {
		return nil, fmt.Errorf("%w: %d players", ErrInconsistentSnapshot, n)
	}
	if r.CurrentTurn < 0 || r.CurrentTurn >= n {
		return nil, fmt.Errorf("%w: current turn %d", ErrInconsistentSnapshot, r.CurrentTurn)
	}
	if r.HasRolled && !domain.ValidDice(r.DiceValue) {
		return nil, fmt.Errorf("%w: rolled dice %d", ErrInconsistentSnapshot, r.DiceValue)
	}

	g := &domain.Game{
		ID:            r.MatchID,
		OwnerID:       r.OwnerID,
		Tier:          r.Tier,
		EntryAmount:   r.EntryAmount,
		RewardAmount:  r.RewardAmount,
		BotDifficulty: r.BotDifficulty,
		BotLevel:      r.BotLevel,
		Status:        r.Status,
		CurrentTurn:   r.CurrentTurn,
		DiceValue:     r.DiceValue,
		HasRolled:     r.HasRolled,
		WinnerID:      r.WinnerID,
		TurnSeq:       r.TurnSeq,
		Version:       r.Version,
	}

	colors := make(map[domain.Color]bool, n)
	for seat, pr := range r.Players {
		color, err := domain.ParseColor(pr.Color)
		if err != nil || colors[color] {
			return nil, fmt.Errorf("%w: seat %d color %q", ErrInconsistentSnapshot, seat, pr.Color)
		}
		colors[color] = true

		p := domain.NewPlayer(pr.UserID, pr.DisplayName, pr.IsBot, seat, color)
		p.ForfeitedTurns = pr.ForfeitedTurns
		for i, pos := range pr.TokenPositions {
			if pos < domain.BasePosition || pos > domain.FinishPosition {
				return nil, fmt.Errorf("%w: seat %d token %d at %d", ErrInconsistentSnapshot, seat, i, pos)
			}
			p.Tokens[i].Position = pos
		}
		if p.TokensHome() != pr.TokensHome {
			return nil, fmt.Errorf("%w: seat %d reports %d tokens home, positions give %d",
				ErrInconsistentSnapshot, seat, pr.TokensHome, p.TokensHome())
		}
		g.Players = append(g.Players, p)
	}

	switch r.Status {
	case domain.StatusInProgress:
		g.Phase = domain.PhasePlaying
		g.Stage = domain.StageAwaitingRoll
		if r.HasRolled {
			if len(domain.MovableTokens(g.CurrentPlayer(), r.DiceValue)) > 0 {
				g.Stage = domain.StageAwaitingMove
			} else {
				g.Stage = domain.StageTurnResolved
			}
		}
	case domain.StatusCompleted, domain.StatusCancelled:
		g.Phase = domain.PhaseResult
	case domain.StatusWaiting:
		g.Phase = domain.PhaseMatchmaking
	default:
		return nil, fmt.Errorf("%w: status %q", ErrInconsistentSnapshot, r.Status)
	}
	return g, nil
}

// Eligible reports why userID may not resume r at now, or nil when it may.
func Eligible(r Record, userID string, now time.Time, window time.Duration) error {
	if userID == "" || r.OwnerID != userID {
		return ErrNotOwner
	}
	for _, p := range r.Players {
		if p.UserID == userID && p.IsBot {
			return ErrNotOwner
		}
	}
	if r.Status != domain.StatusInProgress {
		return ErrNotResumable
	}
	if now.Sub(r.LastActivity) > window {
		return ErrWindowExpired
	}
	return nil
}

// Expires is the last instant r can be resumed.
func (r Record) Expires(window time.Duration) time.Time {
	return r.LastActivity.Add(window)
}

// gameState is the game_state column of a match row.
type gameState struct {
	Tier          string    `json:"tier"`
	BotDifficulty string    `json:"bot_difficulty,omitempty"`
	BotLevel      string    `json:"bot_level,omitempty"`
	CurrentTurn   int       `json:"current_turn"`
	DiceValue     int       `json:"dice_value"`
	HasRolled     bool      `json:"has_rolled"`
	WinnerID      string    `json:"winner_id,omitempty"`
	TurnSeq       int64     `json:"turn_seq"`
	LastActivity  time.Time `json:"last_activity"`
}

// ToRow converts r into the stored row.
func (r Record) ToRow() (ports.MatchRow, error) {
	state, err := json.Marshal(gameState{
		Tier:          r.Tier,
		BotDifficulty: r.BotDifficulty,
		BotLevel:      r.BotLevel,
		CurrentTurn:   r.CurrentTurn,
		DiceValue:     r.DiceValue,
		HasRolled:     r.HasRolled,
		WinnerID:      r.WinnerID,
		TurnSeq:       r.TurnSeq,
		LastActivity:  r.LastActivity,
	})
	if err != nil {
		return ports.MatchRow{}, fmt.Errorf("failed to marshal game state: %w", err)
	}

	row := ports.MatchRow{
		ID:           r.MatchID,
		OwnerID:      r.OwnerID,
		Status:       string(r.Status),
		PlayerCount:  len(r.Players),
		EntryAmount:  r.EntryAmount,
		RewardAmount: r.RewardAmount,
		GameState:    state,
		Version:      r.Version,
		UpdatedAt:    r.LastActivity,
	}
	for _, p := range r.Players {
		row.Players = append(row.Players, ports.PlayerRow{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			IsBot:          p.IsBot,
			Color:          p.Color,
			TokenPositions: p.TokenPositions,
			TokensHome:     p.TokensHome,
			ForfeitedTurns: p.ForfeitedTurns,
		})
	}
	return row, nil
}

// FromRow converts a stored row back into a record.
func FromRow(row ports.MatchRow) (Record, error) {
	var state gameState
	if len(row.GameState) > 0 {
		if err := json.Unmarshal(row.GameState, &state); err != nil {
			return Record{}, fmt.Errorf("failed to unmarshal game state: %w", err)
		}
	}
	if row.PlayerCount != len(row.Players) {
		return Record{}, fmt.Errorf("%w: player_count %d with %d players", ErrInconsistentSnapshot, row.PlayerCount, len(row.Players))
	}

	r := Record{
		MatchID:       row.ID,
		OwnerID:       row.OwnerID,
		Tier:          state.Tier,
		EntryAmount:   row.EntryAmount,
		RewardAmount:  row.RewardAmount,
		BotDifficulty: state.BotDifficulty,
		BotLevel:      state.BotLevel,
		Status:        domain.Status(row.Status),
		CurrentTurn:   state.CurrentTurn,
		DiceValue:     state.DiceValue,
		HasRolled:     state.HasRolled,
		WinnerID:      state.WinnerID,
		TurnSeq:       state.TurnSeq,
		Version:       row.Version,
		LastActivity:  state.LastActivity,
	}
	for _, p := range row.Players {
		r.Players = append(r.Players, PlayerRecord{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			IsBot:          p.IsBot,
			Color:          p.Color,
			TokenPositions: p.TokenPositions,
			TokensHome:     p.TokensHome,
			ForfeitedTurns: p.ForfeitedTurns,
		})
	}
	return r, nil
}
