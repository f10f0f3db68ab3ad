package app

import "ludo/internal/domain"

// EventKind identifies emitted domain events for Nakama dispatch.
type EventKind string

const (
	EventGameStarted   EventKind = "game_started"
	EventDiceRolled    EventKind = "dice_rolled"
	EventTokenMoved    EventKind = "token_moved"
	EventTokenCaptured EventKind = "token_captured"
	EventTurnChanged   EventKind = "turn_changed"
	EventTurnForfeited EventKind = "turn_forfeited"
	EventGameEnded     EventKind = "game_ended"
	EventGameCancelled EventKind = "game_cancelled"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
}

type GameStartedPayload struct {
	Phase           domain.Phase
	FirstTurnUserID string
	PlayerCount     int
}

type DiceRolledPayload struct {
	UserID  string
	Seat    int
	Value   int
	Movable []int
}

type TokenMovedPayload struct {
	UserID     string
	Seat       int
	TokenID    int
	From       int
	To         int
	TokensHome int
}

type TokenCapturedPayload struct {
	CapturedUserID  string
	CapturedSeat    int
	CapturedColor   domain.Color
	TokenID         int
	CapturingUserID string
	CapturingSeat   int
	CapturingColor  domain.Color
	AtPosition      int
	At              domain.Coord
}

type TurnChangedPayload struct {
	UserID    string
	Seat      int
	ExtraTurn bool
	TurnSeq   int64
}

type TurnForfeitedPayload struct {
	UserID         string
	Seat           int
	ForfeitedTurns int
}

type GameEndedPayload struct {
	WinnerID     string
	WinnerSeat   int
	RewardAmount int64
}

type GameCancelledPayload struct {
	Reason string
	UserID string
}
