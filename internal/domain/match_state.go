package domain

// Phase represents the lifecycle stage of a match.
type Phase string

const (
	// PhaseIdle is the zero state before a wager opened the match.
	PhaseIdle Phase = "idle"
	// PhaseMatchmaking indicates the match is waiting for its seats to fill.
	PhaseMatchmaking Phase = "matchmaking"
	// PhasePlaying indicates turns are being taken.
	PhasePlaying Phase = "playing"
	// PhaseResult indicates the match finished, by a win or a cancellation.
	PhaseResult Phase = "result"
)

// Status is the persisted match status.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Stage is the sub-cycle of a single turn while the match is playing.
type Stage string

const (
	StageAwaitingRoll Stage = "awaiting_roll"
	StageRolling      Stage = "rolling"
	StageAwaitingMove Stage = "awaiting_move"
	StageTurnResolved Stage = "turn_resolved"
)

// Token is one playing piece. Position is relative to the owner's color.
type Token struct {
	ID       int
	Position int
}

// Player holds the domain state for a seat in a match.
type Player struct {
	UserID      string
	DisplayName string
	IsBot       bool
	Seat        int // 0-based seat, also the turn order
	Color       Color
	Tokens      [TokensPerPlayer]Token

	// ForfeitedTurns counts turns lost to the turn timer.
	ForfeitedTurns int
}

// TokensHome counts tokens at the finish position.
func (p *Player) TokensHome() int {
	n := 0
	for _, t := range p.Tokens {
		if t.Position == FinishPosition {
			n++
		}
	}
	return n
}

// Game is the authoritative state of a single match.
type Game struct {
	ID            string
	OwnerID       string
	Tier          string
	EntryAmount   int64
	RewardAmount  int64
	BotDifficulty string // only honoured for zero-stake practice matches
	BotLevel      string

	Status Status
	Phase  Phase
	Stage  Stage

	// Players are ordered by seat; len(Players) is the player count.
	Players     []*Player
	CurrentTurn int
	DiceValue   int
	HasRolled   bool
	WinnerID    string

	// TurnSeq increments every time a new turn cycle begins (including extra
	// turns), so delayed work can tell whether the turn it was planned for is
	// still current.
	TurnSeq int64
	// Version increments on every state-changing transition.
	Version int64
}

// NewPlayer creates a player with all tokens in base.
func NewPlayer(userID, displayName string, isBot bool, seat int, color Color) *Player {
	p := &Player{
		UserID:      userID,
		DisplayName: displayName,
		IsBot:       isBot,
		Seat:        seat,
		Color:       color,
	}
	for i := range p.Tokens {
		p.Tokens[i] = Token{ID: i, Position: BasePosition}
	}
	return p
}

// Practice reports whether no money is at stake.
func (g *Game) Practice() bool {
	return g.EntryAmount == 0 && g.RewardAmount == 0
}

// PlayerCount returns the number of seated players.
func (g *Game) PlayerCount() int {
	return len(g.Players)
}

// CurrentPlayer returns the player whose turn it is, or nil outside of play.
func (g *Game) CurrentPlayer() *Player {
	if g.CurrentTurn < 0 || g.CurrentTurn >= len(g.Players) {
		return nil
	}
	return g.Players[g.CurrentTurn]
}

// PlayerBySeat returns the seated player or nil.
func (g *Game) PlayerBySeat(seat int) *Player {
	if seat < 0 || seat >= len(g.Players) {
		return nil
	}
	return g.Players[seat]
}

// SeatOf returns the seat of userID or -1.
func (g *Game) SeatOf(userID string) int {
	for i, p := range g.Players {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

// CanRoll reports whether the seat may request a roll right now.
func (g *Game) CanRoll(seat int) bool {
	return g.Phase == PhasePlaying &&
		seat == g.CurrentTurn &&
		!g.HasRolled &&
		g.Stage == StageAwaitingRoll
}

// Over reports whether the match reached its result phase.
func (g *Game) Over() bool {
	return g.Phase == PhaseResult
}

// Clone returns a deep copy so transitions never edit a shared snapshot.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := *g
	out.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		out.Players[i] = &cp
	}
	return &out
}
