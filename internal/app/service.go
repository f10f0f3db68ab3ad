package app

import (
	"errors"
	"fmt"

	"ludo/internal/dice"
	"ludo/internal/domain"
)

// Service contains Ludo use-cases operating on domain state. Every transition
// works on a copy and returns the new game; the input is never edited.
type Service struct {
	dice *dice.Generator
}

// NewService constructs a Service with provided generator or a time-seeded default.
func NewService(gen *dice.Generator) *Service {
	if gen == nil {
		gen = dice.NewGenerator(nil)
	}
	return &Service{dice: gen}
}

// ErrIllegalAction is wrapped by every error caused by an action that the
// current state does not allow. Callers log these and drop the action.
var ErrIllegalAction = errors.New("illegal action")

var (
	ErrNotPlaying      = fmt.Errorf("%w: match not in playing phase", ErrIllegalAction)
	ErrNotYourTurn     = fmt.Errorf("%w: not your turn", ErrIllegalAction)
	ErrAlreadyRolled   = fmt.Errorf("%w: dice already rolled this turn", ErrIllegalAction)
	ErrWrongStage      = fmt.Errorf("%w: action not allowed in this stage", ErrIllegalAction)
	ErrTokenNotMovable = fmt.Errorf("%w: %w", ErrIllegalAction, domain.ErrTokenNotMovable)
	ErrUnknownPlayer   = fmt.Errorf("%w: player not found", ErrIllegalAction)
	ErrMatchOver       = fmt.Errorf("%w: match already ended", ErrIllegalAction)
)

var (
	ErrTooFewPlayers   = errors.New("not enough players to start")
	ErrTooManyPlayers  = errors.New("too many players for one board")
	ErrDuplicatePlayer = errors.New("player seated twice")
)

// MatchSpec describes a match before any seat is taken.
type MatchSpec struct {
	ID            string
	OwnerID       string
	Tier          string
	EntryAmount   int64
	RewardAmount  int64
	BotDifficulty string
	BotLevel      string
}

// Seat is one participant in seat order.
type Seat struct {
	UserID      string
	DisplayName string
	IsBot       bool
}

// OpenMatch returns the game of a match that is waiting for its seats.
func (s *Service) OpenMatch(spec MatchSpec) *domain.Game {
	return &domain.Game{
		ID:            spec.ID,
		OwnerID:       spec.OwnerID,
		Tier:          spec.Tier,
		EntryAmount:   spec.EntryAmount,
		RewardAmount:  spec.RewardAmount,
		BotDifficulty: spec.BotDifficulty,
		BotLevel:      spec.BotLevel,
		Status:        domain.StatusWaiting,
		Phase:         domain.PhaseMatchmaking,
		CurrentTurn:   0,
	}
}

// StartGame seats the players and hands the first turn to seat 0.
func (s *Service) StartGame(spec MatchSpec, seats []Seat) (*domain.Game, []Event, error) {
	if len(seats) < MinPlayersToStartGame {
		return nil, nil, ErrTooFewPlayers
	}
	if len(seats) > MaxPlayersPerGame {
		return nil, nil, ErrTooManyPlayers
	}

	game := s.OpenMatch(spec)
	colors := domain.SeatColors(len(seats))
	seen := make(map[string]bool, len(seats))
	for i, seat := range seats {
		if seat.UserID == "" || seen[seat.UserID] {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicatePlayer, seat.UserID)
		}
		seen[seat.UserID] = true
		game.Players = append(game.Players, domain.NewPlayer(seat.UserID, seat.DisplayName, seat.IsBot, i, colors[i]))
	}

	game.Phase = domain.PhasePlaying
	game.Status = domain.StatusInProgress
	game.Stage = domain.StageAwaitingRoll
	game.CurrentTurn = 0
	game.TurnSeq = 1
	game.Version++

	first := game.CurrentPlayer()
	events := []Event{
		{
			Kind: EventGameStarted,
			Payload: GameStartedPayload{
				Phase:           game.Phase,
				FirstTurnUserID: first.UserID,
				PlayerCount:     game.PlayerCount(),
			},
		},
		turnChanged(game, false),
	}
	return game, events, nil
}

// RequestRoll rolls the dice for the current player. The game is left in the
// rolling stage; SettleRoll publishes the value.
func (s *Service) RequestRoll(game *domain.Game, seat int) (*domain.Game, []Event, error) {
	if err := checkTurn(game, seat); err != nil {
		return nil, nil, err
	}
	if game.HasRolled {
		return nil, nil, ErrAlreadyRolled
	}
	if game.Stage != domain.StageAwaitingRoll {
		return nil, nil, ErrWrongStage
	}

	next := game.Clone()
	actor := next.CurrentPlayer()
	next.DiceValue = s.dice.Roll(dice.Request{
		ActorIsBot: actor.IsBot,
		Practice:   next.Practice(),
		Difficulty: dice.Difficulty(next.BotDifficulty),
	})
	next.HasRolled = true
	next.Stage = domain.StageRolling
	next.Version++
	return next, nil, nil
}

// SettleRoll ends the rolling stage. With no movable token the turn is
// resolved and has to be passed.
func (s *Service) SettleRoll(game *domain.Game) (*domain.Game, []Event, error) {
	if game.Phase != domain.PhasePlaying {
		return nil, nil, ErrNotPlaying
	}
	if game.Stage != domain.StageRolling {
		return nil, nil, ErrWrongStage
	}

	next := game.Clone()
	actor := next.CurrentPlayer()
	movable := domain.MovableTokens(actor, next.DiceValue)
	if len(movable) == 0 {
		next.Stage = domain.StageTurnResolved
	} else {
		next.Stage = domain.StageAwaitingMove
	}
	next.Version++

	events := []Event{
		{
			Kind: EventDiceRolled,
			Payload: DiceRolledPayload{
				UserID:  actor.UserID,
				Seat:    actor.Seat,
				Value:   next.DiceValue,
				Movable: movable,
			},
		},
	}
	return next, events, nil
}

// SelectToken moves a token of the current player with the rolled value.
func (s *Service) SelectToken(game *domain.Game, seat, tokenID int) (*domain.Game, []Event, error) {
	if err := checkTurn(game, seat); err != nil {
		return nil, nil, err
	}
	if game.Stage != domain.StageAwaitingMove || !game.HasRolled {
		return nil, nil, ErrWrongStage
	}
	if tokenID < 0 || tokenID >= domain.TokensPerPlayer {
		return nil, nil, fmt.Errorf("%w: token %d", ErrTokenNotMovable, tokenID)
	}
	actor := game.CurrentPlayer()
	if !domain.IsMovable(actor.Tokens[tokenID].Position, game.DiceValue) {
		return nil, nil, fmt.Errorf("%w: token %d", ErrTokenNotMovable, tokenID)
	}

	res, err := domain.Resolve(game, seat, tokenID, game.DiceValue)
	if err != nil {
		return nil, nil, err
	}
	next := res.Game
	next.Version++

	events := []Event{
		{
			Kind: EventTokenMoved,
			Payload: TokenMovedPayload{
				UserID:     actor.UserID,
				Seat:       seat,
				TokenID:    tokenID,
				From:       res.From,
				To:         res.To,
				TokensHome: res.TokensHome,
			},
		},
	}
	for _, c := range res.Captures {
		events = append(events, Event{
			Kind: EventTokenCaptured,
			Payload: TokenCapturedPayload{
				CapturedUserID:  next.Players[c.CapturedSeat].UserID,
				CapturedSeat:    c.CapturedSeat,
				CapturedColor:   c.CapturedColor,
				TokenID:         c.CapturedToken,
				CapturingUserID: actor.UserID,
				CapturingSeat:   c.CapturingSeat,
				CapturingColor:  c.CapturingColor,
				AtPosition:      c.AtPosition,
				At:              c.At,
			},
		})
	}

	if res.WonBy != "" {
		next.Phase = domain.PhaseResult
		next.Status = domain.StatusCompleted
		next.Stage = domain.StageTurnResolved
		if next.WinnerID == "" {
			next.WinnerID = res.WonBy
		}
		events = append(events, Event{
			Kind: EventGameEnded,
			Payload: GameEndedPayload{
				WinnerID:     next.WinnerID,
				WinnerSeat:   seat,
				RewardAmount: next.RewardAmount,
			},
		})
		return next, events, nil
	}

	if next.DiceValue == domain.ExtraTurnRoll {
		next.Stage = domain.StageAwaitingRoll
		next.HasRolled = false
		next.TurnSeq++
		events = append(events, turnChanged(next, true))
		return next, events, nil
	}

	advanceTurn(next)
	events = append(events, turnChanged(next, false))
	return next, events, nil
}

// PassTurn hands the turn on after a roll that left nothing to move.
func (s *Service) PassTurn(game *domain.Game) (*domain.Game, []Event, error) {
	if game.Phase != domain.PhasePlaying {
		return nil, nil, ErrNotPlaying
	}
	if game.Stage != domain.StageTurnResolved {
		return nil, nil, ErrWrongStage
	}
	next := game.Clone()
	advanceTurn(next)
	next.Version++
	return next, []Event{turnChanged(next, false)}, nil
}

// ForfeitTurn is applied when the turn timer of a human expires before they
// rolled or moved. It costs the turn, not the match.
func (s *Service) ForfeitTurn(game *domain.Game) (*domain.Game, []Event, error) {
	if game.Phase != domain.PhasePlaying {
		return nil, nil, ErrNotPlaying
	}
	if game.Stage != domain.StageAwaitingRoll && game.Stage != domain.StageAwaitingMove {
		return nil, nil, ErrWrongStage
	}
	next := game.Clone()
	actor := next.CurrentPlayer()
	actor.ForfeitedTurns++

	events := []Event{
		{
			Kind: EventTurnForfeited,
			Payload: TurnForfeitedPayload{
				UserID:         actor.UserID,
				Seat:           actor.Seat,
				ForfeitedTurns: actor.ForfeitedTurns,
			},
		},
	}
	advanceTurn(next)
	next.Version++
	events = append(events, turnChanged(next, false))
	return next, events, nil
}

// Resign ends the match on behalf of a player. Entry fees are not refunded.
func (s *Service) Resign(game *domain.Game, seat int) (*domain.Game, []Event, error) {
	p := game.PlayerBySeat(seat)
	if p == nil {
		return nil, nil, ErrUnknownPlayer
	}
	next, events, err := s.Cancel(game, ReasonResigned)
	if err != nil {
		return nil, nil, err
	}
	events[0].Payload = GameCancelledPayload{Reason: ReasonResigned, UserID: p.UserID}
	return next, events, nil
}

// Cancel moves an unfinished match to the cancelled result.
func (s *Service) Cancel(game *domain.Game, reason string) (*domain.Game, []Event, error) {
	if game.Over() {
		return nil, nil, ErrMatchOver
	}
	next := game.Clone()
	next.Phase = domain.PhaseResult
	next.Status = domain.StatusCancelled
	next.Version++
	return next, []Event{
		{
			Kind:    EventGameCancelled,
			Payload: GameCancelledPayload{Reason: reason},
		},
	}, nil
}

func checkTurn(game *domain.Game, seat int) error {
	if game.Phase != domain.PhasePlaying {
		return ErrNotPlaying
	}
	if game.PlayerBySeat(seat) == nil {
		return ErrUnknownPlayer
	}
	if seat != game.CurrentTurn {
		return ErrNotYourTurn
	}
	return nil
}

func advanceTurn(game *domain.Game) {
	game.CurrentTurn = (game.CurrentTurn + 1) % game.PlayerCount()
	game.Stage = domain.StageAwaitingRoll
	game.HasRolled = false
	game.TurnSeq++
}

func turnChanged(game *domain.Game, extra bool) Event {
	p := game.CurrentPlayer()
	return Event{
		Kind: EventTurnChanged,
		Payload: TurnChangedPayload{
			UserID:    p.UserID,
			Seat:      p.Seat,
			ExtraTurn: extra,
			TurnSeq:   game.TurnSeq,
		},
	}
}
