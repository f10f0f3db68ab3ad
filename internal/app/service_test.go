package app

import (
	"errors"
	"math/rand"
	"testing"

	"ludo/internal/dice"
	"ludo/internal/domain"
)

func newTestService(seed int64) *Service {
	return NewService(dice.NewGenerator(rand.New(rand.NewSource(seed))))
}

func startTestGame(t *testing.T, svc *Service, players int) *domain.Game {
	t.Helper()
	seats := make([]Seat, players)
	for i := range seats {
		seats[i] = Seat{UserID: "u" + string(rune('0'+i)), DisplayName: "P"}
	}
	game, _, err := svc.StartGame(MatchSpec{ID: "m1", OwnerID: "u0", EntryAmount: 100, RewardAmount: 180}, seats)
	if err != nil {
		t.Fatalf("start game error: %v", err)
	}
	return game
}

// rolled returns a copy of game where the current player has rolled value.
func rolled(game *domain.Game, value int) *domain.Game {
	g := game.Clone()
	g.DiceValue = value
	g.HasRolled = true
	g.Stage = domain.StageRolling
	return g
}

func TestStartGameSeatsPlayers(t *testing.T) {
	svc := newTestService(1)
	game, evs, err := svc.StartGame(MatchSpec{ID: "m1"}, []Seat{{UserID: "a"}, {UserID: "b", IsBot: true}})
	if err != nil {
		t.Fatalf("start game error: %v", err)
	}
	if game.Phase != domain.PhasePlaying || game.Status != domain.StatusInProgress {
		t.Fatalf("phase/status = %s/%s, want playing/in_progress", game.Phase, game.Status)
	}
	if game.Stage != domain.StageAwaitingRoll || game.CurrentTurn != 0 {
		t.Fatalf("stage = %s turn = %d, want awaiting_roll on seat 0", game.Stage, game.CurrentTurn)
	}
	if game.Players[0].Color != domain.ColorRed || game.Players[1].Color != domain.ColorYellow {
		t.Fatalf("two players should sit on opposite corners, got %s and %s", game.Players[0].Color, game.Players[1].Color)
	}
	if len(evs) != 2 || evs[0].Kind != EventGameStarted || evs[1].Kind != EventTurnChanged {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestStartGameRejectsBadSeating(t *testing.T) {
	svc := newTestService(1)
	tests := []struct {
		name  string
		seats []Seat
		want  error
	}{
		{"alone", []Seat{{UserID: "a"}}, ErrTooFewPlayers},
		{"crowded", []Seat{{UserID: "a"}, {UserID: "b"}, {UserID: "c"}, {UserID: "d"}, {UserID: "e"}}, ErrTooManyPlayers},
		{"duplicate", []Seat{{UserID: "a"}, {UserID: "a"}}, ErrDuplicatePlayer},
		{"empty id", []Seat{{UserID: "a"}, {UserID: ""}}, ErrDuplicatePlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.StartGame(MatchSpec{}, tt.seats); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRequestRollRejectsIllegalActions(t *testing.T) {
	svc := newTestService(2)
	game := startTestGame(t, svc, 2)
	version := game.Version

	if _, _, err := svc.RequestRoll(game, 1); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("err = %v, want ErrNotYourTurn", err)
	}

	next, _, err := svc.RequestRoll(game, 0)
	if err != nil {
		t.Fatalf("roll error: %v", err)
	}
	if !domain.ValidDice(next.DiceValue) || !next.HasRolled || next.Stage != domain.StageRolling {
		t.Fatalf("unexpected rolled state: dice=%d hasRolled=%v stage=%s", next.DiceValue, next.HasRolled, next.Stage)
	}
	if game.HasRolled || game.Version != version {
		t.Fatalf("input game was mutated")
	}

	if _, _, err := svc.RequestRoll(next, 0); !errors.Is(err, ErrAlreadyRolled) {
		t.Fatalf("err = %v, want ErrAlreadyRolled", err)
	}
	if !errors.Is(ErrAlreadyRolled, ErrIllegalAction) {
		t.Fatalf("ErrAlreadyRolled should wrap ErrIllegalAction")
	}

	over := game.Clone()
	over.Phase = domain.PhaseResult
	if _, _, err := svc.RequestRoll(over, 0); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("err = %v, want ErrNotPlaying", err)
	}
}

func TestSettleRollWithoutMovableToken(t *testing.T) {
	svc := newTestService(3)
	game := startTestGame(t, svc, 2)

	next, evs, err := svc.SettleRoll(rolled(game, 4))
	if err != nil {
		t.Fatalf("settle error: %v", err)
	}
	if next.Stage != domain.StageTurnResolved {
		t.Fatalf("stage = %s, want turn_resolved", next.Stage)
	}
	payload := evs[0].Payload.(DiceRolledPayload)
	if payload.Value != 4 || len(payload.Movable) != 0 {
		t.Fatalf("unexpected dice payload: %+v", payload)
	}

	// A move request is illegal until the turn is passed.
	if _, _, err := svc.SelectToken(next, 0, 0); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("err = %v, want ErrWrongStage", err)
	}

	passed, evs, err := svc.PassTurn(next)
	if err != nil {
		t.Fatalf("pass error: %v", err)
	}
	if passed.CurrentTurn != 1 || passed.HasRolled || passed.Stage != domain.StageAwaitingRoll {
		t.Fatalf("turn did not pass: turn=%d hasRolled=%v stage=%s", passed.CurrentTurn, passed.HasRolled, passed.Stage)
	}
	if evs[0].Kind != EventTurnChanged {
		t.Fatalf("expected turn changed, got %s", evs[0].Kind)
	}
}

func TestSixGrantsExtraTurn(t *testing.T) {
	svc := newTestService(4)
	game := startTestGame(t, svc, 2)

	settled, _, err := svc.SettleRoll(rolled(game, 6))
	if err != nil {
		t.Fatalf("settle error: %v", err)
	}
	next, evs, err := svc.SelectToken(settled, 0, 0)
	if err != nil {
		t.Fatalf("select error: %v", err)
	}
	if next.Players[0].Tokens[0].Position != domain.EntryPosition {
		t.Fatalf("token should have entered the board")
	}
	if next.CurrentTurn != 0 || next.Stage != domain.StageAwaitingRoll || next.HasRolled {
		t.Fatalf("six should keep the turn: turn=%d stage=%s", next.CurrentTurn, next.Stage)
	}
	if next.TurnSeq != game.TurnSeq+1 {
		t.Fatalf("turn seq = %d, want %d", next.TurnSeq, game.TurnSeq+1)
	}
	last := evs[len(evs)-1].Payload.(TurnChangedPayload)
	if !last.ExtraTurn {
		t.Fatalf("expected an extra turn event")
	}
}

func TestNonSixAdvancesCircularly(t *testing.T) {
	svc := newTestService(5)
	game := startTestGame(t, svc, 3)
	game.CurrentTurn = 2
	game.Players[2].Tokens[1].Position = 10

	settled, _, err := svc.SettleRoll(rolled(game, 3))
	if err != nil {
		t.Fatalf("settle error: %v", err)
	}
	next, _, err := svc.SelectToken(settled, 2, 1)
	if err != nil {
		t.Fatalf("select error: %v", err)
	}
	if next.CurrentTurn != 0 {
		t.Fatalf("turn = %d, want 0", next.CurrentTurn)
	}
	if next.Players[2].Tokens[1].Position != 13 {
		t.Fatalf("position = %d, want 13", next.Players[2].Tokens[1].Position)
	}
}

func TestSelectTokenUsesStrictFilter(t *testing.T) {
	svc := newTestService(6)
	game := startTestGame(t, svc, 2)
	game.Players[0].Tokens[0].Position = 55
	game.Players[0].Tokens[1].Position = 20

	settled, _, err := svc.SettleRoll(rolled(game, 4))
	if err != nil {
		t.Fatalf("settle error: %v", err)
	}

	_, _, err = svc.SelectToken(settled, 0, 0)
	if !errors.Is(err, ErrTokenNotMovable) || !errors.Is(err, domain.ErrTokenNotMovable) || !errors.Is(err, ErrIllegalAction) {
		t.Fatalf("err = %v, want a wrapped ErrTokenNotMovable", err)
	}
	if _, _, err := svc.SelectToken(settled, 0, 7); !errors.Is(err, ErrTokenNotMovable) {
		t.Fatalf("err = %v, want ErrTokenNotMovable", err)
	}
	if _, _, err := svc.SelectToken(settled, 1, 1); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("err = %v, want ErrNotYourTurn", err)
	}
}

func TestCaptureEmitsEvent(t *testing.T) {
	svc := newTestService(7)
	game := startTestGame(t, svc, 2)
	// Yellow 32 shares ring cell 5 with red 6.
	game.Players[0].Tokens[0].Position = 2
	game.Players[1].Tokens[3].Position = 32

	settled, _, _ := svc.SettleRoll(rolled(game, 4))
	next, evs, err := svc.SelectToken(settled, 0, 0)
	if err != nil {
		t.Fatalf("select error: %v", err)
	}
	if next.Players[1].Tokens[3].Position != domain.BasePosition {
		t.Fatalf("yellow token should be back in base")
	}

	var captured *TokenCapturedPayload
	for _, ev := range evs {
		if ev.Kind == EventTokenCaptured {
			p := ev.Payload.(TokenCapturedPayload)
			captured = &p
		}
	}
	if captured == nil || captured.CapturedUserID != "u1" || captured.TokenID != 3 || captured.CapturingUserID != "u0" {
		t.Fatalf("unexpected capture payload: %+v", captured)
	}
}

func TestWinEndsGameOnce(t *testing.T) {
	svc := newTestService(8)
	game := startTestGame(t, svc, 2)
	p := game.Players[0]
	p.Tokens[0].Position = domain.FinishPosition
	p.Tokens[1].Position = domain.FinishPosition
	p.Tokens[2].Position = domain.FinishPosition
	p.Tokens[3].Position = 51

	settled, _, _ := svc.SettleRoll(rolled(game, 6))
	next, evs, err := svc.SelectToken(settled, 0, 3)
	if err != nil {
		t.Fatalf("select error: %v", err)
	}
	if next.Phase != domain.PhaseResult || next.Status != domain.StatusCompleted || next.WinnerID != "u0" {
		t.Fatalf("unexpected end state: %s/%s winner=%q", next.Phase, next.Status, next.WinnerID)
	}
	ended := evs[len(evs)-1]
	if ended.Kind != EventGameEnded || ended.Payload.(GameEndedPayload).RewardAmount != 180 {
		t.Fatalf("expected game ended with reward, got %+v", ended)
	}

	if _, _, err := svc.RequestRoll(next, 0); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("err = %v, want ErrNotPlaying after the win", err)
	}
	if _, _, err := svc.Cancel(next, ReasonAbandoned); !errors.Is(err, ErrMatchOver) {
		t.Fatalf("err = %v, want ErrMatchOver", err)
	}
}

func TestForfeitTurn(t *testing.T) {
	svc := newTestService(9)
	game := startTestGame(t, svc, 2)

	next, evs, err := svc.ForfeitTurn(game)
	if err != nil {
		t.Fatalf("forfeit error: %v", err)
	}
	if next.Players[0].ForfeitedTurns != 1 || next.CurrentTurn != 1 {
		t.Fatalf("forfeit did not advance: %+v", next.Players[0])
	}
	if next.Phase != domain.PhasePlaying {
		t.Fatalf("a forfeited turn must not end the match")
	}
	if evs[0].Kind != EventTurnForfeited || evs[1].Kind != EventTurnChanged {
		t.Fatalf("unexpected events: %+v", evs)
	}

	resolved, _, _ := svc.SettleRoll(rolled(next, 2))
	if _, _, err := svc.ForfeitTurn(resolved); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("err = %v, want ErrWrongStage for a resolved turn", err)
	}
}

func TestResignCancelsWithoutRefund(t *testing.T) {
	svc := newTestService(10)
	game := startTestGame(t, svc, 2)

	next, evs, err := svc.Resign(game, 0)
	if err != nil {
		t.Fatalf("resign error: %v", err)
	}
	if next.Phase != domain.PhaseResult || next.Status != domain.StatusCancelled || next.WinnerID != "" {
		t.Fatalf("unexpected state after resign: %s/%s winner=%q", next.Phase, next.Status, next.WinnerID)
	}
	payload := evs[0].Payload.(GameCancelledPayload)
	if payload.Reason != ReasonResigned || payload.UserID != "u0" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if _, _, err := svc.Resign(next, 0); !errors.Is(err, ErrMatchOver) {
		t.Fatalf("err = %v, want ErrMatchOver", err)
	}
}
