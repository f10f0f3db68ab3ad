package nakama

import (
	"encoding/json"
	"fmt"

	"ludo/internal/app"
	"ludo/internal/domain"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client request payloads.

type selectTokenRequest struct {
	TokenID int `json:"token_id"`
}

// Server event payloads. Field names are the wire contract with clients.

type tokenView struct {
	ID       int           `json:"id"`
	Position int           `json:"position"`
	Coord    *domain.Coord `json:"coord,omitempty"`
}

type playerView struct {
	UserID         string      `json:"user_id"`
	DisplayName    string      `json:"display_name"`
	IsBot          bool        `json:"is_bot"`
	Seat           int         `json:"seat"`
	Color          string      `json:"color"`
	Tokens         []tokenView `json:"tokens"`
	TokensHome     int         `json:"tokens_home"`
	ForfeitedTurns int         `json:"forfeited_turns"`
	Connected      bool        `json:"connected"`
}

type matchStateView struct {
	MatchID      string       `json:"match_id"`
	OwnerID      string       `json:"owner_id"`
	Tier         string       `json:"tier"`
	EntryAmount  int64        `json:"entry_amount"`
	RewardAmount int64        `json:"reward_amount"`
	BotLevel     string       `json:"bot_level,omitempty"`
	Status       string       `json:"status"`
	Phase        string       `json:"phase"`
	Stage        string       `json:"stage,omitempty"`
	CurrentTurn  int          `json:"current_turn"`
	DiceValue    int          `json:"dice_value"`
	HasRolled    bool         `json:"has_rolled"`
	WinnerID     string       `json:"winner_id,omitempty"`
	TurnSeq      int64        `json:"turn_seq"`
	TurnDeadline int64        `json:"turn_deadline,omitempty"`
	Tick         int64        `json:"tick"`
	Players      []playerView `json:"players"`
}

type gameStartedEvent struct {
	Phase           string `json:"phase"`
	FirstTurnUserID string `json:"first_turn_user_id"`
	PlayerCount     int    `json:"player_count"`
}

type diceRolledEvent struct {
	UserID  string `json:"user_id"`
	Seat    int    `json:"seat"`
	Value   int    `json:"value"`
	Movable []int  `json:"movable"`
}

type tokenMovedEvent struct {
	UserID     string `json:"user_id"`
	Seat       int    `json:"seat"`
	TokenID    int    `json:"token_id"`
	From       int    `json:"from"`
	To         int    `json:"to"`
	TokensHome int    `json:"tokens_home"`
}

type tokenCapturedEvent struct {
	CapturedUserID  string       `json:"captured_user_id"`
	CapturedSeat    int          `json:"captured_seat"`
	CapturedColor   string       `json:"captured_color"`
	TokenID         int          `json:"token_id"`
	CapturingUserID string       `json:"capturing_user_id"`
	CapturingSeat   int          `json:"capturing_seat"`
	CapturingColor  string       `json:"capturing_color"`
	AtPosition      int          `json:"at_position"`
	At              domain.Coord `json:"at"`
}

type turnChangedEvent struct {
	UserID    string `json:"user_id"`
	Seat      int    `json:"seat"`
	ExtraTurn bool   `json:"extra_turn"`
	TurnSeq   int64  `json:"turn_seq"`
}

type turnForfeitedEvent struct {
	UserID         string `json:"user_id"`
	Seat           int    `json:"seat"`
	ForfeitedTurns int    `json:"forfeited_turns"`
}

type gameEndedEvent struct {
	WinnerID     string `json:"winner_id"`
	WinnerSeat   int    `json:"winner_seat"`
	RewardAmount int64  `json:"reward_amount"`
}

type gameCancelledEvent struct {
	Reason string `json:"reason"`
	UserID string `json:"user_id,omitempty"`
}

// encodeEvent maps an app event to its opcode and wire payload.
func encodeEvent(ev app.Event) (int64, []byte, error) {
	var opCode int64
	var payload any

	switch ev.Kind {
	case app.EventGameStarted:
		p := ev.Payload.(app.GameStartedPayload)
		opCode = OpGameStarted
		payload = gameStartedEvent{Phase: string(p.Phase), FirstTurnUserID: p.FirstTurnUserID, PlayerCount: p.PlayerCount}
	case app.EventDiceRolled:
		p := ev.Payload.(app.DiceRolledPayload)
		opCode = OpDiceRolled
		movable := p.Movable
		if movable == nil {
			movable = []int{}
		}
		payload = diceRolledEvent{UserID: p.UserID, Seat: p.Seat, Value: p.Value, Movable: movable}
	case app.EventTokenMoved:
		p := ev.Payload.(app.TokenMovedPayload)
		opCode = OpTokenMoved
		payload = tokenMovedEvent(p)
	case app.EventTokenCaptured:
		p := ev.Payload.(app.TokenCapturedPayload)
		opCode = OpTokenCaptured
		payload = tokenCapturedEvent{
			CapturedUserID:  p.CapturedUserID,
			CapturedSeat:    p.CapturedSeat,
			CapturedColor:   p.CapturedColor.String(),
			TokenID:         p.TokenID,
			CapturingUserID: p.CapturingUserID,
			CapturingSeat:   p.CapturingSeat,
			CapturingColor:  p.CapturingColor.String(),
			AtPosition:      p.AtPosition,
			At:              p.At,
		}
	case app.EventTurnChanged:
		p := ev.Payload.(app.TurnChangedPayload)
		opCode = OpTurnChanged
		payload = turnChangedEvent(p)
	case app.EventTurnForfeited:
		p := ev.Payload.(app.TurnForfeitedPayload)
		opCode = OpTurnForfeited
		payload = turnForfeitedEvent(p)
	case app.EventGameEnded:
		p := ev.Payload.(app.GameEndedPayload)
		opCode = OpGameEnded
		payload = gameEndedEvent(p)
	case app.EventGameCancelled:
		p := ev.Payload.(app.GameCancelledPayload)
		opCode = OpGameCancelled
		payload = gameCancelledEvent(p)
	default:
		return 0, nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal %s: %w", ev.Kind, err)
	}
	return opCode, data, nil
}

// toMatchStateView builds the full board view sent on join and after seating.
func toMatchStateView(g *domain.Game, connected map[string]bool, tick, deadline int64) matchStateView {
	view := matchStateView{
		MatchID:      g.ID,
		OwnerID:      g.OwnerID,
		Tier:         g.Tier,
		EntryAmount:  g.EntryAmount,
		RewardAmount: g.RewardAmount,
		BotLevel:     g.BotLevel,
		Status:       string(g.Status),
		Phase:        string(g.Phase),
		Stage:        string(g.Stage),
		CurrentTurn:  g.CurrentTurn,
		DiceValue:    g.DiceValue,
		HasRolled:    g.HasRolled,
		WinnerID:     g.WinnerID,
		TurnSeq:      g.TurnSeq,
		Tick:         tick,
		Players:      make([]playerView, 0, len(g.Players)),
	}
	if g.Phase == domain.PhasePlaying {
		view.TurnDeadline = deadline
	}
	for _, p := range g.Players {
		pv := playerView{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			IsBot:          p.IsBot,
			Seat:           p.Seat,
			Color:          p.Color.String(),
			TokensHome:     p.TokensHome(),
			ForfeitedTurns: p.ForfeitedTurns,
			Connected:      p.IsBot || connected[p.UserID],
		}
		for _, t := range p.Tokens {
			tv := tokenView{ID: t.ID, Position: t.Position}
			if c, ok := domain.TokenCoord(p, t.ID); ok {
				tv.Coord = &c
			}
			pv.Tokens = append(pv.Tokens, tv)
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

// matchLabel is the searchable label of a running match, bot level included.
func matchLabel(g *domain.Game, playerCount int) (string, error) {
	label, err := structpb.NewStruct(map[string]interface{}{
		"game":      "ludo",
		"tier":      g.Tier,
		"entry":     float64(g.EntryAmount),
		"reward":    float64(g.RewardAmount),
		"players":   float64(playerCount),
		"phase":     string(g.Phase),
		"bot_level": g.BotLevel,
		"owner":     g.OwnerID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build label: %w", err)
	}
	data, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", fmt.Errorf("failed to marshal label: %w", err)
	}
	return string(data), nil
}
