package bot

import (
	"ludo/internal/domain"
)

// Agent represents an autonomous bot player.
type Agent struct {
	ID       string
	Name     string
	Level    Level
	Strategy Brain
}

// Play asks the agent to calculate its move based on the current game state.
func (a *Agent) Play(game *domain.Game) (Move, error) {
	seat := game.SeatOf(a.ID)
	if seat < 0 {
		// Agent is not part of this game
		return Move{Pass: true}, nil
	}
	return a.PlayAtSeat(game, seat)
}

// PlayAtSeat calculates the move for the player sitting at seat.
func (a *Agent) PlayAtSeat(game *domain.Game, seat int) (Move, error) {
	player := game.PlayerBySeat(seat)
	if player == nil {
		return Move{Pass: true}, nil
	}

	move, err := a.Strategy.CalculateMove(game, player)
	if err != nil {
		return Move{Pass: true}, err
	}
	return move, nil
}
