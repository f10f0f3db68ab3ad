package bot

import (
	"ludo/internal/domain"
)

// Move represents the decision made by the AI.
type Move struct {
	Pass    bool
	TokenID int
	// Rule names the decision rule that picked the token.
	Rule string
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	CalculateMove(game *domain.Game, player *domain.Player) (Move, error)
}
