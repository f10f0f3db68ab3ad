package app

import "ludo/internal/domain"

// MinPlayersToStartGame defines the minimum number of occupied seats required to start a game.
const MinPlayersToStartGame = domain.MinPlayers

// MaxPlayersPerGame is the number of colors on the board.
const MaxPlayersPerGame = domain.MaxPlayers

// Cancellation reasons carried by EventGameCancelled.
const (
	ReasonResigned      = "resigned"
	ReasonResumeExpired = "resume_expired"
	ReasonAbandoned     = "abandoned"
	ReasonStartFailed   = "start_failed"
)
