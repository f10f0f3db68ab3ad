package domain

const (
	// TokensPerPlayer is the number of tokens each seat moves around the board.
	TokensPerPlayer = 4

	// BasePosition is the relative position of a token that has not entered the board.
	BasePosition = 0
	// EntryPosition is the first main-track cell of every color.
	EntryPosition = 1
	// MainTrackEnd is the last shared-track position before the home stretch.
	MainTrackEnd = 51
	// HomeStretchStart is the first private cell of a color's home stretch.
	HomeStretchStart = 52
	// FinishPosition is the relative position of a token that reached home.
	FinishPosition = 57

	// EntryRoll is the dice value that lets a token leave its base.
	EntryRoll = 6
	// ExtraTurnRoll grants the mover another roll when the game is not over.
	ExtraTurnRoll = 6

	// RingSize is the number of cells on the shared track.
	RingSize = 52
	// ColorOffset is the ring distance between two consecutive colors' entry cells.
	ColorOffset = 13

	MinPlayers = 2
	MaxPlayers = 4
)
