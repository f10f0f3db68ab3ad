package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenNotMovable is returned when a token cannot advance with the roll.
	ErrTokenNotMovable = errors.New("token cannot move with this roll")
	// ErrUnknownToken is returned for token ids outside 0..3.
	ErrUnknownToken = errors.New("unknown token")
	// ErrUnknownSeat is returned for seats that are not occupied.
	ErrUnknownSeat = errors.New("unknown seat")
	// ErrInvalidDice is returned for dice values outside 1..6.
	ErrInvalidDice = errors.New("dice value out of range")
)

// Capture describes one opponent token sent back to base.
type Capture struct {
	CapturedSeat   int
	CapturedColor  Color
	CapturedToken  int
	CapturingSeat  int
	CapturingColor Color
	// AtPosition is the capturing token's relative position.
	AtPosition int
	At         Coord
}

// Resolution is the outcome of moving one token.
type Resolution struct {
	Game       *Game
	TokenID    int
	From       int
	To         int
	Captures   []Capture
	WonBy      string
	TokensHome int
}

// ValidDice reports whether v is a face of a six-sided die.
func ValidDice(v int) bool {
	return v >= 1 && v <= 6
}

// NextPosition computes where a token lands. Overshooting the finish clamps
// to it; a token in base only enters on the entry roll.
func NextPosition(position, dice int) (int, error) {
	if !ValidDice(dice) {
		return position, fmt.Errorf("%w: %d", ErrInvalidDice, dice)
	}
	switch {
	case position == BasePosition:
		if dice != EntryRoll {
			return position, ErrTokenNotMovable
		}
		return EntryPosition, nil
	case position >= FinishPosition:
		return position, ErrTokenNotMovable
	default:
		return min(position+dice, FinishPosition), nil
	}
}

// IsMovable is the strict movable-token filter shared by bot choices and
// human selections: a token may leave base on a 6, otherwise it must not
// overshoot the finish.
func IsMovable(position, dice int) bool {
	if position == BasePosition {
		return dice == EntryRoll
	}
	return position > BasePosition && position+dice <= FinishPosition
}

// MovableTokens lists the ids of the player's tokens that pass IsMovable.
func MovableTokens(p *Player, dice int) []int {
	if p == nil || !ValidDice(dice) {
		return nil
	}
	var ids []int
	for _, t := range p.Tokens {
		if IsMovable(t.Position, dice) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Resolve moves the named token of the seat by dice and returns the
// resulting game. The input game is left untouched.
func Resolve(g *Game, seat, tokenID, dice int) (Resolution, error) {
	mover := g.PlayerBySeat(seat)
	if mover == nil {
		return Resolution{}, fmt.Errorf("%w: %d", ErrUnknownSeat, seat)
	}
	if tokenID < 0 || tokenID >= TokensPerPlayer {
		return Resolution{}, fmt.Errorf("%w: %d", ErrUnknownToken, tokenID)
	}

	from := mover.Tokens[tokenID].Position
	to, err := NextPosition(from, dice)
	if err != nil {
		return Resolution{}, err
	}

	next := g.Clone()
	mover = next.Players[seat]
	mover.Tokens[tokenID].Position = to

	res := Resolution{
		Game:       next,
		TokenID:    tokenID,
		From:       from,
		To:         to,
		TokensHome: mover.TokensHome(),
	}

	if res.TokensHome == TokensPerPlayer {
		res.WonBy = mover.UserID
		return res, nil
	}

	if to > MainTrackEnd {
		return res, nil
	}

	landing, err := BoardCoord(to, mover.Color)
	if err != nil {
		return Resolution{}, err
	}
	if IsSafe(landing) {
		return res, nil
	}

	for _, opp := range next.Players {
		if opp.Seat == mover.Seat {
			continue
		}
		for i := range opp.Tokens {
			pos := opp.Tokens[i].Position
			if pos < EntryPosition || pos > MainTrackEnd {
				continue
			}
			c, err := BoardCoord(pos, opp.Color)
			if err != nil || c != landing {
				continue
			}
			opp.Tokens[i].Position = BasePosition
			res.Captures = append(res.Captures, Capture{
				CapturedSeat:   opp.Seat,
				CapturedColor:  opp.Color,
				CapturedToken:  i,
				CapturingSeat:  mover.Seat,
				CapturingColor: mover.Color,
				AtPosition:     to,
				At:             landing,
			})
		}
	}

	return res, nil
}
