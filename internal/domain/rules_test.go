package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(playerCount int) *Game {
	g := &Game{
		ID:     "m1",
		Status: StatusInProgress,
		Phase:  PhasePlaying,
		Stage:  StageAwaitingMove,
	}
	for seat, color := range SeatColors(playerCount) {
		g.Players = append(g.Players, NewPlayer("u"+color.String(), color.String(), false, seat, color))
	}
	return g
}

func TestNextPosition(t *testing.T) {
	for pos := BasePosition; pos <= MainTrackEnd; pos++ {
		for dice := 1; dice <= 6; dice++ {
			got, err := NextPosition(pos, dice)
			if pos == BasePosition {
				if dice == EntryRoll {
					require.NoError(t, err)
					assert.Equal(t, EntryPosition, got)
				} else {
					assert.ErrorIs(t, err, ErrTokenNotMovable)
				}
				continue
			}
			require.NoError(t, err)
			assert.Equal(t, min(pos+dice, FinishPosition), got, "pos %d dice %d", pos, dice)
		}
	}
}

func TestNextPositionClampsOvershoot(t *testing.T) {
	got, err := NextPosition(55, 6)
	require.NoError(t, err)
	assert.Equal(t, FinishPosition, got)

	_, err = NextPosition(FinishPosition, 1)
	assert.ErrorIs(t, err, ErrTokenNotMovable)

	_, err = NextPosition(10, 7)
	assert.ErrorIs(t, err, ErrInvalidDice)
}

func TestIsMovableExcludesOvershoot(t *testing.T) {
	assert.True(t, IsMovable(0, 6))
	assert.False(t, IsMovable(0, 5))
	assert.True(t, IsMovable(51, 6))
	assert.True(t, IsMovable(54, 3))
	assert.False(t, IsMovable(54, 4))
	assert.False(t, IsMovable(FinishPosition, 1))
}

func TestMovableTokens(t *testing.T) {
	g := newTestGame(2)
	p := g.Players[0]
	p.Tokens[1].Position = 20
	p.Tokens[2].Position = 55
	p.Tokens[3].Position = FinishPosition

	assert.Equal(t, []int{1, 2}, MovableTokens(p, 2))
	assert.Equal(t, []int{0, 1}, MovableTokens(p, 6))
	assert.Empty(t, MovableTokens(p, 0))
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	g := newTestGame(2)
	g.Players[0].Tokens[0].Position = 10

	res, err := Resolve(g, 0, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, g.Players[0].Tokens[0].Position)
	assert.Equal(t, 14, res.Game.Players[0].Tokens[0].Position)
	assert.Equal(t, 10, res.From)
	assert.Equal(t, 14, res.To)
}

func TestResolveCapture(t *testing.T) {
	g := newTestGame(4)
	// Green's position 3 is red's position 16 on the shared ring.
	g.Players[1].Tokens[2].Position = 3
	g.Players[0].Tokens[0].Position = 12

	res, err := Resolve(g, 0, 0, 4)
	require.NoError(t, err)
	require.Len(t, res.Captures, 1)

	c := res.Captures[0]
	assert.Equal(t, ColorGreen, c.CapturedColor)
	assert.Equal(t, ColorRed, c.CapturingColor)
	assert.Equal(t, 2, c.CapturedToken)
	assert.Equal(t, 16, c.AtPosition)
	assert.Equal(t, BasePosition, res.Game.Players[1].Tokens[2].Position)
}

func TestResolveMultipleCaptures(t *testing.T) {
	g := newTestGame(4)
	target, err := BoardCoord(20, ColorRed)
	require.NoError(t, err)
	idx, _ := RingIndexOf(target)

	// Place a green and a yellow token on the same unsafe cell.
	for _, seat := range []int{1, 2} {
		opp := g.Players[seat]
		entry, _ := RingIndex(EntryPosition, opp.Color)
		opp.Tokens[0].Position = RingDistance(entry, idx) + 1
	}
	g.Players[0].Tokens[3].Position = 18

	res, err := Resolve(g, 0, 3, 2)
	require.NoError(t, err)
	assert.Len(t, res.Captures, 2)
	assert.Equal(t, BasePosition, res.Game.Players[1].Tokens[0].Position)
	assert.Equal(t, BasePosition, res.Game.Players[2].Tokens[0].Position)
}

func TestResolveNeverCapturesOnSafeCells(t *testing.T) {
	// Every opponent placement on every safe cell, for every mover color.
	for moverColor := ColorRed; moverColor <= ColorBlue; moverColor++ {
		for pos := EntryPosition; pos <= MainTrackEnd; pos++ {
			landing, _ := BoardCoord(pos, moverColor)
			if !IsSafe(landing) {
				continue
			}
			for oppColor := ColorRed; oppColor <= ColorBlue; oppColor++ {
				if oppColor == moverColor {
					continue
				}
				for oppPos := EntryPosition; oppPos <= MainTrackEnd; oppPos++ {
					g := &Game{Phase: PhasePlaying}
					g.Players = []*Player{
						NewPlayer("mover", "", false, 0, moverColor),
						NewPlayer("opp", "", false, 1, oppColor),
					}
					g.Players[1].Tokens[0].Position = oppPos

					from, dice := pos-1, 1
					if from == BasePosition {
						dice = EntryRoll
					}
					g.Players[0].Tokens[0].Position = from

					res, err := Resolve(g, 0, 0, dice)
					require.NoError(t, err)
					assert.Empty(t, res.Captures, "mover %s pos %d opp %s pos %d", moverColor, pos, oppColor, oppPos)
				}
			}
		}
	}
}

func TestResolveCapturesExactlyOnSharedUnsafeCells(t *testing.T) {
	// For all 51x51 placements of a red mover and a green opponent, a capture
	// happens iff both tokens share an unsafe cell.
	for pos := 2; pos <= MainTrackEnd; pos++ {
		for oppPos := EntryPosition; oppPos <= MainTrackEnd; oppPos++ {
			g := newTestGame(4)
			g.Players[0].Tokens[0].Position = pos - 1
			g.Players[1].Tokens[0].Position = oppPos

			res, err := Resolve(g, 0, 0, 1)
			require.NoError(t, err)

			landing, _ := BoardCoord(pos, ColorRed)
			oppCell, _ := BoardCoord(oppPos, ColorGreen)
			want := landing == oppCell && !IsSafe(landing)
			assert.Equal(t, want, len(res.Captures) == 1, "pos %d opp %d", pos, oppPos)
		}
	}
}

func TestResolveTokensHomeInvariant(t *testing.T) {
	g := newTestGame(2)
	p := g.Players[0]
	p.Tokens[0].Position = 54
	p.Tokens[1].Position = FinishPosition

	res, err := Resolve(g, 0, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TokensHome)
	assert.Equal(t, 2, res.Game.Players[0].TokensHome())
	assert.Empty(t, res.WonBy)
}

func TestResolveWinSkipsCapture(t *testing.T) {
	g := newTestGame(2)
	p := g.Players[0]
	for i := 1; i < TokensPerPlayer; i++ {
		p.Tokens[i].Position = FinishPosition
	}
	p.Tokens[0].Position = 51

	res, err := Resolve(g, 0, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, res.WonBy)
	assert.Equal(t, TokensPerPlayer, res.TokensHome)
	assert.Empty(t, res.Captures)
}

func TestResolveClampsOvershootToFinish(t *testing.T) {
	g := newTestGame(2)
	red := g.Players[0]
	red.Tokens[0].Position = 50
	for i := 1; i < TokensPerPlayer; i++ {
		red.Tokens[i].Position = FinishPosition
	}

	res, err := Resolve(g, 0, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, 56, res.To)
	assert.Empty(t, res.WonBy)

	// Table play never offers this move; Resolve itself still clamps.
	assert.False(t, IsMovable(56, 3))
	res, err = Resolve(res.Game, 0, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, FinishPosition, res.To)
	assert.Equal(t, TokensPerPlayer, res.TokensHome)
	assert.Equal(t, red.UserID, res.WonBy)
}

func TestResolveRejectsBadInput(t *testing.T) {
	g := newTestGame(2)

	_, err := Resolve(g, 5, 0, 6)
	assert.ErrorIs(t, err, ErrUnknownSeat)

	_, err = Resolve(g, 0, 9, 6)
	assert.ErrorIs(t, err, ErrUnknownToken)

	_, err = Resolve(g, 0, 0, 3)
	assert.ErrorIs(t, err, ErrTokenNotMovable)
}

func TestCloneIsDeep(t *testing.T) {
	g := newTestGame(3)
	cp := g.Clone()
	cp.Players[2].Tokens[1].Position = 30
	cp.CurrentTurn = 2

	assert.Equal(t, BasePosition, g.Players[2].Tokens[1].Position)
	assert.Equal(t, 0, g.CurrentTurn)
}

func TestCanRoll(t *testing.T) {
	g := newTestGame(2)
	g.Stage = StageAwaitingRoll
	assert.True(t, g.CanRoll(0))
	assert.False(t, g.CanRoll(1))

	g.HasRolled = true
	assert.False(t, g.CanRoll(0))

	g.HasRolled = false
	g.Phase = PhaseResult
	assert.False(t, g.CanRoll(0))
}
