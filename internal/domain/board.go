package domain

import (
	"errors"
	"fmt"
)

// Color identifies a seat's track. Values double as the number of quarter turns
// applied to the reference path.
type Color int

const (
	ColorRed Color = iota
	ColorGreen
	ColorYellow
	ColorBlue
)

var colorNames = [...]string{"red", "green", "yellow", "blue"}

func (c Color) String() string {
	if c < ColorRed || c > ColorBlue {
		return fmt.Sprintf("color(%d)", int(c))
	}
	return colorNames[c]
}

// Valid reports whether c is one of the four board colors.
func (c Color) Valid() bool {
	return c >= ColorRed && c <= ColorBlue
}

// ParseColor maps a color name back to its Color.
func ParseColor(name string) (Color, error) {
	for i, n := range colorNames {
		if n == name {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("unknown color %q", name)
}

// Coord is an absolute cell on the 15x15 board grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// boardSpan is the largest grid index; rotations pivot around (7,7).
const boardSpan = 14

// ErrNoBoardCoord is returned for positions that are off the shared track
// (base, home stretch, finished).
var ErrNoBoardCoord = errors.New("position has no shared board coordinate")

// redPath is the reference path: red's main track from its entry cell
// (position 1) to the cell before its home stretch (position 51).
// Every other color walks the same path rotated by a quarter turn per color.
var redPath = [MainTrackEnd]Coord{
	{1, 6}, {2, 6}, {3, 6}, {4, 6}, {5, 6},
	{6, 5}, {6, 4}, {6, 3}, {6, 2}, {6, 1}, {6, 0},
	{7, 0}, {8, 0},
	{8, 1}, {8, 2}, {8, 3}, {8, 4}, {8, 5},
	{9, 6}, {10, 6}, {11, 6}, {12, 6}, {13, 6}, {14, 6},
	{14, 7}, {14, 8},
	{13, 8}, {12, 8}, {11, 8}, {10, 8}, {9, 8},
	{8, 9}, {8, 10}, {8, 11}, {8, 12}, {8, 13}, {8, 14},
	{7, 14}, {6, 14},
	{6, 13}, {6, 12}, {6, 11}, {6, 10}, {6, 9},
	{5, 8}, {4, 8}, {3, 8}, {2, 8}, {1, 8}, {0, 8},
	{0, 7},
}

// Ring indices of the safe cells: the four entry cells and the four stars.
var safeRingIndices = [...]int{0, 8, 13, 21, 26, 34, 39, 47}

var (
	ring      [RingSize]Coord
	ringIndex map[Coord]int
	safeCells map[Coord]struct{}
)

func init() {
	// The first quarter of the reference path rotated four times yields the ring.
	ringIndex = make(map[Coord]int, RingSize)
	for i := 0; i < RingSize; i++ {
		ring[i] = rotate(redPath[i%ColorOffset], i/ColorOffset)
		ringIndex[ring[i]] = i
	}
	if len(ringIndex) != RingSize {
		panic("domain: reference path does not form a closed ring")
	}

	safeCells = make(map[Coord]struct{}, len(safeRingIndices))
	for _, idx := range safeRingIndices {
		safeCells[ring[idx]] = struct{}{}
	}
}

// rotate turns c clockwise around the board center by quarter turns.
func rotate(c Coord, quarterTurns int) Coord {
	for i := 0; i < quarterTurns%4; i++ {
		c = Coord{X: boardSpan - c.Y, Y: c.X}
	}
	return c
}

// BoardCoord maps a relative main-track position of the given color to its
// absolute cell. Positions outside 1..51 have no coordinate.
func BoardCoord(position int, color Color) (Coord, error) {
	if position < EntryPosition || position > MainTrackEnd {
		return Coord{}, fmt.Errorf("%w: %d", ErrNoBoardCoord, position)
	}
	if !color.Valid() {
		return Coord{}, fmt.Errorf("invalid color %d", int(color))
	}
	return rotate(redPath[position-1], int(color)), nil
}

// RingIndex returns the shared-track index (0..51) of a relative position.
func RingIndex(position int, color Color) (int, error) {
	if position < EntryPosition || position > MainTrackEnd {
		return 0, fmt.Errorf("%w: %d", ErrNoBoardCoord, position)
	}
	return (position - 1 + ColorOffset*int(color)) % RingSize, nil
}

// RingCoord returns the cell at a shared-track index.
func RingCoord(index int) Coord {
	return ring[((index%RingSize)+RingSize)%RingSize]
}

// RingIndexOf returns the shared-track index of a cell, if it lies on the ring.
func RingIndexOf(c Coord) (int, bool) {
	idx, ok := ringIndex[c]
	return idx, ok
}

// IsSafe reports whether captures are forbidden on the cell.
func IsSafe(c Coord) bool {
	_, ok := safeCells[c]
	return ok
}

// SafeCells lists the safe coordinates in ring order.
func SafeCells() []Coord {
	out := make([]Coord, 0, len(safeRingIndices))
	for _, idx := range safeRingIndices {
		out = append(out, ring[idx])
	}
	return out
}
