package dice

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Difficulty selects a weight table for practice bots.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Mode is the distribution a roll is drawn from.
type Mode int

const (
	// ModeFair draws uniformly from 1..6.
	ModeFair Mode = iota
	// ModeWeighted draws from a difficulty table. Only practice bots use it.
	ModeWeighted
)

func (m Mode) String() string {
	if m == ModeWeighted {
		return "weighted"
	}
	return "fair"
}

// Weights holds the probability of faces 1..6.
type Weights [6]float64

const weightTolerance = 1e-9

var fairWeights = Weights{1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6}

var difficultyWeights = map[Difficulty]Weights{
	DifficultyEasy:   {0.22, 0.20, 0.18, 0.16, 0.13, 0.11},
	DifficultyNormal: fairWeights,
	DifficultyHard:   {0.11, 0.13, 0.16, 0.18, 0.20, 0.22},
}

func init() {
	if err := fairWeights.Validate(); err != nil {
		panic(err)
	}
	for d, w := range difficultyWeights {
		if err := w.Validate(); err != nil {
			panic(fmt.Sprintf("dice: %s table: %v", d, err))
		}
	}
}

// Validate checks that every weight is non-negative and the table sums to 1.
func (w Weights) Validate() error {
	sum := 0.0
	for face, p := range w {
		if p < 0 {
			return fmt.Errorf("negative weight %f for face %d", p, face+1)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights sum to %f", sum)
	}
	return nil
}

// Mean is the expected face value of the table.
func (w Weights) Mean() float64 {
	mean := 0.0
	for face, p := range w {
		mean += float64(face+1) * p
	}
	return mean
}

// WeightsFor returns the table of a difficulty, falling back to fair.
func WeightsFor(d Difficulty) Weights {
	if w, ok := difficultyWeights[d]; ok {
		return w
	}
	return fairWeights
}

// Request describes who is rolling and under which stakes.
type Request struct {
	ActorIsBot bool
	// Practice is true when no money is at stake in the match.
	Practice   bool
	Difficulty Difficulty
}

// ModeFor picks the distribution for a roll. Wagered matches and human
// actors always roll fair dice.
func ModeFor(req Request) Mode {
	if req.ActorIsBot && req.Practice && req.Difficulty != "" {
		return ModeWeighted
	}
	return ModeFair
}

// Generator rolls six-sided dice. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator constructs a Generator with rng or a time-seeded default.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rng: rng}
}

// Roll returns a face in 1..6.
func (g *Generator) Roll(req Request) int {
	if ModeFor(req) == ModeWeighted {
		return g.RollWeighted(WeightsFor(req.Difficulty))
	}
	return g.RollFair()
}

// RollFair returns a uniformly distributed face.
func (g *Generator) RollFair() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(6) + 1
}

// RollWeighted draws a face from w.
func (g *Generator) RollWeighted(w Weights) int {
	g.mu.Lock()
	r := g.rng.Float64()
	g.mu.Unlock()

	acc := 0.0
	for face, p := range w {
		acc += p
		if r < acc {
			return face + 1
		}
	}
	// Rounding left r above the running sum.
	return 6
}
