package bot

import (
	"fmt"
	"strings"
)

// Level is the playing strength of a bot.
type Level string

const (
	// LevelBasic finishes, enters and otherwise pushes its leading token.
	LevelBasic Level = "basic"
	// LevelTactical also captures, pressures, races and avoids danger.
	LevelTactical Level = "tactical"
)

// ParseLevel accepts the level names used in config and labels.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBasic:
		return LevelBasic, nil
	case LevelTactical:
		return LevelTactical, nil
	default:
		return "", fmt.Errorf("unknown bot level: %q", s)
	}
}

// LevelFor picks the bot level for a match. Wagered matches at or above the
// threshold and hard practice matches get tactical bots.
func LevelFor(entryAmount, tacticalThreshold int64, practiceDifficulty string) Level {
	if entryAmount > 0 && tacticalThreshold > 0 && entryAmount >= tacticalThreshold {
		return LevelTactical
	}
	if entryAmount == 0 && practiceDifficulty == "hard" {
		return LevelTactical
	}
	return LevelBasic
}

// NewBrain creates a new AI brain based on the specified level.
func NewBrain(level Level) (Brain, error) {
	switch level {
	case LevelBasic:
		return &RuleBot{Rules: BasicRules()}, nil
	case LevelTactical:
		return &RuleBot{Rules: TacticalRules()}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %q", level)
	}
}

// NewAgent builds a bot seated under userID.
func NewAgent(userID, name string, level Level) (*Agent, error) {
	brain, err := NewBrain(level)
	if err != nil {
		return nil, err
	}
	return &Agent{ID: userID, Name: name, Level: level, Strategy: brain}, nil
}
