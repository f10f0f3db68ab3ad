package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// StakeTier is one entry fee level players can pick.
type StakeTier struct {
	ID           string `json:"id"`
	EntryAmount  int64  `json:"entry_amount"`
	RewardAmount int64  `json:"reward_amount"`
	PlayerCount  int    `json:"player_count"`
}

// Practice reports whether the tier plays for nothing.
func (t StakeTier) Practice() bool {
	return t.EntryAmount == 0 && t.RewardAmount == 0
}

type GameConfig struct {
	DefaultTier string      `json:"default_tier"`
	Tiers       []StakeTier `json:"tiers"`

	TurnDurationSeconds int `json:"turn_duration_seconds"`
	// PassDelaySeconds is the pause before a turn with nothing to move passes on.
	PassDelaySeconds    int `json:"pass_delay_seconds"`
	BotFillDelaySeconds int `json:"bot_fill_delay_seconds"`
	BotMinDelaySeconds  int `json:"bot_min_delay_seconds"`
	BotMaxDelaySeconds  int `json:"bot_max_delay_seconds"`
	// ResumeWindowSeconds is how long a disconnected owner may come back.
	ResumeWindowSeconds int `json:"resume_window_seconds"`
	// ResultLingerSeconds keeps a finished match open so clients see the result.
	ResultLingerSeconds int `json:"result_linger_seconds"`

	TacticalBotEntryThreshold int64 `json:"tactical_bot_entry_threshold"`
	WelcomeBonusGold          int64 `json:"welcome_bonus_gold"`

	// Filled from the runtime environment, never from the file.
	ResumeSecret string `json:"-"`
	RedisURL     string `json:"-"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() GameConfig {
	return GameConfig{
		DefaultTier: "practice",
		Tiers: []StakeTier{
			{ID: "practice", PlayerCount: 4},
			{ID: "bronze", EntryAmount: 100, RewardAmount: 180, PlayerCount: 2},
			{ID: "silver", EntryAmount: 500, RewardAmount: 1350, PlayerCount: 3},
			{ID: "gold", EntryAmount: 2000, RewardAmount: 7200, PlayerCount: 4},
		},
		TurnDurationSeconds:       30,
		PassDelaySeconds:          1,
		BotFillDelaySeconds:       3,
		BotMinDelaySeconds:        1,
		BotMaxDelaySeconds:        3,
		ResumeWindowSeconds:       120,
		ResultLingerSeconds:       5,
		TacticalBotEntryThreshold: 500,
		WelcomeBonusGold:          1000,
	}
}

var (
	cfg      *GameConfig
	cfgMu    sync.RWMutex
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path. Fields
// missing from the file keep their defaults.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}
		c, err := Parse(data)
		if err != nil {
			loadErr = err
			return
		}
		SetGameConfig(c)
	})
	return loadErr
}

// Parse decodes and validates a configuration document over the defaults.
func Parse(data []byte) (GameConfig, error) {
	c := Defaults()
	c.Tiers = nil
	if err := json.Unmarshal(data, &c); err != nil {
		return GameConfig{}, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	if len(c.Tiers) == 0 {
		c.Tiers = Defaults().Tiers
	}
	if err := c.Validate(); err != nil {
		return GameConfig{}, err
	}
	return c, nil
}

// Validate checks the tiers and timings.
func (c GameConfig) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.ID == "" || seen[t.ID] {
			errs = append(errs, fmt.Errorf("tier id %q is empty or duplicated", t.ID))
		}
		seen[t.ID] = true
		if t.PlayerCount < 2 || t.PlayerCount > 4 {
			errs = append(errs, fmt.Errorf("tier %s: player_count %d outside 2..4", t.ID, t.PlayerCount))
		}
		if t.EntryAmount < 0 || t.RewardAmount < 0 {
			errs = append(errs, fmt.Errorf("tier %s: negative amounts", t.ID))
		}
	}
	if c.DefaultTier != "" && !seen[c.DefaultTier] {
		errs = append(errs, fmt.Errorf("default tier %q not found", c.DefaultTier))
	}
	if c.TurnDurationSeconds < 0 || c.PassDelaySeconds < 0 || c.BotFillDelaySeconds < 0 || c.ResumeWindowSeconds < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.BotMinDelaySeconds < 0 || c.BotMaxDelaySeconds < c.BotMinDelaySeconds {
		errs = append(errs, fmt.Errorf("bot delay range [%d, %d] is invalid", c.BotMinDelaySeconds, c.BotMaxDelaySeconds))
	}
	return errors.Join(errs...)
}

// ApplyEnv overrides fields from the Nakama runtime environment.
func (c *GameConfig) ApplyEnv(env map[string]string) {
	if val, ok := env["ludo_bot_min_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil && i >= 0 {
			c.BotMinDelaySeconds = i
		}
	}
	if val, ok := env["ludo_bot_max_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil && i >= 0 {
			c.BotMaxDelaySeconds = i
		}
	}
	if c.BotMaxDelaySeconds < c.BotMinDelaySeconds {
		c.BotMaxDelaySeconds = c.BotMinDelaySeconds
	}
	if val, ok := env["ludo_resume_secret"]; ok {
		c.ResumeSecret = val
	}
	if val, ok := env["ludo_redis_url"]; ok {
		c.RedisURL = val
	}
}

// SetGameConfig replaces the global configuration.
func SetGameConfig(c GameConfig) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	cfg = &c
}

// GetGameConfig returns a copy of the global configuration, or the defaults
// when nothing was loaded.
func GetGameConfig() GameConfig {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if cfg == nil {
		return Defaults()
	}
	return *cfg
}

// Tier returns the tier with the given ID, falling back to the default tier.
func (c GameConfig) Tier(id string) (StakeTier, bool) {
	target := id
	if target == "" {
		target = c.DefaultTier
	}
	for _, t := range c.Tiers {
		if t.ID == target {
			return t, true
		}
	}
	return StakeTier{}, false
}

// ResumeWindow is the resume window as a duration.
func (c GameConfig) ResumeWindow() time.Duration {
	return time.Duration(c.ResumeWindowSeconds) * time.Second
}
