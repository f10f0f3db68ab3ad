package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"ludo/internal/ports"
)

// DefaultWelcomeBonusGold is granted when no amount is configured.
const DefaultWelcomeBonusGold = 1000

// Result captures non-fatal onboarding outcomes.
type Result struct {
	DisplayName         string
	WelcomeBonusGranted bool
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
}

// Service handles post-auth onboarding for new players.
type Service struct {
	accounts ports.AccountPort
	bonuses  ports.WelcomeBonusPort
	amount   int64
	rng      *rand.Rand
}

// NewService constructs an onboarding service. amount <= 0 uses
// DefaultWelcomeBonusGold; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, bonuses ports.WelcomeBonusPort, amount int64, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if amount <= 0 {
		amount = DefaultWelcomeBonusGold
	}
	return &Service{
		accounts: accounts,
		bonuses:  bonuses,
		amount:   amount,
		rng:      rng,
	}
}

// OnboardNewUser names the player if needed and grants the welcome gold once.
// An error is returned only when the bonus could not be granted.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil || s.bonuses == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}

	result := Result{}
	name, err := s.accounts.DisplayName(ctx, userID)
	switch {
	case err != nil:
		result.ProfileUpdateErr = err
	case name != "":
		result.DisplayName = name
	default:
		name = s.friendlyName()
		if err := s.accounts.UpdateProfile(ctx, userID, name, name); err != nil {
			result.ProfileUpdateErr = err
		} else {
			result.DisplayName = name
		}
	}

	granted, err := s.bonuses.GrantWelcomeBonusOnce(ctx, userID, s.amount, "welcome_bonus")
	if err != nil {
		return result, fmt.Errorf("failed to grant welcome bonus: %w", err)
	}
	result.WelcomeBonusGranted = granted
	return result, nil
}

var (
	nameAdjectives = []string{"Lucky", "Swift", "Bold", "Sly", "Steady", "Daring", "Nimble", "Crafty"}
	nameNouns      = []string{"Roller", "Runner", "Racer", "Pawn", "Striker", "Seeker", "Rider", "Dasher"}
)

func (s *Service) friendlyName() string {
	adj := nameAdjectives[s.rng.Intn(len(nameAdjectives))]
	noun := nameNouns[s.rng.Intn(len(nameNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, s.rng.Intn(9000)+1000)
}
