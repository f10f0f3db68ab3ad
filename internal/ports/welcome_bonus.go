package ports

import "context"

// WelcomeBonusPort grants the starting gold of a new player.
type WelcomeBonusPort interface {
	// GrantWelcomeBonusOnce credits amount unless the user already received it.
	// granted is false when an earlier grant exists.
	GrantWelcomeBonusOnce(ctx context.Context, userID string, amount int64, reason string) (granted bool, err error)
}
