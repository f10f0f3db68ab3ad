package ports

import "context"

// Notification is a message pushed to a player outside of the match.
type Notification struct {
	Title   string
	Message string
	Amount  int64
	MatchID string
}

// Notifier delivers player notifications.
type Notifier interface {
	NotifyWin(ctx context.Context, userID string, n Notification) error
}
