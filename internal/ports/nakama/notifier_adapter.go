package nakama

import (
	"context"
	"fmt"

	"ludo/internal/ports"
)

const notificationCodeWin = 101

type notificationAPI interface {
	NotificationSend(ctx context.Context, userID, subject string, content map[string]interface{}, code int, sender string, persistent bool) error
}

// NakamaNotifier implements ports.Notifier with persistent Nakama notifications.
type NakamaNotifier struct {
	nk notificationAPI
}

// NewNakamaNotifier creates a new notifier.
func NewNakamaNotifier(nk notificationAPI) *NakamaNotifier {
	return &NakamaNotifier{nk: nk}
}

// NotifyWin tells a player they won a match.
func (n *NakamaNotifier) NotifyWin(ctx context.Context, userID string, note ports.Notification) error {
	content := map[string]interface{}{
		"message":  note.Message,
		"amount":   note.Amount,
		"match_id": note.MatchID,
	}
	if err := n.nk.NotificationSend(ctx, userID, note.Title, content, notificationCodeWin, "", true); err != nil {
		return fmt.Errorf("failed to notify %s: %w", userID, err)
	}
	return nil
}

var _ ports.Notifier = (*NakamaNotifier)(nil)
