package services

import (
	"context"
	"log"

	"github.com/go-realmgate/realmgate/internal/models"
)

// Notifier is the outbound notification capability. Delivery transport
// (email, SMS) lives behind it; failures never block login.
type Notifier interface {
	SendLoginNotification(ctx context.Context, user *models.User, clientDescription string) error
}

// LogNotifier writes login notifications to the process log. It is the
// default when no delivery transport is wired.
type LogNotifier struct{}

func (LogNotifier) SendLoginNotification(
	ctx context.Context,
	user *models.User,
	clientDescription string,
) error {
	log.Printf("[Notify] Login notification for %s (client: %s)", user.Email, clientDescription)
	return nil
}

// dispatchLoginNotification fires the notification without blocking the
// login path.
func dispatchLoginNotification(n Notifier, user *models.User, client string) {
	if n == nil || user == nil {
		return
	}
	go func() {
		if err := n.SendLoginNotification(context.Background(), user, client); err != nil {
			log.Printf("[Notify] Failed to send login notification for %s: %v", user.Email, err)
		}
	}()
}
