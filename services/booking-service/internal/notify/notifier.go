// Package notify turns committed booking events into email and in-app
// deliveries.
package notify

import (
	"context"
	"fmt"
)

// Notifier is the delivery surface the coordinator drives.
type Notifier interface {
	SendEmail(ctx context.Context, template, recipient string, data map[string]any) error
	CreateInAppNotification(ctx context.Context, userID, kind string, payload map[string]any) error
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type InAppStore interface {
	Create(ctx context.Context, userID, kind string, payload map[string]any) error
}

// ChannelNotifier renders templates and hands the result to an email sender
// and an in-app store.
type ChannelNotifier struct {
	email     EmailSender
	inApp     InAppStore
	templates *Templates
}

func NewChannelNotifier(email EmailSender, inApp InAppStore) *ChannelNotifier {
	return &ChannelNotifier{email: email, inApp: inApp, templates: DefaultTemplates()}
}

func (n *ChannelNotifier) SendEmail(ctx context.Context, template, recipient string, data map[string]any) error {
	subject, body, err := n.templates.Render(template, data)
	if err != nil {
		return err
	}
	if err := n.email.Send(ctx, recipient, subject, body); err != nil {
		return fmt.Errorf("send %s email: %w", template, err)
	}
	return nil
}

func (n *ChannelNotifier) CreateInAppNotification(ctx context.Context, userID, kind string, payload map[string]any) error {
	if n.inApp == nil {
		return fmt.Errorf("in-app store not configured")
	}
	return n.inApp.Create(ctx, userID, kind, payload)
}
