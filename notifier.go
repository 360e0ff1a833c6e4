package authcore

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// NotificationKind identifies the message being delivered to a user.
type NotificationKind string

const (
	NotifyVerification  NotificationKind = "VERIFICATION"
	NotifyPasswordReset NotificationKind = "PASSWORD_RESET"
)

// Notification is the payload handed to a Notifier. Token carries the
// full link token, Code the short form a user can type instead.
type Notification struct {
	Kind  NotificationKind
	Token string
	Code  string
}

// Notifier delivers ephemeral token notifications. Delivery failures are
// logged by the orchestrator and never surfaced to callers.
type Notifier interface {
	Send(ctx context.Context, to string, msg Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, to string, msg Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, to string, msg Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, to, msg)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, string, Notification) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// LogNotifier prints notifications instead of sending them, for local
// development and tests.
type LogNotifier struct {
	Logger Logger
}

func (n LogNotifier) Send(_ context.Context, to string, msg Notification) error {
	logger := n.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("notification (not sent): kind=%s to=%s code=%s", msg.Kind, to, msg.Code)
	return nil
}

// ResendNotifier delivers notifications through the Resend API.
type ResendNotifier struct {
	client  *resend.Client
	from    string
	baseURL string
}

var _ Notifier = (*ResendNotifier)(nil)

// NewResendNotifier builds a Notifier backed by Resend. baseURL is the
// public frontend origin used to build verification/reset links.
func NewResendNotifier(apiKey, from, baseURL string) *ResendNotifier {
	return &ResendNotifier{
		client:  resend.NewClient(apiKey),
		from:    from,
		baseURL: baseURL,
	}
}

func (n *ResendNotifier) Send(ctx context.Context, to string, msg Notification) error {
	subject, body := n.render(msg)

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}

	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}

	return nil
}

func (n *ResendNotifier) render(msg Notification) (subject, body string) {
	switch msg.Kind {
	case NotifyPasswordReset:
		subject = "Reset your password"
		body = fmt.Sprintf(
			`<p>We received a request to reset your password.</p>
<p><a href="%s/reset-password?token=%s">Reset password</a></p>
<p>This link expires soon. If you did not request it, ignore this email.</p>`,
			n.baseURL, msg.Token,
		)
	default:
		subject = "Verify your email"
		body = fmt.Sprintf(
			`<p>Your verification code is <strong>%s</strong>.</p>
<p>Or verify directly: <a href="%s/verify-email?token=%s">confirm email</a></p>`,
			msg.Code, n.baseURL, msg.Token,
		)
	}
	return subject, body
}
