package auth

import (
	"context"
	"time"
)

// NotificationKind selects the message template.
type NotificationKind string

const (
	NotificationVerifyEmail   NotificationKind = "verify_email"
	NotificationResetPassword NotificationKind = "reset_password"
)

// Recipient identifies the account a notification is addressed to.
type Recipient struct {
	UserID string
	Email  string
	Name   string
}

// NotificationPayload carries the plaintext action token placed in the emailed link.
type NotificationPayload struct {
	Token     string
	ExpiresAt time.Time
}

// Notifier hands notifications to an asynchronous delivery mechanism. Send must not
// block on delivery; an error only means the notification was not queued.
type Notifier interface {
	Send(ctx context.Context, recipient Recipient, kind NotificationKind, payload NotificationPayload) error
}

// Audit results.
const (
	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
	AuditResultDenied  = "denied"
)

// AuditEvent describes one account operation outcome.
type AuditEvent struct {
	Action   string
	Result   string
	UserID   string
	Email    string
	Metadata map[string]any
}

// Auditor records audit events on a best effort basis.
type Auditor interface {
	Record(ctx context.Context, event AuditEvent)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, Recipient, NotificationKind, NotificationPayload) error {
	return nil
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, AuditEvent) {}
