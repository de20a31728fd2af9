package notify

import (
	"context"
	"log/slog"
	"time"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Field is a labelled value attached to a notification.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Notification is a single operator message.
type Notification struct {
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Fields      []Field   `json:"fields,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notifier sends notifications.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n *Notification) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, n *Notification) error { return f(ctx, n) }

// Nop discards every notification.
var Nop Notifier = NotifierFunc(func(context.Context, *Notification) error { return nil })

// Send builds and sends a notification, logging (never returning) failures.
// A nil notifier is allowed.
func Send(ctx context.Context, notifier Notifier, severity Severity, title, description string, fields ...Field) {
	if notifier == nil {
		return
	}
	n := &Notification{
		Severity:    severity,
		Title:       title,
		Description: description,
		Fields:      fields,
		CreatedAt:   time.Now(),
	}
	if err := notifier.Send(ctx, n); err != nil {
		slog.Default().Warn("notification not sent", "title", title, "severity", string(severity), "error", err)
	}
}

// Success sends a success notification.
func Success(ctx context.Context, n Notifier, title, description string, fields ...Field) {
	Send(ctx, n, SeveritySuccess, title, description, fields...)
}

// Warning sends a warning notification.
func Warning(ctx context.Context, n Notifier, title, description string, fields ...Field) {
	Send(ctx, n, SeverityWarning, title, description, fields...)
}

// Error sends an error notification.
func Error(ctx context.Context, n Notifier, title, description string, fields ...Field) {
	Send(ctx, n, SeverityError, title, description, fields...)
}

// Critical sends a critical notification.
func Critical(ctx context.Context, n Notifier, title, description string, fields ...Field) {
	Send(ctx, n, SeverityCritical, title, description, fields...)
}
