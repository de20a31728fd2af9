package notify

import (
	"context"
	"log/slog"
)

// Sink delivers a notification to one destination.
type Sink interface {
	Deliver(ctx context.Context, n *Notification) error
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Deliver logs n at a level derived from its severity.
func (s *LogSink) Deliver(ctx context.Context, n *Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError, SeverityCritical:
		level = slog.LevelError
	}
	attrs := []any{"severity", string(n.Severity), "description", n.Description}
	for _, f := range n.Fields {
		attrs = append(attrs, f.Name, f.Value)
	}
	logger.Log(ctx, level, n.Title, attrs...)
	return nil
}
