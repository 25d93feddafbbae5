package editor

import (
	"context"
	"log/slog"
)

// Level is the severity of a Notification.
type Level uint8

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a user visible message about a node or the session.
type Notification struct {
	Level   Level
	NodeID  string
	Message string
	Err     error
}

// Notifier surfaces notifications to the operator.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"level", n.Level.String()}
	if n.NodeID != "" {
		attrs = append(attrs, "node_id", n.NodeID)
	}
	if n.Err != nil {
		attrs = append(attrs, "error", n.Err)
	}
	switch n.Level {
	case LevelError:
		logger.ErrorContext(ctx, n.Message, attrs...)
	case LevelWarning:
		logger.WarnContext(ctx, n.Message, attrs...)
	default:
		logger.InfoContext(ctx, n.Message, attrs...)
	}
}
