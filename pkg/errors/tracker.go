package errors

import (
	"context"
)

// Tracker reports errors to an external service such as Sentry
type Tracker interface {
	// CaptureError sends an error with tags
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	// CaptureMessage sends a plain message at the given level
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// SetUser associates subsequent events with an agent user
	SetUser(ctx context.Context, userID string, username string)

	// AddBreadcrumb records a step leading up to a later error (tool calls, plan changes)
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush waits for pending events to be sent
	Flush(ctx context.Context) error
}

// Level is the severity of a captured event
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}
