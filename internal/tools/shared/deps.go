package shared

import (
	"context"
	"time"

	"tiergate/internal/domain/plan"
	"tiergate/pkg/logger"
)

// PlanChangedEvent is published whenever a tool changes a session's tier
type PlanChangedEvent struct {
	AppName    string    `json:"app_name"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	From       plan.Tier `json:"from"`
	To         plan.Tier `json:"to"`
	PlanName   string    `json:"plan_name"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PlanEventPublisher delivers plan change events (Kafka in production)
type PlanEventPublisher interface {
	PublishPlanChanged(ctx context.Context, event PlanChangedEvent) error
}

// Deps bundles dependencies required by concrete tool implementations.
// Stats tracking is handled by ADK tool callbacks, not here.
type Deps struct {
	Log    *logger.Logger
	Events PlanEventPublisher
	// Now is the clock used by time-dependent tools
	Now func() time.Time
}

// HasEvents reports whether a plan event publisher is wired
func (d Deps) HasEvents() bool {
	return d.Events != nil
}

// Clock returns d.Now or time.Now
func (d Deps) Clock() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Logger returns d.Log or the global logger
func (d Deps) Logger() *logger.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.Get()
}
