package callbacks

import (
	"context"
	"time"

	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/tool"

	"tiergate/internal/domain/stats"
	"tiergate/internal/metrics"
	"tiergate/internal/tools/shared"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// ADK semantics: an after-tool callback returning a non-nil result or error
// replaces the tool output and stops the chain. Observers return nil, nil.

// RecordStartBeforeToolCallback starts the timer for a call and logs it
func RecordStartBeforeToolCallback(timer *CallTimer, tracker errors.Tracker, log *logger.Logger) llmagent.BeforeToolCallback {
	return func(ctx tool.Context, t tool.Tool, args map[string]any) (map[string]any, error) {
		timer.Start(ctx.FunctionCallID())

		log.Debugw("Tool call",
			"tool", t.Name(),
			"user", ctx.UserID(),
			"session", ctx.SessionID(),
			"args", args,
		)
		if tracker != nil {
			tracker.AddBreadcrumb(ctx, "tool call", "tool", errors.LevelInfo, map[string]interface{}{
				"tool":    t.Name(),
				"session": ctx.SessionID(),
			})
		}
		return nil, nil
	}
}

// AuditLogAfterToolCallback logs every tool execution and reports failures
func AuditLogAfterToolCallback(timer *CallTimer, tracker errors.Tracker, log *logger.Logger) llmagent.AfterToolCallback {
	return func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error) {
		elapsed, _ := timer.Elapsed(ctx.FunctionCallID())
		log := log.With(
			"component", "tool_audit",
			"tool", t.Name(),
			"user", ctx.UserID(),
			"session", ctx.SessionID(),
			"duration", elapsed,
		)

		if err == nil {
			log.Infow("Tool executed")
			return nil, nil
		}

		// gated and invalid calls are expected traffic, not incidents
		if errors.Is(err, errors.ErrForbidden) || errors.Is(err, errors.ErrInvalidInput) {
			log.Warnw("Tool rejected", "error", err)
			return nil, nil
		}

		log.Errorw("Tool failed", "error", err, "args", args)
		if tracker != nil {
			_ = tracker.CaptureError(ctx, errors.Wrapf(err, "tool %s", t.Name()), map[string]string{
				"tool":    t.Name(),
				"user_id": ctx.UserID(),
				"session": ctx.SessionID(),
			})
		}
		return nil, nil
	}
}

// StatsAfterToolCallback records Prometheus metrics and, when a repository
// is configured, a ClickHouse usage row. The insert runs asynchronously.
func StatsAfterToolCallback(timer *CallTimer, repo stats.Repository, log *logger.Logger) llmagent.AfterToolCallback {
	return func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error) {
		duration, ok := timer.Finish(ctx.FunctionCallID())
		if !ok {
			return nil, nil
		}

		metrics.RecordToolExecution(t.Name(), duration, err)

		if repo == nil {
			return nil, nil
		}

		meta := shared.MetadataFrom(ctx)
		usage := &stats.ToolUsageEvent{
			AppName:      meta.AppName,
			UserID:       meta.UserID,
			SessionID:    meta.SessionID,
			AgentName:    meta.AgentName,
			InvocationID: meta.InvocationID,
			ToolName:     t.Name(),
			Tier:         uint8(shared.CurrentTier(ctx)),
			Timestamp:    time.Now().UTC(),
			DurationMs:   uint32(duration.Milliseconds()),
			Success:      err == nil,
		}
		if err != nil {
			usage.Error = err.Error()
		}

		go func() {
			insertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if insertErr := repo.InsertToolUsage(insertCtx, usage); insertErr != nil {
				log.Warnw("Failed to record tool stats", "tool", usage.ToolName, "error", insertErr)
			}
		}()

		return nil, nil
	}
}
