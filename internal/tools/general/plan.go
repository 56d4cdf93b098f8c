package general

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/adk/tool"

	"tiergate/internal/domain/plan"
	"tiergate/internal/metrics"
	"tiergate/internal/tools/shared"
	"tiergate/pkg/errors"
)

// NewRetrieveUserPlanTool reports the session's plan. The label is derived
// from the plan ordinal so it can never disagree with gating.
func NewRetrieveUserPlanTool(deps shared.Deps) tool.Tool {
	return shared.NewToolBuilder(
		ToolRetrieveUserPlan,
		"Returns the current user plan",
		retrievePlan(deps),
		deps,
	).MustBuild()
}

func retrievePlan(deps shared.Deps) shared.ToolFunc {
	return func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
		tier := shared.CurrentTier(ctx)
		return map[string]interface{}{
			"plan":      int(tier),
			"plan_name": tier.Label(),
		}, nil
	}
}

// NewUpgradeUserPlanTool moves a Basic session to Pro. It is the only tool
// that writes gating state.
func NewUpgradeUserPlanTool(deps shared.Deps) tool.Tool {
	return shared.NewToolBuilder(
		ToolUpgradeUserPlan,
		"Upgrades the user's plan to a Pro.",
		upgradePlan(deps),
		deps,
	).MustBuild()
}

func upgradePlan(deps shared.Deps) shared.ToolFunc {
	log := deps.Logger().With("tool", ToolUpgradeUserPlan)

	return func(ctx tool.Context, args map[string]interface{}) (map[string]interface{}, error) {
		from := shared.CurrentTier(ctx)
		target := plan.Pro

		// never downgrade a Team session
		if from.AtLeast(target) {
			return map[string]interface{}{
				"message":   fmt.Sprintf("User is already on the %s.", from.Label()),
				"plan":      int(from),
				"plan_name": from.Label(),
			}, nil
		}

		state := ctx.State()
		if state == nil {
			return nil, errors.Wrap(errors.ErrInternal, "session state unavailable")
		}
		// plan gates, the label only follows it
		if err := state.Set(plan.StateKey, int(target)); err != nil {
			return nil, errors.Wrap(err, "set plan")
		}
		if err := state.Set(plan.StateKeyName, target.Label()); err != nil {
			return nil, errors.Wrap(err, "set plan_name")
		}

		meta := shared.MetadataFrom(ctx)
		log.Infow("Plan upgraded",
			"user", meta.UserID,
			"session", meta.SessionID,
			"from", from.String(),
			"to", target.String(),
		)
		metrics.RecordPlanChange(from.String(), target.String(), "tool")

		if deps.HasEvents() {
			publishPlanChanged(ctx, deps, meta, from, target)
		}

		return map[string]interface{}{
			"message":   "User plan upgraded to Pro.",
			"plan":      int(target),
			"plan_name": target.Label(),
		}, nil
	}
}

// publishPlanChanged is best effort: the state change has already happened
func publishPlanChanged(ctx context.Context, deps shared.Deps, meta shared.InvocationMetadata, from, to plan.Tier) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := deps.Events.PublishPlanChanged(pubCtx, shared.PlanChangedEvent{
		AppName:    meta.AppName,
		UserID:     meta.UserID,
		SessionID:  meta.SessionID,
		From:       from,
		To:         to,
		PlanName:   to.Label(),
		Source:     "tool",
		OccurredAt: deps.Clock().UTC(),
	})
	if err != nil {
		deps.Logger().Warnw("Failed to publish plan change", "session", meta.SessionID, "error", err)
	}
}
