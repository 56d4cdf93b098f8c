package general

import (
	"google.golang.org/adk/tool"

	"tiergate/internal/domain/plan"
	"tiergate/internal/tools"
	"tiergate/internal/tools/shared"
)

// Register adds the general tools to registry in their display order.
// A duplicate name aborts registration with ErrDuplicateCapability.
func Register(registry *tools.Registry, deps shared.Deps) error {
	entries := []struct {
		build   func(shared.Deps) tool.Tool
		minimum plan.Tier
	}{
		{NewGetCurrentTimeTool, plan.Basic},
		{NewSendSupportLinkTool, plan.Basic},
		{NewRetrieveUserPlanTool, plan.Basic},
		{NewUpgradeUserPlanTool, plan.Basic},
		{NewGetWeatherTool, plan.Pro},
	}

	for _, e := range entries {
		if err := registry.Register(e.build(deps), e.minimum); err != nil {
			return err
		}
	}
	return nil
}
