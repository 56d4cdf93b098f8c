package tools

import (
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"

	"tiergate/internal/domain/plan"
	"tiergate/internal/metrics"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// StateReader is the read side of a session state bag.
// session.State and session.ReadonlyState both satisfy it.
type StateReader interface {
	Get(key string) (any, error)
}

// Resolver computes which capabilities a session may see.
// It keeps no state of its own between calls.
type Resolver struct {
	registry *Registry
	log      *logger.Logger
}

// NewResolver creates a resolver over registry
func NewResolver(registry *Registry, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Get()
	}
	return &Resolver{
		registry: registry,
		log:      log.With("component", "tool_resolver"),
	}
}

// Registry returns the catalog the resolver reads from
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// TierOf reads the plan from state. A nil state, a missing key or a value
// that maps to no tier all resolve to plan.Default.
func (r *Resolver) TierOf(state StateReader) plan.Tier {
	tier, _ := r.tierOf(state)
	return tier
}

func (r *Resolver) tierOf(state StateReader) (tier plan.Tier, invalid bool) {
	if state == nil {
		return plan.Default, false
	}

	raw, err := state.Get(plan.StateKey)
	if err != nil {
		if !errors.Is(err, session.ErrStateKeyNotExist) {
			r.log.Warnw("Failed to read plan from state, using default tier", "error", err)
		}
		return plan.Default, false
	}

	tier, err = plan.FromValue(raw)
	if err != nil {
		r.log.Warnw("Unknown plan in state, using default tier", "error", err, "tier", tier)
		return tier, true
	}
	return tier, false
}

// Resolve returns the capabilities visible at the state's tier, in registration order.
// It never modifies state.
func (r *Resolver) Resolve(state StateReader) []Capability {
	tier, invalid := r.tierOf(state)
	visible := r.ForTier(tier)

	r.log.Debugw("Resolved tools", "tier", tier.String(), "count", len(visible), "tools", Names(visible))
	metrics.RecordResolution(tier.String(), len(visible), invalid)

	return visible
}

// ForTier filters the catalog for a known tier without touching any state
func (r *Resolver) ForTier(tier plan.Tier) []Capability {
	all := r.registry.All()
	visible := make([]Capability, 0, len(all))
	for _, c := range all {
		if tier.AtLeast(c.MinimumTier) {
			visible = append(visible, c)
		}
	}
	return visible
}

// Tools is Resolve reduced to the ADK tool values
func (r *Resolver) Tools(state StateReader) []tool.Tool {
	caps := r.Resolve(state)
	out := make([]tool.Tool, len(caps))
	for i, c := range caps {
		out[i] = c.Tool
	}
	return out
}
