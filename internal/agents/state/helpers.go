package state

import (
	"google.golang.org/adk/session"

	"tiergate/internal/domain/plan"
)

// Session bootstrap keys, written once by the initial state callback
const (
	KeyInitialized = "initialized"
	KeySessionID   = "session_id"
	KeyUserID      = "id"
)

// ========================================
// Session bootstrap
// ========================================

// IsInitialized reports whether the bootstrap markers were written
func IsInitialized(state session.ReadonlyState) bool {
	val, err := state.Get(KeyInitialized)
	if err != nil {
		return false
	}
	initialized, ok := val.(bool)
	return ok && initialized
}

// MarkInitialized writes the bootstrap markers
func MarkInitialized(state session.State, sessionID, userID string) error {
	if err := state.Set(KeyInitialized, true); err != nil {
		return err
	}
	if err := state.Set(KeySessionID, sessionID); err != nil {
		return err
	}
	return state.Set(KeyUserID, userID)
}

// ========================================
// Plan
// ========================================

// GetPlan returns the session tier, falling back to plan.Default
func GetPlan(state session.ReadonlyState) plan.Tier {
	if state == nil {
		return plan.Default
	}
	val, err := state.Get(plan.StateKey)
	if err != nil {
		return plan.Default
	}
	tier, _ := plan.FromValue(val)
	return tier
}

// GetPlanName returns the stored display name, or the label of the default tier
func GetPlanName(state session.ReadonlyState) string {
	val, err := state.Get(plan.StateKeyName)
	if err != nil {
		return plan.Default.Label()
	}
	if name, ok := val.(string); ok && name != "" {
		return name
	}
	return plan.Default.Label()
}

// SetPlan writes the tier and its derived label together
func SetPlan(state session.State, tier plan.Tier) error {
	if err := state.Set(plan.StateKeyName, tier.Label()); err != nil {
		return err
	}
	return state.Set(plan.StateKey, int(tier))
}

// PlanDelta is SetPlan as an event state delta
func PlanDelta(tier plan.Tier) map[string]any {
	return map[string]any{
		plan.StateKey:     int(tier),
		plan.StateKeyName: tier.Label(),
	}
}
