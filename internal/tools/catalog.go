package tools

import "tiergate/internal/domain/plan"

// Descriptor is the serializable view of a capability used by listings
type Descriptor struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MinimumTier plan.Tier `json:"minimum_tier"`
	MinimumPlan string    `json:"minimum_plan"`
}

// Describe converts capabilities into descriptors, preserving order
func Describe(caps []Capability) []Descriptor {
	out := make([]Descriptor, len(caps))
	for i, c := range caps {
		out[i] = Descriptor{
			Name:        c.Name,
			Description: c.Tool.Description(),
			MinimumTier: c.MinimumTier,
			MinimumPlan: c.MinimumTier.Label(),
		}
	}
	return out
}

// Names returns capability names in order
func Names(caps []Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.Name
	}
	return out
}
