package tools

import (
	"sync"

	"google.golang.org/adk/tool"

	"tiergate/internal/domain/plan"
	"tiergate/pkg/errors"
)

// Capability is a registered tool and the lowest tier allowed to see it
type Capability struct {
	Name        string
	MinimumTier plan.Tier
	Tool        tool.Tool
}

// Registry is the process-wide catalog of capabilities in registration order.
// It is filled once at startup and sealed; afterwards it is read-only.
type Registry struct {
	mu      sync.RWMutex
	entries []Capability
	index   map[string]int
	sealed  bool
}

// NewRegistry constructs an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register adds a tool gated at minimum. A zero minimum means Basic.
func (r *Registry) Register(t tool.Tool, minimum plan.Tier) error {
	if t == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil tool")
	}
	if minimum == 0 {
		minimum = plan.Basic
	}
	if !minimum.Valid() {
		return errors.Wrapf(errors.ErrInvalidInput, "tool %q: minimum tier %d", t.Name(), int(minimum))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errors.Wrapf(errors.ErrRegistrySealed, "tool %q", t.Name())
	}
	if _, exists := r.index[t.Name()]; exists {
		return errors.Wrapf(errors.ErrDuplicateCapability, "tool %q", t.Name())
	}

	r.index[t.Name()] = len(r.entries)
	r.entries = append(r.entries, Capability{
		Name:        t.Name(),
		MinimumTier: minimum,
		Tool:        t,
	})
	return nil
}

// MustRegister is Register for startup code; any error is a broken deployment.
func (r *Registry) MustRegister(t tool.Tool, minimum plan.Tier) {
	if err := r.Register(t, minimum); err != nil {
		panic(err)
	}
}

// Seal freezes the catalog. Further Register calls fail with ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// All returns every capability in registration order, ignoring tiers.
func (r *Registry) All() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Capability, len(r.entries))
	copy(out, r.entries)
	return out
}

// Get looks up a capability by tool name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Capability{}, false
	}
	return r.entries[i], true
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
