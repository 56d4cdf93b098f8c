package agents

import (
	"sort"
	"sync"

	"google.golang.org/adk/agent"
)

// Registry stores root agents by app name for quick lookup.
type Registry struct {
	agents map[string]agent.Agent
	mu     sync.RWMutex
}

// NewRegistry constructs an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]agent.Agent)}
}

// Register adds or replaces an agent entry under its name.
func (r *Registry) Register(ag agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[ag.Name()] = ag
}

// Get retrieves an agent by app name.
func (r *Registry) Get(appName string) (agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ag, ok := r.agents[appName]
	return ag, ok
}

// List returns registered app names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]string, 0, len(r.agents))
	for name := range r.agents {
		res = append(res, name)
	}
	sort.Strings(res)

	return res
}
