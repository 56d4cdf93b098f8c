package tools

import (
	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
)

// TieredToolset exposes the resolver to an ADK agent. The runtime asks for
// tools on every model request, so a plan change written during a turn is
// visible to the next request without touching the agent.
type TieredToolset struct {
	name     string
	resolver *Resolver
}

// NewToolset seals the resolver's registry and wraps it as a tool.Toolset
func NewToolset(name string, resolver *Resolver) *TieredToolset {
	resolver.Registry().Seal()
	return &TieredToolset{
		name:     name,
		resolver: resolver,
	}
}

func (s *TieredToolset) Name() string {
	return s.name
}

// Tools resolves from the request's readonly session state
func (s *TieredToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	var state StateReader
	if ctx != nil {
		if st := ctx.ReadonlyState(); st != nil {
			state = st
		}
	}
	return s.resolver.Tools(state), nil
}

var _ tool.Toolset = (*TieredToolset)(nil)
