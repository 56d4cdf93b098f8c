package testsupport

import (
	"context"
	"iter"
	"maps"
	"sync"
	"time"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
)

// MapState is a goroutine-safe map behind session.State
type MapState struct {
	mu       sync.RWMutex
	m        map[string]any
	failKeys map[string]error
}

// NewMapState copies initial into a new state
func NewMapState(initial map[string]any) *MapState {
	m := make(map[string]any, len(initial))
	maps.Copy(m, initial)
	return &MapState{m: m}
}

func (s *MapState) Get(key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, session.ErrStateKeyNotExist
	}
	return v, nil
}

func (s *MapState) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failKeys[key]; ok {
		return err
	}
	s.m[key] = value
	return nil
}

// FailSet makes every later Set of key return err
func (s *MapState) FailSet(key string, err error) *MapState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKeys == nil {
		s.failKeys = make(map[string]error)
	}
	s.failKeys[key] = err
	return s
}

func (s *MapState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for k, v := range s.Snapshot() {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the current contents
func (s *MapState) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.m)
}

// Identity carries the identifiers an ADK context reports
type Identity struct {
	AppName        string
	UserID         string
	SessionID      string
	AgentName      string
	InvocationID   string
	FunctionCallID string
}

// DefaultIdentity is used when a fake is built without one
var DefaultIdentity = Identity{
	AppName:        "basic_agent",
	UserID:         "u_default",
	SessionID:      "s_test",
	AgentName:      "basic_agent",
	InvocationID:   "e-test",
	FunctionCallID: "call-1",
}

// ToolContext is a tool.Context fake. Only the accessors used by this
// module's handlers and callbacks are implemented; anything else panics.
type ToolContext struct {
	tool.Context
	ctx   context.Context
	state *MapState
	id    Identity
}

// NewToolContext creates a fake over state
func NewToolContext(ctx context.Context, state *MapState) *ToolContext {
	if state == nil {
		state = NewMapState(nil)
	}
	return &ToolContext{ctx: ctx, state: state, id: DefaultIdentity}
}

// WithIdentity replaces the identifiers
func (c *ToolContext) WithIdentity(id Identity) *ToolContext {
	c.id = id
	return c
}

func (c *ToolContext) Deadline() (time.Time, bool) { return c.ctx.Deadline() }
func (c *ToolContext) Done() <-chan struct{}       { return c.ctx.Done() }
func (c *ToolContext) Err() error                  { return c.ctx.Err() }
func (c *ToolContext) Value(key any) any           { return c.ctx.Value(key) }

func (c *ToolContext) State() session.State                 { return c.state }
func (c *ToolContext) ReadonlyState() session.ReadonlyState { return c.state }
func (c *ToolContext) AppName() string                      { return c.id.AppName }
func (c *ToolContext) UserID() string                       { return c.id.UserID }
func (c *ToolContext) SessionID() string                    { return c.id.SessionID }
func (c *ToolContext) AgentName() string                    { return c.id.AgentName }
func (c *ToolContext) InvocationID() string                 { return c.id.InvocationID }
func (c *ToolContext) FunctionCallID() string               { return c.id.FunctionCallID }

// CallbackContext is an agent.CallbackContext fake
type CallbackContext struct {
	agent.CallbackContext
	ctx   context.Context
	state *MapState
	id    Identity
}

// NewCallbackContext creates a fake over state
func NewCallbackContext(ctx context.Context, state *MapState) *CallbackContext {
	if state == nil {
		state = NewMapState(nil)
	}
	return &CallbackContext{ctx: ctx, state: state, id: DefaultIdentity}
}

// WithIdentity replaces the identifiers
func (c *CallbackContext) WithIdentity(id Identity) *CallbackContext {
	c.id = id
	return c
}

func (c *CallbackContext) Deadline() (time.Time, bool) { return c.ctx.Deadline() }
func (c *CallbackContext) Done() <-chan struct{}       { return c.ctx.Done() }
func (c *CallbackContext) Err() error                  { return c.ctx.Err() }
func (c *CallbackContext) Value(key any) any           { return c.ctx.Value(key) }

func (c *CallbackContext) State() session.State                 { return c.state }
func (c *CallbackContext) ReadonlyState() session.ReadonlyState { return c.state }
func (c *CallbackContext) AppName() string                      { return c.id.AppName }
func (c *CallbackContext) UserID() string                       { return c.id.UserID }
func (c *CallbackContext) SessionID() string                    { return c.id.SessionID }
func (c *CallbackContext) AgentName() string                    { return c.id.AgentName }
func (c *CallbackContext) InvocationID() string                 { return c.id.InvocationID }

// ReadonlyContext is an agent.ReadonlyContext fake
type ReadonlyContext struct {
	agent.ReadonlyContext
	state *MapState
}

// NewReadonlyContext creates a fake over state
func NewReadonlyContext(state *MapState) *ReadonlyContext {
	return &ReadonlyContext{state: state}
}

func (c *ReadonlyContext) ReadonlyState() session.ReadonlyState {
	if c.state == nil {
		return nil
	}
	return c.state
}

var (
	_ session.State         = (*MapState)(nil)
	_ tool.Context          = (*ToolContext)(nil)
	_ agent.CallbackContext = (*CallbackContext)(nil)
	_ agent.ReadonlyContext = (*ReadonlyContext)(nil)
)
