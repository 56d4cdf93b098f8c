package callbacks

import (
	"sync"
	"time"

	"tiergate/internal/domain/stats"
	"tiergate/internal/tools"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// Deps contains dependencies for creating callbacks
type Deps struct {
	Log      *logger.Logger
	Resolver *tools.Resolver
	Tracker  errors.Tracker
	Stats    stats.Repository // nil disables usage analytics
	Timer    *CallTimer
}

// CallTimer remembers when each function call started.
// Keys are function call ids, which are unique within a session.
type CallTimer struct {
	mu     sync.Mutex
	starts map[string]time.Time
	now    func() time.Time
}

func NewCallTimer() *CallTimer {
	return &CallTimer{
		starts: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Start records the start of call id
func (t *CallTimer) Start(id string) {
	t.mu.Lock()
	t.starts[id] = t.now()
	t.mu.Unlock()
}

// Elapsed returns time since Start without forgetting the call
func (t *CallTimer) Elapsed(id string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start, ok := t.starts[id]
	if !ok {
		return 0, false
	}
	return t.now().Sub(start), true
}

// Finish returns time since Start and forgets the call
func (t *CallTimer) Finish(id string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	start, ok := t.starts[id]
	if !ok {
		return 0, false
	}
	delete(t.starts, id)
	return t.now().Sub(start), true
}

// Pending returns the number of calls started but not finished
func (t *CallTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.starts)
}
