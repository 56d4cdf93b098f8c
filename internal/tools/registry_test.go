package tools

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/internal/domain/plan"
	"tiergate/pkg/errors"
)

func TestRegistry_PreservesInsertionOrder(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newTestTool(t, "zeta"), plan.Team)
	r.MustRegister(newTestTool(t, "alpha"), plan.Basic)
	r.MustRegister(newTestTool(t, "mid"), plan.Pro)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, Names(r.All()))
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_DefaultsToBasic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newTestTool(t, "noop"), 0))

	c, ok := r.Get("noop")
	require.True(t, ok)
	assert.Equal(t, plan.Basic, c.MinimumTier)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newTestTool(t, "get_weather"), plan.Pro))

	err := r.Register(newTestTool(t, "get_weather"), plan.Basic)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateCapability))

	// the original entry is untouched
	c, _ := r.Get("get_weather")
	assert.Equal(t, plan.Pro, c.MinimumTier)
	assert.Equal(t, 1, r.Len())

	assert.Panics(t, func() { r.MustRegister(newTestTool(t, "get_weather"), plan.Pro) })
}

func TestRegistry_RejectsBadInput(t *testing.T) {
	r := NewRegistry()

	err := r.Register(nil, plan.Basic)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	err = r.Register(newTestTool(t, "x"), plan.Tier(7))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Seal(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newTestTool(t, "a"), plan.Basic)
	r.Seal()

	assert.True(t, r.Sealed())
	err := r.Register(newTestTool(t, "b"), plan.Basic)
	assert.True(t, errors.Is(err, errors.ErrRegistrySealed))
	assert.Equal(t, []string{"a"}, Names(r.All()))
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newTestTool(t, "a"), plan.Basic)

	all := r.All()
	all[0].Name = "mutated"

	assert.Equal(t, "a", r.All()[0].Name)
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newTestTool(t, "a"), plan.Basic)
	r.MustRegister(newTestTool(t, "b"), plan.Pro)
	r.Seal()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Len(t, r.All(), 2)
			_, ok := r.Get("b")
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}
