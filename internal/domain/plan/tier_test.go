package plan

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Tier
		ok   bool
	}{
		{"int basic", 1, Basic, true},
		{"int pro", 2, Pro, true},
		{"int team", 3, Team, true},
		{"int64", int64(2), Pro, true},
		{"uint8", uint8(3), Team, true},
		{"tier value", Pro, Pro, true},
		{"json float", float64(2), Pro, true},
		{"json number", json.Number("3"), Team, true},
		{"json number float form", json.Number("2.0"), Pro, true},
		{"zero", 0, Basic, false},
		{"negative", -1, Basic, false},
		{"out of range", 999, Basic, false},
		{"fractional float", 1.5, Basic, false},
		{"nan", math.NaN(), Basic, false},
		{"huge uint64", uint64(math.MaxUint64), Basic, false},
		{"string digit", "2", Basic, false},
		{"bool", true, Basic, false},
		{"nil", nil, Basic, false},
		{"garbage json number", json.Number("pro"), Basic, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromValue_FailSoft(t *testing.T) {
	tier, err := FromValue(999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPlanValue))
	assert.Equal(t, Basic, tier)

	tier, err = FromValue(2)
	require.NoError(t, err)
	assert.Equal(t, Pro, tier)
}

func TestTier_Ordering(t *testing.T) {
	assert.True(t, Basic < Pro && Pro < Team)
	assert.True(t, Team.AtLeast(Pro))
	assert.True(t, Pro.AtLeast(Pro))
	assert.False(t, Basic.AtLeast(Pro))
}

func TestTier_Labels(t *testing.T) {
	assert.Equal(t, "Basic Plan", Basic.Label())
	assert.Equal(t, "Pro Plan", Pro.Label())
	assert.Equal(t, "Team Plan", Team.Label())
	assert.Equal(t, "Basic Plan", Tier(42).Label())

	assert.Equal(t, "PRO", Pro.String())
	assert.Equal(t, "UNKNOWN(42)", Tier(42).String())
}
