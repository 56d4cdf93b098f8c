// Package plan defines subscription tiers and how raw session values map onto them.
package plan

import (
	"encoding/json"
	"math"
	"strconv"

	"tiergate/pkg/errors"
)

// Tier is an ordinal subscription level. Higher tiers see every tool a lower tier sees.
type Tier int

const (
	Basic Tier = 1
	Pro   Tier = 2
	Team  Tier = 3
)

// Default is the tier of a session with no usable plan value
const Default = Basic

// Session state keys. StateKey drives gating; StateKeyName is display only
// and is always written as the Label of StateKey's tier.
const (
	StateKey     = "plan"
	StateKeyName = "plan_name"
)

// All lists every defined tier in ascending order
var All = []Tier{Basic, Pro, Team}

// Valid reports whether t is a defined tier
func (t Tier) Valid() bool {
	return t >= Basic && t <= Team
}

// String returns the enum name used in logs and metrics labels
func (t Tier) String() string {
	switch t {
	case Basic:
		return "BASIC"
	case Pro:
		return "PRO"
	case Team:
		return "TEAM"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
}

// Label is the display string stored as plan_name
func (t Tier) Label() string {
	switch t {
	case Basic:
		return "Basic Plan"
	case Pro:
		return "Pro Plan"
	case Team:
		return "Team Plan"
	default:
		return Default.Label()
	}
}

// AtLeast reports whether t grants access to something gated at min
func (t Tier) AtLeast(min Tier) bool {
	return t >= min
}

// Parse converts a raw state value to a tier.
// Integers of any width, integral floats (JSON numbers decode as float64),
// json.Number and another Tier are accepted. Everything else, including values
// outside the defined range, is reported as not ok.
func Parse(raw any) (Tier, bool) {
	var n int64
	switch v := raw.(type) {
	case Tier:
		n = int64(v)
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint:
		if uint64(v) > math.MaxInt64 {
			return Default, false
		}
		n = int64(v)
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return Default, false
		}
		n = int64(v)
	case float32:
		return parseFloat(float64(v))
	case float64:
		return parseFloat(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return Default, false
			}
			return parseFloat(f)
		}
		n = i
	default:
		return Default, false
	}

	t := Tier(n)
	if int64(t) != n || !t.Valid() {
		return Default, false
	}
	return t, true
}

func parseFloat(f float64) (Tier, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Default, false
	}
	if f < float64(Basic) || f > float64(Team) {
		return Default, false
	}
	return Tier(int(f)), true
}

// FromValue resolves a raw state value with fail-soft semantics:
// anything Parse rejects becomes Default. The error describes the rejected
// value so callers can log it; it is never meant to be surfaced.
func FromValue(raw any) (Tier, error) {
	t, ok := Parse(raw)
	if !ok {
		return Default, errors.Wrapf(errors.ErrInvalidPlanValue, "%v (%T)", raw, raw)
	}
	return t, nil
}
