package rerp

import (
	"math"

	"brainlm/internal/errors"
)

// LagWindow is a half-open range [Min, Max) of sample lags relative to onset.
type LagWindow struct {
	Min int
	Max int
}

// NLags returns the number of lag columns.
func (w LagWindow) NLags() int {
	return w.Max - w.Min
}

// TimeAxis returns Min/sfreq, ..., (Max-1)/sfreq.
func (w LagWindow) TimeAxis(sfreq float64) []float64 {
	axis := make([]float64, 0, w.NLags())
	for lag := w.Min; lag < w.Max; lag++ {
		axis = append(axis, float64(lag)/sfreq)
	}
	return axis
}

// ConditionLag pairs a condition with its resolved lag window.
type ConditionLag struct {
	Condition Condition
	Lags      LagWindow
}

// LagPlan is the ordered list of resolved windows, one per registered condition.
type LagPlan []ConditionLag

// Map returns the plan keyed by condition name.
func (p LagPlan) Map() map[string]LagWindow {
	out := make(map[string]LagWindow, len(p))
	for _, cl := range p {
		out[cl.Condition.Name] = cl.Lags
	}
	return out
}

// Columns returns the total number of lag columns across the plan.
func (p LagPlan) Columns() int {
	total := 0
	for _, cl := range p {
		total += cl.Lags.NLags()
	}
	return total
}

// ResolveWindow converts a window in seconds to sample lags.
// math.Round rounds half away from zero; the upper bound gets one extra sample
// so tmin == tmax still produces a single lag column.
func ResolveWindow(w Window, sfreq float64) (LagWindow, error) {
	if sfreq <= 0 || math.IsNaN(sfreq) || math.IsInf(sfreq, 0) {
		return LagWindow{}, errors.ConfigurationError("sampling rate must be positive, got %v", sfreq)
	}
	lw := LagWindow{
		Min: int(math.Round(w.TMin * sfreq)),
		Max: int(math.Round(w.TMax*sfreq)) + 1,
	}
	if lw.Max <= lw.Min {
		return LagWindow{}, errors.ConfigurationError(
			"window (%g, %g) at %g Hz resolves to empty lag range [%d, %d)", w.TMin, w.TMax, sfreq, lw.Min, lw.Max)
	}
	return lw, nil
}

// ResolveLags resolves every condition of the registry in registration order.
func ResolveLags(reg *Registry, sfreq float64) (LagPlan, error) {
	plan := make(LagPlan, 0, reg.Len())
	for _, c := range reg.conditions {
		lw, err := ResolveWindow(reg.WindowFor(c), sfreq)
		if err != nil {
			return nil, errors.Wrapf(err, "condition %q", c.Name)
		}
		plan = append(plan, ConditionLag{Condition: c, Lags: lw})
	}
	return plan, nil
}
