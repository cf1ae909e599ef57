package rerp

import (
	"math"
	"strings"

	"brainlm/internal/errors"
)

// ConditionKind distinguishes binary event-locked predictors from covariate-scaled ones.
type ConditionKind int

const (
	// EventLocked conditions put a diagonal of ones at every matching event.
	EventLocked ConditionKind = iota
	// CovariateDriven conditions scale each event's diagonal by a per-event value.
	CovariateDriven
)

func (k ConditionKind) String() string {
	switch k {
	case EventLocked:
		return "event"
	case CovariateDriven:
		return "covariate"
	default:
		return "unknown"
	}
}

// Window is a response window in seconds relative to event onset.
type Window struct {
	TMin float64
	TMax float64
}

// DefaultWindow is the window used by the EEG analyses.
var DefaultWindow = Window{TMin: -0.2, TMax: 1.0}

// Condition is one named predictor of the regression.
type Condition struct {
	Name string
	Kind ConditionKind

	// Codes lists the event codes an EventLocked condition responds to.
	Codes []int

	// Values holds one scalar per event for a CovariateDriven condition.
	// Zero entries are events the covariate does not respond to.
	Values []float64

	// Window overrides the registry's shared window when set.
	Window *Window
}

// NewEventCondition builds an event-locked condition.
func NewEventCondition(name string, codes ...int) Condition {
	return Condition{Name: name, Kind: EventLocked, Codes: append([]int(nil), codes...)}
}

// NewCovariateCondition builds a covariate-driven condition.
func NewCovariateCondition(name string, values []float64) Condition {
	return Condition{Name: name, Kind: CovariateDriven, Values: append([]float64(nil), values...)}
}

// WithWindow returns a copy of c with its own response window.
func (c Condition) WithWindow(tmin, tmax float64) Condition {
	c.Window = &Window{TMin: tmin, TMax: tmax}
	return c
}

// Registry is the ordered set of conditions for one experiment.
// Registration order fixes the column order of the design matrix.
type Registry struct {
	shared     Window
	conditions []Condition
}

// NewRegistry validates conditions and returns a registry using shared for
// every condition without its own window.
func NewRegistry(shared Window, conditions ...Condition) (*Registry, error) {
	if len(conditions) == 0 {
		return nil, errors.ConfigurationError("registry needs at least one condition")
	}

	names := make(map[string]struct{}, len(conditions))
	copied := make([]Condition, 0, len(conditions))
	for i, c := range conditions {
		if strings.TrimSpace(c.Name) == "" {
			return nil, errors.ConfigurationError("condition %d has no name", i)
		}
		if _, dup := names[c.Name]; dup {
			return nil, errors.ConfigurationError("condition %q registered twice", c.Name)
		}
		names[c.Name] = struct{}{}

		switch c.Kind {
		case EventLocked:
			if len(c.Codes) == 0 {
				return nil, errors.ConfigurationError("event condition %q has no event codes", c.Name)
			}
		case CovariateDriven:
			for j, v := range c.Values {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, errors.ConfigurationError("covariate %q has non-finite value at event %d", c.Name, j)
				}
			}
		default:
			return nil, errors.ConfigurationError("condition %q has unknown kind %d", c.Name, c.Kind)
		}

		cc := c
		cc.Codes = append([]int(nil), c.Codes...)
		cc.Values = append([]float64(nil), c.Values...)
		if c.Window != nil {
			w := *c.Window
			cc.Window = &w
		}
		copied = append(copied, cc)
	}

	return &Registry{shared: shared, conditions: copied}, nil
}

// Conditions returns the conditions in registration order.
func (r *Registry) Conditions() []Condition {
	out := make([]Condition, len(r.conditions))
	copy(out, r.conditions)
	return out
}

// Len returns the number of registered conditions.
func (r *Registry) Len() int {
	return len(r.conditions)
}

// WindowFor returns the effective window of a condition.
func (r *Registry) WindowFor(c Condition) Window {
	if c.Window != nil {
		return *c.Window
	}
	return r.shared
}

// CheckCovariates verifies every covariate condition carries one value per event.
func (r *Registry) CheckCovariates(nEvents int) error {
	for _, c := range r.conditions {
		if c.Kind != CovariateDriven {
			continue
		}
		if len(c.Values) != nEvents {
			return errors.ShapeMismatchError(
				"condition %q has %d covariate values but there are %d events", c.Name, len(c.Values), nEvents)
		}
	}
	return nil
}
