package infoflow

import (
	"fmt"

	"github.com/teflow/teflow/internal/policy"
)

// BooleanMode selects how conditional rules are resolved while the
// graph is built.
type BooleanMode int

const (
	// BooleansAll treats every conditional rule as active, so the graph
	// holds every flow the policy could permit under some boolean
	// assignment. This is the default.
	BooleansAll BooleanMode = iota
	// BooleansDefault evaluates conditionals against the policy's
	// default boolean states.
	BooleansDefault
	// BooleansExplicit evaluates conditionals against caller-supplied
	// values merged over the policy defaults.
	BooleansExplicit
)

// BooleanAssignment fixes the conditional-boolean state for one graph
// build. The zero value is BooleansAll.
type BooleanAssignment struct {
	Mode   BooleanMode
	Values map[string]bool
}

// AllBooleans treats every conditional rule as active.
func AllBooleans() BooleanAssignment { return BooleanAssignment{Mode: BooleansAll} }

// DefaultBooleans evaluates conditionals against policy defaults.
func DefaultBooleans() BooleanAssignment { return BooleanAssignment{Mode: BooleansDefault} }

// ExplicitBooleans evaluates conditionals against the given values;
// booleans left out keep their policy defaults.
func ExplicitBooleans(values map[string]bool) BooleanAssignment {
	return BooleanAssignment{Mode: BooleansExplicit, Values: values}
}

// resolve returns the evaluation environment for conditional rules, or
// nil when conditional rules are unconditionally active.
func (a BooleanAssignment) resolve(p *policy.Policy) (map[string]any, error) {
	switch a.Mode {
	case BooleansAll:
		return nil, nil
	case BooleansDefault, BooleansExplicit:
		vars := make(map[string]any, len(p.Booleans))
		for name, def := range p.Booleans {
			vars[name] = def
		}
		for name, v := range a.Values {
			if _, ok := p.Booleans[name]; !ok {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("boolean %q does not exist in the policy", name)}
			}
			vars[name] = v
		}
		return vars, nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown boolean mode %d", a.Mode)}
	}
}
