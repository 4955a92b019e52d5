// Package policy holds the parsed type-enforcement policy model consumed
// by the analysis engine: types, type attributes, allow rules and
// conditional booleans. The model is immutable once compiled.
package policy

import (
	"fmt"
	"sort"
	"strings"
)

// Type is a named category in the policy. Rules reference types by name;
// graph nodes reference, never own, them.
type Type struct {
	Name       string
	Attributes []string
}

// AllowRule grants a permission set on an object class. Source is the
// subject side, Target the object side. Either may name an attribute,
// in which case the rule stands for one rule per member type.
// Conditional is a boolean expression over policy boolean names; empty
// means the rule is unconditional. Rules from an else branch carry the
// negated expression.
type AllowRule struct {
	Source      string
	Target      string
	Class       string
	Perms       []string
	Conditional string
}

// String renders the rule in policy-source form, e.g.
// "allow node1 node2:infoflow { low_r med_r };". Conditional rules get
// the gating expression appended in brackets.
func (r *AllowRule) String() string {
	var b strings.Builder
	b.WriteString("allow ")
	b.WriteString(r.Source)
	b.WriteByte(' ')
	b.WriteString(r.Target)
	b.WriteByte(':')
	b.WriteString(r.Class)
	b.WriteByte(' ')
	if len(r.Perms) == 1 {
		b.WriteString(r.Perms[0])
	} else {
		perms := make([]string, len(r.Perms))
		copy(perms, r.Perms)
		sort.Strings(perms)
		b.WriteString("{ ")
		b.WriteString(strings.Join(perms, " "))
		b.WriteString(" }")
	}
	b.WriteByte(';')
	if r.Conditional != "" {
		b.WriteString(" [ ")
		b.WriteString(r.Conditional)
		b.WriteString(" ]")
	}
	return b.String()
}

// ExpandedRule is an AllowRule resolved to a concrete (source, target)
// type pair. Origin points at the policy rule it came from, so edge
// detail output shows the rule as written.
type ExpandedRule struct {
	Source string
	Target string
	Origin *AllowRule
}

// Policy is the parsed policy. Types maps type name to Type, Attributes
// maps attribute name to its sorted member type names, Booleans maps
// boolean name to its default state.
type Policy struct {
	Types      map[string]*Type
	Attributes map[string][]string
	Booleans   map[string]bool
	Rules      []AllowRule
}

// LookupType resolves a type name.
func (p *Policy) LookupType(name string) (*Type, bool) {
	t, ok := p.Types[name]
	return t, ok
}

// LookupBoolean resolves a boolean name to its default state.
func (p *Policy) LookupBoolean(name string) (bool, bool) {
	v, ok := p.Booleans[name]
	return v, ok
}

// TypeNames returns all type names in sorted order.
func (p *Policy) TypeNames() []string {
	names := make([]string, 0, len(p.Types))
	for name := range p.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExpandRules resolves every rule to concrete (source, target) type
// pairs, expanding attribute operands to their member types. Rules keep
// their identity through Origin. Fails if a rule references a name that
// is neither a type nor an attribute, which means the model was built
// inconsistently.
func (p *Policy) ExpandRules() ([]ExpandedRule, error) {
	var out []ExpandedRule
	for i := range p.Rules {
		rule := &p.Rules[i]
		sources, ok := p.expandName(rule.Source)
		if !ok {
			return nil, fmt.Errorf("rule %q references unknown source %q", rule, rule.Source)
		}
		targets, ok := p.expandName(rule.Target)
		if !ok {
			return nil, fmt.Errorf("rule %q references unknown target %q", rule, rule.Target)
		}
		for _, s := range sources {
			for _, t := range targets {
				out = append(out, ExpandedRule{Source: s, Target: t, Origin: rule})
			}
		}
	}
	return out, nil
}

// expandName resolves a rule operand: a type name resolves to itself, an
// attribute name to its member types.
func (p *Policy) expandName(name string) ([]string, bool) {
	if _, ok := p.Types[name]; ok {
		return []string{name}, true
	}
	if members, ok := p.Attributes[name]; ok {
		return members, true
	}
	return nil, false
}
