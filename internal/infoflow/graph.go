// Package infoflow builds directed information-flow graphs from
// type-enforcement policies and runs path searches over them. Nodes are
// policy types; an edge source -> target means the policy grants
// permissions that let information move that way, weighted 1-10 by how
// much the strongest contributing permission can carry.
package infoflow

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr/vm"

	"github.com/teflow/teflow/internal/permmap"
	"github.com/teflow/teflow/internal/policy"
	"github.com/teflow/teflow/internal/policy/eval"
)

// FlowEdge is one direction of aggregated flow between two types. Weight
// is the maximum weight among contributing permissions; Rules holds
// every policy rule that contributed, for full detail rendering.
type FlowEdge struct {
	Source string
	Target string
	Weight int
	Rules  []*policy.AllowRule
}

// FlowGraph is an immutable directed graph of information flows. Built
// once per analysis configuration; safe for concurrent readers.
type FlowGraph struct {
	policy    *policy.Policy
	minWeight int
	excluded  map[string]bool
	nodes     map[string]bool
	out       map[string][]*FlowEdge
	in        map[string][]*FlowEdge
	edgeCount int
}

type buildConfig struct {
	minWeight int
	exclude   []string
	booleans  BooleanAssignment
}

// BuildOption adjusts graph construction.
type BuildOption func(*buildConfig)

// WithMinWeight keeps only permissions of at least the given weight
// (1-10) when building edges. The default is 1, keeping every flow.
func WithMinWeight(weight int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.minWeight = weight
	}
}

// WithExclude removes the named types from the graph: no edge touches
// an excluded type.
func WithExclude(names ...string) BuildOption {
	return func(cfg *buildConfig) {
		cfg.exclude = append(cfg.exclude, names...)
	}
}

// WithBooleans fixes the conditional-boolean assignment for the build.
func WithBooleans(assignment BooleanAssignment) BuildOption {
	return func(cfg *buildConfig) {
		cfg.booleans = assignment
	}
}

// Build constructs the flow graph for a policy under the given weight
// table and options. Rule permissions are resolved through the table,
// rules whose conditional evaluates false under the boolean assignment
// are dropped, and surviving (source, target) pairs are aggregated into
// at most one edge per direction. Self flows never enter the graph.
func Build(p *policy.Policy, weights *permmap.Map, opts ...BuildOption) (*FlowGraph, error) {
	cfg := buildConfig{minWeight: 1, booleans: AllBooleans()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.minWeight < 1 || cfg.minWeight > 10 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("minimum weight must be 1-10, got %d", cfg.minWeight)}
	}

	excluded := make(map[string]bool, len(cfg.exclude))
	for _, name := range cfg.exclude {
		if _, ok := p.LookupType(name); !ok {
			return nil, &UnknownTypeError{Name: name}
		}
		excluded[name] = true
	}

	vars, err := cfg.booleans.resolve(p)
	if err != nil {
		return nil, err
	}

	g := &FlowGraph{
		policy:    p,
		minWeight: cfg.minWeight,
		excluded:  excluded,
		nodes:     map[string]bool{},
		out:       map[string][]*FlowEdge{},
		in:        map[string][]*FlowEdge{},
	}

	type ruleWeight struct {
		read, write int
		active      bool
	}
	ruleWeights := make(map[*policy.AllowRule]ruleWeight, len(p.Rules))
	conditions := map[string]*vm.Program{}

	for i := range p.Rules {
		rule := &p.Rules[i]
		read, write, err := weights.RuleWeight(rule.Class, rule.Perms)
		if err != nil {
			return nil, fmt.Errorf("weighing rule %q: %w", rule, err)
		}
		active, err := ruleActive(rule, vars, p, conditions)
		if err != nil {
			return nil, err
		}
		ruleWeights[rule] = ruleWeight{read: read, write: write, active: active}
	}

	expanded, err := p.ExpandRules()
	if err != nil {
		return nil, err
	}

	edges := map[[2]string]*FlowEdge{}
	for _, er := range expanded {
		rw := ruleWeights[er.Origin]
		if !rw.active {
			continue
		}
		if er.Source == er.Target {
			continue
		}
		if excluded[er.Source] || excluded[er.Target] {
			continue
		}
		if rw.write >= cfg.minWeight {
			g.addEdge(edges, er.Source, er.Target, rw.write, er.Origin)
		}
		if rw.read >= cfg.minWeight {
			g.addEdge(edges, er.Target, er.Source, rw.read, er.Origin)
		}
	}

	g.finalize()
	return g, nil
}

// ruleActive decides whether a rule survives the boolean assignment.
// vars == nil means conditional rules are unconditionally active.
func ruleActive(rule *policy.AllowRule, vars map[string]any, p *policy.Policy, conditions map[string]*vm.Program) (bool, error) {
	if rule.Conditional == "" || vars == nil {
		return true, nil
	}
	prog, ok := conditions[rule.Conditional]
	if !ok {
		var err error
		prog, err = eval.Compile(rule.Conditional, p.Booleans)
		if err != nil {
			return false, &ConfigurationError{Reason: fmt.Sprintf("invalid conditional %q: %v", rule.Conditional, err)}
		}
		conditions[rule.Conditional] = prog
	}
	active, err := eval.EvalCompiled(prog, vars)
	if err != nil {
		return false, &ConfigurationError{Reason: fmt.Sprintf("evaluating conditional %q: %v", rule.Conditional, err)}
	}
	return active, nil
}

func (g *FlowGraph) addEdge(edges map[[2]string]*FlowEdge, source, target string, weight int, rule *policy.AllowRule) {
	key := [2]string{source, target}
	edge, ok := edges[key]
	if !ok {
		edge = &FlowEdge{Source: source, Target: target}
		edges[key] = edge
		g.out[source] = append(g.out[source], edge)
		g.in[target] = append(g.in[target], edge)
		g.nodes[source] = true
		g.nodes[target] = true
		g.edgeCount++
	}
	edge.Weight = max(edge.Weight, weight)
	for _, existing := range edge.Rules {
		if existing == rule {
			return
		}
	}
	edge.Rules = append(edge.Rules, rule)
}

// finalize fixes deterministic adjacency orders: outgoing edges by
// target name, incoming edges by source name.
func (g *FlowGraph) finalize() {
	for _, edges := range g.out {
		sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
	}
	for _, edges := range g.in {
		sort.Slice(edges, func(i, j int) bool { return edges[i].Source < edges[j].Source })
	}
}

// Policy returns the policy the graph was built from.
func (g *FlowGraph) Policy() *policy.Policy { return g.policy }

// MinWeight returns the minimum permission weight the graph was built
// with.
func (g *FlowGraph) MinWeight() int { return g.minWeight }

// Nodes returns the names of all types touched by at least one edge, in
// sorted order.
func (g *FlowGraph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
