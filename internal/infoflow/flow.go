package infoflow

import (
	"fmt"
	"strings"

	"github.com/teflow/teflow/internal/policy"
)

// Step is one edge traversal within a flow. Reverse marks steps found
// by a flows-in query, where the traversal runs against the direction
// of the query node.
type Step struct {
	Source  string
	Target  string
	Weight  int
	Rules   []*policy.AllowRule
	Reverse bool
}

// String renders the step summary, e.g. "node1 -> node2 (weight 10)".
// Reversed steps render from the queried node's side:
// "node2 <- node1 (weight 10)".
func (s Step) String() string {
	if s.Reverse {
		return fmt.Sprintf("%s <- %s (weight %d)", s.Target, s.Source, s.Weight)
	}
	return fmt.Sprintf("%s -> %s (weight %d)", s.Source, s.Target, s.Weight)
}

// Flow is an ordered sequence of steps forming a simple path between
// two types, or a single step for direct flow queries. Consecutive
// steps share an endpoint and no type repeats within one flow.
type Flow struct {
	Steps []Step
}

// Source returns the first type of the flow.
func (f *Flow) Source() string {
	if len(f.Steps) == 0 {
		return ""
	}
	return f.Steps[0].Source
}

// Target returns the last type of the flow.
func (f *Flow) Target() string {
	if len(f.Steps) == 0 {
		return ""
	}
	return f.Steps[len(f.Steps)-1].Target
}

// Length returns the number of steps.
func (f *Flow) Length() int { return len(f.Steps) }

// Nodes returns the types visited, in traversal order.
func (f *Flow) Nodes() []string {
	if len(f.Steps) == 0 {
		return nil
	}
	nodes := make([]string, 0, len(f.Steps)+1)
	nodes = append(nodes, f.Steps[0].Source)
	for _, s := range f.Steps {
		nodes = append(nodes, s.Target)
	}
	return nodes
}

// String renders the summary form: every hop with its weight.
func (f *Flow) String() string {
	if len(f.Steps) == 0 {
		return ""
	}
	if len(f.Steps) == 1 && f.Steps[0].Reverse {
		return f.Steps[0].String()
	}
	var b strings.Builder
	b.WriteString(f.Steps[0].Source)
	for _, s := range f.Steps {
		fmt.Fprintf(&b, " -> %s (weight %d)", s.Target, s.Weight)
	}
	return b.String()
}

// Full renders the summary followed by every contributing rule per
// step. Rules are already retained on the edges, so this never touches
// the graph again.
func (f *Flow) Full() string {
	var b strings.Builder
	b.WriteString(f.String())
	for _, s := range f.Steps {
		b.WriteByte('\n')
		b.WriteString(s.String())
		for _, r := range s.Rules {
			b.WriteString("\n\t")
			b.WriteString(r.String())
		}
	}
	return b.String()
}

func newFlow(path []*FlowEdge) *Flow {
	steps := make([]Step, len(path))
	for i, edge := range path {
		steps[i] = Step{
			Source: edge.Source,
			Target: edge.Target,
			Weight: edge.Weight,
			Rules:  edge.Rules,
		}
	}
	return &Flow{Steps: steps}
}
