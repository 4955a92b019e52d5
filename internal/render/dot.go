package render

import (
	"fmt"

	"github.com/awalterschulze/gographviz"

	"github.com/teflow/teflow/internal/infoflow"
)

// DOT renders flows as a directed Graphviz graph. Nodes are the types
// the flows visit; a step becomes an edge labeled with its weight.
// Steps sharing an edge are merged, and insertion follows flow order so
// the output is deterministic for a deterministic flow sequence.
func DOT(name string, flows []*infoflow.Flow) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(name); err != nil {
		return "", fmt.Errorf("naming graph: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return "", fmt.Errorf("directing graph: %w", err)
	}

	nodes := map[string]bool{}
	addNode := func(node string) error {
		if nodes[node] {
			return nil
		}
		nodes[node] = true
		return g.AddNode(name, node, nil)
	}

	type key struct{ source, target string }
	edges := map[key]bool{}

	for _, flow := range flows {
		for _, step := range flow.Steps {
			if err := addNode(step.Source); err != nil {
				return "", fmt.Errorf("adding node %s: %w", step.Source, err)
			}
			if err := addNode(step.Target); err != nil {
				return "", fmt.Errorf("adding node %s: %w", step.Target, err)
			}
			k := key{source: step.Source, target: step.Target}
			if edges[k] {
				continue
			}
			edges[k] = true
			attrs := map[string]string{
				"label": fmt.Sprintf(`"weight %d"`, step.Weight),
			}
			if err := g.AddEdge(step.Source, step.Target, true, attrs); err != nil {
				return "", fmt.Errorf("adding edge %s -> %s: %w", step.Source, step.Target, err)
			}
		}
	}

	return g.String(), nil
}
