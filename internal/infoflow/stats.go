package infoflow

import "fmt"

// Stats is a read-only summary of a built graph.
type Stats struct {
	Nodes            int
	Edges            int
	AverageOutDegree float64
}

// Stats computes graph counters in linear time. An empty graph yields
// all zeros.
func (g *FlowGraph) Stats() Stats {
	s := Stats{
		Nodes: len(g.nodes),
		Edges: g.edgeCount,
	}
	if s.Nodes > 0 {
		s.AverageOutDegree = float64(s.Edges) / float64(s.Nodes)
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("%d nodes, %d edges, average out-degree %.2f", s.Nodes, s.Edges, s.AverageOutDegree)
}
