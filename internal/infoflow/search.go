package infoflow

import (
	"fmt"
	"iter"
	"sort"
)

// Mode selects the search algorithm.
type Mode int

const (
	// ModeFlowsOut yields one single-step flow per edge out of the
	// source, ordered by descending weight then target name.
	ModeFlowsOut Mode = iota
	// ModeFlowsIn yields one single-step flow per edge into the source,
	// ordered by descending weight then source name, with steps marked
	// reversed.
	ModeFlowsIn
	// ModeShortestPaths yields every simple path from source to target
	// whose length equals the shortest-path distance, in lexicographic
	// order of the node sequence.
	ModeShortestPaths
	// ModeAllPaths yields every simple path from source to target of
	// length at most DepthLimit, in depth-first preorder with sorted
	// edge traversal.
	ModeAllPaths
)

func (m Mode) String() string {
	switch m {
	case ModeFlowsOut:
		return "flows-out"
	case ModeFlowsIn:
		return "flows-in"
	case ModeShortestPaths:
		return "shortest-paths"
	case ModeAllPaths:
		return "all-paths"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a mode name to its Mode. Names match String().
func ParseMode(name string) (Mode, error) {
	switch name {
	case "flows-out":
		return ModeFlowsOut, nil
	case "flows-in":
		return ModeFlowsIn, nil
	case "shortest-paths":
		return ModeShortestPaths, nil
	case "all-paths":
		return ModeAllPaths, nil
	default:
		return 0, &ConfigurationError{Reason: fmt.Sprintf("unknown analysis mode %q", name)}
	}
}

// Query describes one search run. Source is required by every mode.
// Target is required by the path modes and rejected by the direct
// modes. DepthLimit bounds ModeAllPaths and counts steps, not nodes.
type Query struct {
	Mode       Mode
	Source     string
	Target     string
	DepthLimit int
}

// Search validates the query eagerly and returns a lazy flow sequence.
// The sequence is deterministic for fixed inputs, stops all traversal
// work as soon as the consumer stops iterating, and can be restarted
// only by calling Search again. Types absent from the graph, excluded
// types among them, produce an empty sequence rather than an error.
func Search(g *FlowGraph, q Query) (iter.Seq[*Flow], error) {
	switch q.Mode {
	case ModeFlowsOut, ModeFlowsIn, ModeShortestPaths, ModeAllPaths:
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown analysis mode %d", int(q.Mode))}
	}

	if q.Source == "" {
		return nil, &ConfigurationError{Reason: "source type is required"}
	}

	direct := q.Mode == ModeFlowsOut || q.Mode == ModeFlowsIn
	if direct && q.Target != "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("%s takes no target type", q.Mode)}
	}
	if !direct && q.Target == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("%s requires a target type", q.Mode)}
	}

	if q.Mode == ModeAllPaths && q.DepthLimit < 1 {
		return nil, &InvalidDepthError{Depth: q.DepthLimit}
	}

	if _, ok := g.policy.LookupType(q.Source); !ok {
		return nil, &UnknownTypeError{Name: q.Source}
	}
	if q.Target != "" {
		if _, ok := g.policy.LookupType(q.Target); !ok {
			return nil, &UnknownTypeError{Name: q.Target}
		}
	}

	switch q.Mode {
	case ModeFlowsOut:
		return g.directFlows(g.out[q.Source], false), nil
	case ModeFlowsIn:
		return g.directFlows(g.in[q.Source], true), nil
	case ModeShortestPaths:
		return g.shortestPaths(q.Source, q.Target), nil
	default:
		return g.allPaths(q.Source, q.Target, q.DepthLimit), nil
	}
}

// directFlows emits one single-step flow per edge, strongest first.
// Ties break on the far endpoint's name so that runs are reproducible.
func (g *FlowGraph) directFlows(edges []*FlowEdge, reverse bool) iter.Seq[*Flow] {
	return func(yield func(*Flow) bool) {
		ordered := make([]*FlowEdge, len(edges))
		copy(ordered, edges)
		far := func(e *FlowEdge) string {
			if reverse {
				return e.Source
			}
			return e.Target
		}
		sort.Slice(ordered, func(i, j int) bool {
			if ordered[i].Weight != ordered[j].Weight {
				return ordered[i].Weight > ordered[j].Weight
			}
			return far(ordered[i]) < far(ordered[j])
		})
		for _, edge := range ordered {
			flow := &Flow{Steps: []Step{{
				Source:  edge.Source,
				Target:  edge.Target,
				Weight:  edge.Weight,
				Rules:   edge.Rules,
				Reverse: reverse,
			}}}
			if !yield(flow) {
				return
			}
		}
	}
}

// shortestPaths enumerates every path realizing the minimum hop count
// from source to target. Two breadth-first passes bound the distance of
// every node from the source and to the target; an edge lies on a
// shortest path exactly when those distances plus the edge itself sum
// to the shortest distance. A depth-first walk over that subgraph, with
// successors in name order, then emits the paths lazily in
// lexicographic order.
func (g *FlowGraph) shortestPaths(source, target string) iter.Seq[*Flow] {
	return func(yield func(*Flow) bool) {
		if source == target {
			return
		}
		distFrom := bfsDistances(source, g.out, func(e *FlowEdge) string { return e.Target })
		total, reachable := distFrom[target]
		if !reachable {
			return
		}
		distTo := bfsDistances(target, g.in, func(e *FlowEdge) string { return e.Source })

		path := make([]*FlowEdge, 0, total)
		var walk func(node string) bool
		walk = func(node string) bool {
			if node == target {
				return yield(newFlow(path))
			}
			for _, edge := range g.out[node] {
				dt, ok := distTo[edge.Target]
				if !ok || distFrom[node]+1+dt != total {
					continue
				}
				path = append(path, edge)
				cont := walk(edge.Target)
				path = path[:len(path)-1]
				if !cont {
					return false
				}
			}
			return true
		}
		walk(source)
	}
}

func bfsDistances(start string, adjacency map[string][]*FlowEdge, far func(*FlowEdge) string) map[string]int {
	dist := map[string]int{start: 0}
	frontier := []string{start}
	for len(frontier) > 0 {
		var next []string
		for _, node := range frontier {
			for _, edge := range adjacency[node] {
				neighbor := far(edge)
				if _, seen := dist[neighbor]; seen {
					continue
				}
				dist[neighbor] = dist[node] + 1
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return dist
}

// allPaths enumerates every simple path from source to target of at
// most depthLimit steps via bounded depth-first search. The target is
// terminal: paths never continue through it. A per-path visited set
// keeps paths simple.
func (g *FlowGraph) allPaths(source, target string, depthLimit int) iter.Seq[*Flow] {
	return func(yield func(*Flow) bool) {
		if source == target {
			return
		}
		visited := map[string]bool{source: true}
		path := make([]*FlowEdge, 0, depthLimit)
		var walk func(node string) bool
		walk = func(node string) bool {
			for _, edge := range g.out[node] {
				next := edge.Target
				if visited[next] {
					continue
				}
				path = append(path, edge)
				cont := true
				if next == target {
					cont = yield(newFlow(path))
				} else if len(path) < depthLimit {
					visited[next] = true
					cont = walk(next)
					delete(visited, next)
				}
				path = path[:len(path)-1]
				if !cont {
					return false
				}
			}
			return true
		}
		walk(source)
	}
}
