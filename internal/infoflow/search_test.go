package infoflow

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teflow/teflow/internal/permmap"
	"github.com/teflow/teflow/internal/policy"
)

func collect(seq iter.Seq[*Flow]) []*Flow {
	var flows []*Flow
	for flow := range seq {
		flows = append(flows, flow)
	}
	return flows
}

func flowStrings(flows []*Flow) []string {
	out := make([]string, len(flows))
	for i, f := range flows {
		out[i] = f.String()
	}
	return out
}

func search(t *testing.T, g *FlowGraph, q Query) []*Flow {
	t.Helper()
	seq, err := Search(g, q)
	require.NoError(t, err)
	return collect(seq)
}

func TestSearch_FlowsOut(t *testing.T) {
	g := buildFixture(t)

	flows := search(t, g, Query{Mode: ModeFlowsOut, Source: "node1"})
	require.Equal(t, []string{
		"node1 -> node2 (weight 10)",
		"node1 -> node3 (weight 5)",
	}, flowStrings(flows))

	require.Len(t, flows[0].Steps, 1)
	require.False(t, flows[0].Steps[0].Reverse)

	// Weight orders before name: node7 outranks node5 out of node6.
	flows = search(t, g, Query{Mode: ModeFlowsOut, Source: "node6"})
	require.Equal(t, []string{
		"node6 -> node7 (weight 10)",
		"node6 -> node5 (weight 5)",
	}, flowStrings(flows))
}

func TestSearch_FlowsOut_NameBreaksWeightTies(t *testing.T) {
	p, err := policy.NewCompiler().Compile(`
		type hub; type zeta; type alpha;
		allow hub zeta : infoflow hi_w;
		allow hub alpha : infoflow hi_w;
	`)
	require.NoError(t, err)
	g, err := Build(p, fixtureWeights(t))
	require.NoError(t, err)

	flows := search(t, g, Query{Mode: ModeFlowsOut, Source: "hub"})
	require.Equal(t, []string{
		"hub -> alpha (weight 10)",
		"hub -> zeta (weight 10)",
	}, flowStrings(flows))
}

func TestSearch_FlowsIn(t *testing.T) {
	g := buildFixture(t)

	flows := search(t, g, Query{Mode: ModeFlowsIn, Source: "node5"})
	require.Equal(t, []string{
		"node5 <- node6 (weight 5)",
		"node5 <- node3 (weight 1)",
	}, flowStrings(flows))

	for _, f := range flows {
		require.Len(t, f.Steps, 1)
		require.True(t, f.Steps[0].Reverse)
		require.Equal(t, "node5", f.Steps[0].Target)
	}
}

func TestSearch_DirectFlows_EmptyCases(t *testing.T) {
	g := buildFixture(t)

	// A declared type with no surviving edges yields no flows.
	require.Empty(t, search(t, g, Query{Mode: ModeFlowsOut, Source: "isolated"}))
	require.Empty(t, search(t, g, Query{Mode: ModeFlowsIn, Source: "isolated"}))

	// Excluded types are valid query endpoints with empty results.
	excluded := buildFixture(t, WithExclude("node5"))
	require.Empty(t, search(t, excluded, Query{Mode: ModeFlowsOut, Source: "node5"}))
	require.Empty(t, search(t, excluded, Query{Mode: ModeFlowsIn, Source: "node5"}))
}

func TestSearch_ShortestPaths(t *testing.T) {
	g := buildFixture(t)

	// node1 reaches node8 in 3 steps through node3/node5; the branch
	// through node2 needs 5 and must not appear.
	flows := search(t, g, Query{Mode: ModeShortestPaths, Source: "node1", Target: "node8"})
	require.Equal(t, []string{
		"node1 -> node3 (weight 5) -> node5 (weight 1) -> node8 (weight 10)",
	}, flowStrings(flows))
	require.Equal(t, []string{"node1", "node3", "node5", "node8"}, flows[0].Nodes())
	require.Equal(t, "node1", flows[0].Source())
	require.Equal(t, "node8", flows[0].Target())
	require.Equal(t, 3, flows[0].Length())
}

func TestSearch_ShortestPaths_AllMinimalPathsInOrder(t *testing.T) {
	p, err := policy.NewCompiler().Compile(`
		type s; type t; type m1; type m2; type m3;
		allow s m1 : infoflow hi_w;
		allow s m2 : infoflow med_w;
		allow s m3 : infoflow hi_w;
		allow m1 t : infoflow hi_w;
		allow m2 t : infoflow hi_w;
		allow m3 t : infoflow hi_w;
	`)
	require.NoError(t, err)
	g, err := Build(p, fixtureWeights(t))
	require.NoError(t, err)

	flows := search(t, g, Query{Mode: ModeShortestPaths, Source: "s", Target: "t"})
	require.Equal(t, []string{
		"s -> m1 (weight 10) -> t (weight 10)",
		"s -> m2 (weight 5) -> t (weight 10)",
		"s -> m3 (weight 10) -> t (weight 10)",
	}, flowStrings(flows))
}

func TestSearch_ShortestPaths_WriteChain(t *testing.T) {
	p, err := policy.NewCompiler().Compile(`
		type a; type b; type c;
		allow a b : infoflow med_w;
		allow b c : infoflow med_w;
	`)
	require.NoError(t, err)
	g, err := Build(p, fixtureWeights(t), WithMinWeight(3))
	require.NoError(t, err)

	flows := search(t, g, Query{Mode: ModeShortestPaths, Source: "a", Target: "c"})
	require.Len(t, flows, 1)
	require.Equal(t, []string{"a", "b", "c"}, flows[0].Nodes())
}

func TestSearch_ShortestPaths_EmptyCases(t *testing.T) {
	g := buildFixture(t)

	require.Empty(t, search(t, g, Query{Mode: ModeShortestPaths, Source: "node1", Target: "disconnected1"}))
	require.Empty(t, search(t, g, Query{Mode: ModeShortestPaths, Source: "node1", Target: "isolated"}))
	require.Empty(t, search(t, g, Query{Mode: ModeShortestPaths, Source: "node1", Target: "node1"}))

	// Excluding the only carrier type cuts every path.
	excluded := buildFixture(t, WithExclude("node5"))
	require.Empty(t, search(t, excluded, Query{Mode: ModeShortestPaths, Source: "node1", Target: "node8"}))
}

func TestSearch_AllPaths(t *testing.T) {
	g := buildFixture(t)

	// Depth 5 admits both branches; preorder explores node2 before
	// node3, so the longer path comes out first.
	flows := search(t, g, Query{Mode: ModeAllPaths, Source: "node1", Target: "node8", DepthLimit: 5})
	require.Equal(t, []string{
		"node1 -> node2 (weight 10) -> node4 (weight 10) -> node6 (weight 10) -> node5 (weight 5) -> node8 (weight 10)",
		"node1 -> node3 (weight 5) -> node5 (weight 1) -> node8 (weight 10)",
	}, flowStrings(flows))

	flows = search(t, g, Query{Mode: ModeAllPaths, Source: "node1", Target: "node8", DepthLimit: 3})
	require.Len(t, flows, 1)
	require.Equal(t, []string{"node1", "node3", "node5", "node8"}, flows[0].Nodes())
}

func TestSearch_AllPaths_DepthCountsSteps(t *testing.T) {
	g := buildFixture(t)

	// A single step fits depth 1.
	flows := search(t, g, Query{Mode: ModeAllPaths, Source: "node1", Target: "node2", DepthLimit: 1})
	require.Len(t, flows, 1)

	// Two steps do not.
	require.Empty(t, search(t, g, Query{Mode: ModeAllPaths, Source: "node1", Target: "node4", DepthLimit: 1}))
	flows = search(t, g, Query{Mode: ModeAllPaths, Source: "node1", Target: "node4", DepthLimit: 2})
	require.Len(t, flows, 1)
}

func TestSearch_AllPaths_PathsAreSimple(t *testing.T) {
	g := buildFixture(t)

	// node8 <-> node9 is a two-cycle; simple paths must not loop on it.
	flows := search(t, g, Query{Mode: ModeAllPaths, Source: "node1", Target: "node9", DepthLimit: 10})
	require.NotEmpty(t, flows)
	for _, f := range flows {
		seen := map[string]bool{}
		for _, node := range f.Nodes() {
			require.Falsef(t, seen[node], "node %s repeats in %s", node, f)
			seen[node] = true
		}
	}
}

func TestSearch_AllPaths_EmptyCases(t *testing.T) {
	g := buildFixture(t)
	require.Empty(t, search(t, g, Query{Mode: ModeAllPaths, Source: "node1", Target: "node1", DepthLimit: 4}))
	require.Empty(t, search(t, g, Query{Mode: ModeAllPaths, Source: "node1", Target: "disconnected2", DepthLimit: 10}))
}

func TestSearch_Validation(t *testing.T) {
	g := buildFixture(t)

	cases := []struct {
		name string
		q    Query
		want error
	}{
		{"unknown mode", Query{Mode: Mode(99), Source: "node1"}, &ConfigurationError{}},
		{"missing source", Query{Mode: ModeFlowsOut}, &ConfigurationError{}},
		{"target on flows-out", Query{Mode: ModeFlowsOut, Source: "node1", Target: "node2"}, &ConfigurationError{}},
		{"target on flows-in", Query{Mode: ModeFlowsIn, Source: "node1", Target: "node2"}, &ConfigurationError{}},
		{"missing target", Query{Mode: ModeShortestPaths, Source: "node1"}, &ConfigurationError{}},
		{"zero depth", Query{Mode: ModeAllPaths, Source: "node1", Target: "node2"}, &InvalidDepthError{}},
		{"negative depth", Query{Mode: ModeAllPaths, Source: "node1", Target: "node2", DepthLimit: -3}, &InvalidDepthError{}},
		{"unknown source", Query{Mode: ModeFlowsOut, Source: "ghost"}, &UnknownTypeError{}},
		{"unknown target", Query{Mode: ModeShortestPaths, Source: "node1", Target: "ghost"}, &UnknownTypeError{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Search(g, tc.q)
			require.Error(t, err)
			switch tc.want.(type) {
			case *ConfigurationError:
				var e *ConfigurationError
				require.ErrorAs(t, err, &e)
			case *InvalidDepthError:
				var e *InvalidDepthError
				require.ErrorAs(t, err, &e)
			case *UnknownTypeError:
				var e *UnknownTypeError
				require.ErrorAs(t, err, &e)
			}
		})
	}
}

func TestSearch_Deterministic(t *testing.T) {
	g := buildFixture(t)

	for _, q := range []Query{
		{Mode: ModeFlowsOut, Source: "node6"},
		{Mode: ModeFlowsIn, Source: "node5"},
		{Mode: ModeShortestPaths, Source: "node1", Target: "node8"},
		{Mode: ModeAllPaths, Source: "node1", Target: "node8", DepthLimit: 6},
	} {
		first := flowStrings(search(t, g, q))
		second := flowStrings(search(t, g, q))
		require.Equalf(t, first, second, "query %+v", q)
	}
}

func TestSearch_EarlyStopIsPrefixOfFullRun(t *testing.T) {
	p, err := policy.NewCompiler().Compile(`
		type s; type t; type m1; type m2; type m3;
		allow s m1 : infoflow hi_w;
		allow s m2 : infoflow hi_w;
		allow s m3 : infoflow hi_w;
		allow m1 t : infoflow hi_w;
		allow m2 t : infoflow hi_w;
		allow m3 t : infoflow hi_w;
	`)
	require.NoError(t, err)
	g, err := Build(p, fixtureWeights(t))
	require.NoError(t, err)

	q := Query{Mode: ModeShortestPaths, Source: "s", Target: "t"}
	full := flowStrings(search(t, g, q))
	require.Len(t, full, 3)

	seq, err := Search(g, q)
	require.NoError(t, err)
	var truncated []string
	for flow := range seq {
		truncated = append(truncated, flow.String())
		if len(truncated) == 1 {
			break
		}
	}
	require.Equal(t, full[:1], truncated)
}

func TestMode_String(t *testing.T) {
	require.Equal(t, "flows-out", ModeFlowsOut.String())
	require.Equal(t, "flows-in", ModeFlowsIn.String())
	require.Equal(t, "shortest-paths", ModeShortestPaths.String())
	require.Equal(t, "all-paths", ModeAllPaths.String())
	require.Equal(t, "mode(99)", Mode(99).String())
}

func TestParseMode_RoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeFlowsOut, ModeFlowsIn, ModeShortestPaths, ModeAllPaths} {
		parsed, err := ParseMode(mode.String())
		require.NoError(t, err)
		require.Equal(t, mode, parsed)
	}

	_, err := ParseMode("sideways")
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
}
