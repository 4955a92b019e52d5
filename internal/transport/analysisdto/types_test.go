package analysisdto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teflow/teflow/internal/app"
	"github.com/teflow/teflow/internal/infoflow"
	"github.com/teflow/teflow/internal/permmap"
	"github.com/teflow/teflow/internal/policy"
)

func TestAnalyzeRequest_AnalysisRequest(t *testing.T) {
	req := AnalyzeRequest{
		PolicySource: "type a;",
		MinWeight:    3,
		Exclude:      []string{"tmp_t"},
		Booleans:     &Booleans{Mode: "explicit", Values: map[string]bool{"secure_mode": true}},
		Mode:         "all-paths",
		Source:       "a",
		Target:       "b",
		DepthLimit:   4,
		Limit:        10,
	}

	got, err := req.AnalysisRequest()
	require.NoError(t, err)
	require.Equal(t, infoflow.ModeAllPaths, got.Mode)
	require.Equal(t, infoflow.BooleansExplicit, got.Booleans.Mode)
	require.Equal(t, map[string]bool{"secure_mode": true}, got.Booleans.Values)
	require.Equal(t, 3, got.MinWeight)
	require.Equal(t, []string{"tmp_t"}, got.Exclude)
	require.Equal(t, 4, got.DepthLimit)
	require.Equal(t, 10, got.Limit)
}

func TestAnalyzeRequest_RejectsUnknownMode(t *testing.T) {
	_, err := AnalyzeRequest{Mode: "sideways", Source: "a"}.AnalysisRequest()
	require.Error(t, err)
}

func TestBooleans_Assignment(t *testing.T) {
	cases := []struct {
		name string
		in   *Booleans
		want infoflow.BooleanMode
	}{
		{name: "nil is all", in: nil, want: infoflow.BooleansAll},
		{name: "empty mode is all", in: &Booleans{}, want: infoflow.BooleansAll},
		{name: "all", in: &Booleans{Mode: "all"}, want: infoflow.BooleansAll},
		{name: "default", in: &Booleans{Mode: "default"}, want: infoflow.BooleansDefault},
		{name: "explicit", in: &Booleans{Mode: "explicit"}, want: infoflow.BooleansExplicit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.assignment()
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Mode)
		})
	}

	_, err := (&Booleans{Mode: "random"}).assignment()
	require.Error(t, err)
}

func TestNewAnalyzeResponse(t *testing.T) {
	p, err := policy.NewCompiler().Compile("type a; type b;\nallow a b : infoflow hi_w;")
	require.NoError(t, err)
	weights, err := permmap.Parse("class infoflow 1\nhi_w 10 w\n")
	require.NoError(t, err)
	g, err := infoflow.Build(p, weights)
	require.NoError(t, err)
	seq, err := infoflow.Search(g, infoflow.Query{Mode: infoflow.ModeFlowsOut, Source: "a"})
	require.NoError(t, err)

	result := &app.AnalysisResult{Stats: g.Stats()}
	for flow := range seq {
		result.Flows = append(result.Flows, flow)
	}

	summary, err := NewAnalyzeResponse(infoflow.ModeFlowsOut, result, false, false)
	require.NoError(t, err)
	require.Equal(t, "flows-out", summary.Mode)
	require.Len(t, summary.Flows, 1)
	require.Equal(t, "a", summary.Flows[0].Source)
	require.Equal(t, "b", summary.Flows[0].Target)
	require.Equal(t, "a -> b (weight 10)", summary.Flows[0].Summary)
	require.Len(t, summary.Flows[0].Steps, 1)
	require.Empty(t, summary.Flows[0].Steps[0].Rules)
	require.Equal(t, Stats{Nodes: 2, Edges: 1, AverageOutDegree: 0.5}, summary.Stats)
	require.Empty(t, summary.DOT)

	full, err := NewAnalyzeResponse(infoflow.ModeFlowsOut, result, true, false)
	require.NoError(t, err)
	require.Equal(t, []string{"allow a b:infoflow hi_w;"}, full.Flows[0].Steps[0].Rules)

	dot, err := NewAnalyzeResponse(infoflow.ModeFlowsOut, result, false, true)
	require.NoError(t, err)
	require.Contains(t, dot.DOT, "digraph flows")
	require.Contains(t, dot.DOT, "a->b")
	require.Contains(t, dot.DOT, `"weight 10"`)
}
