package infoflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStep_String(t *testing.T) {
	step := Step{Source: "node1", Target: "node2", Weight: 10}
	require.Equal(t, "node1 -> node2 (weight 10)", step.String())

	step.Reverse = true
	require.Equal(t, "node2 <- node1 (weight 10)", step.String())
}

func TestFlow_Full(t *testing.T) {
	g := buildFixture(t)

	flows := search(t, g, Query{Mode: ModeShortestPaths, Source: "node1", Target: "node4"})
	require.Len(t, flows, 1)

	full := flows[0].Full()
	lines := strings.Split(full, "\n")
	require.Equal(t, "node1 -> node2 (weight 10) -> node4 (weight 10)", lines[0])

	// Every step lists the rules that justified it, as written in the
	// policy.
	require.Contains(t, full, "node1 -> node2 (weight 10)\n\tallow node1 node2:infoflow med_w;\n\tallow node2 node1:infoflow hi_r;")
	require.Contains(t, full, "node2 -> node4 (weight 10)\n\tallow node2 node4:infoflow hi_w;")
}

func TestFlow_Full_ConditionalRuleRendering(t *testing.T) {
	g := buildFixture(t)

	flows := search(t, g, Query{Mode: ModeFlowsOut, Source: "node7"})
	require.Len(t, flows, 1)
	require.Contains(t, flows[0].Full(), "allow node7 node1:infoflow hi_w; [ compromise ]")
}

func TestFlow_EmptyAccessors(t *testing.T) {
	var f Flow
	require.Empty(t, f.Source())
	require.Empty(t, f.Target())
	require.Zero(t, f.Length())
	require.Nil(t, f.Nodes())
	require.Empty(t, f.String())
}
