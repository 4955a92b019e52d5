// teflow analyzes information flows in a type-enforcement policy. It
// compiles the policy, weighs its rules with a permission map, builds
// the flow graph and prints the flows the query asks for.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/teflow/teflow/internal/config"
	"github.com/teflow/teflow/internal/infoflow"
	"github.com/teflow/teflow/internal/permmap"
	"github.com/teflow/teflow/internal/policy"
	"github.com/teflow/teflow/internal/render"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		mapPath      string
		source       string
		target       string
		flowsOut     bool
		flowsIn      bool
		shortest     bool
		allPaths     int
		minWeight    int
		exclude      []string
		booleans     string
		limit        int
		full         bool
		stats        bool
		dot          bool
		settingsPath string
		verbose      bool
	)

	fs := pflag.NewFlagSet("teflow", pflag.ContinueOnError)
	fs.StringVarP(&mapPath, "map", "m", "", "permission map file (default: built-in map)")
	fs.StringVarP(&source, "source", "s", "", "source type of the analysis")
	fs.StringVarP(&target, "target", "t", "", "target type (path analyses only)")
	fs.BoolVarP(&flowsOut, "flows-out", "O", false, "list direct flows out of the source type")
	fs.BoolVarP(&flowsIn, "flows-in", "I", false, "list direct flows into the source type")
	fs.BoolVarP(&shortest, "shortest-paths", "S", false, "list all shortest paths from source to target")
	fs.IntVarP(&allPaths, "all-paths", "A", 0, "list all paths of at most N steps from source to target")
	fs.IntVarP(&minWeight, "min-weight", "w", 1, "exclude flows weighted below this (1..10)")
	fs.StringSliceVarP(&exclude, "exclude", "x", nil, "types to exclude from the graph")
	fs.StringVarP(&booleans, "booleans", "b", "", "conditional handling: all, default, or name=true,... pairs")
	fs.IntVarP(&limit, "limit", "l", 0, "stop after this many flows (0: no limit)")
	fs.BoolVar(&full, "full", false, "print the rules contributing to every step")
	fs.BoolVar(&stats, "stats", false, "print flow graph statistics")
	fs.BoolVar(&dot, "dot", false, "emit the resulting flows as Graphviz DOT")
	fs.StringVar(&settingsPath, "settings", "", "YAML file with saved analysis settings")
	fs.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	fs.BoolP("help", "h", false, "show help")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help, _ := fs.GetBool("help"); help {
		printUsage(fs)
		return nil
	}

	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level})

	if settingsPath != "" {
		saved, err := config.LoadAnalysis(settingsPath)
		if err != nil {
			return err
		}
		if !fs.Changed("source") {
			source = saved.Source
		}
		if !fs.Changed("target") {
			target = saved.Target
		}
		if !fs.Changed("min-weight") && saved.MinWeight != 0 {
			minWeight = saved.MinWeight
		}
		if !fs.Changed("exclude") {
			exclude = saved.Exclude
		}
		if !fs.Changed("booleans") {
			booleans = saved.Booleans
		}
		if !fs.Changed("limit") {
			limit = saved.Limit
		}
		if !fs.Changed("full") {
			full = saved.Full
		}
		if !modeFlagSet(fs) && saved.Mode != "" {
			switch saved.Mode {
			case "flows-out":
				flowsOut = true
			case "flows-in":
				flowsIn = true
			case "shortest-paths":
				shortest = true
			case "all-paths":
				allPaths = saved.DepthLimit
			default:
				return fmt.Errorf("settings %s: unknown mode %q", settingsPath, saved.Mode)
			}
		}
		logger.Debug("loaded settings", "path", settingsPath)
	}

	args := fs.Args()
	if len(args) != 1 {
		printUsage(fs)
		return fmt.Errorf("exactly one policy file is required")
	}
	policyPath := args[0]

	query, haveQuery, err := buildQuery(fs, source, target, flowsOut, flowsIn, shortest, allPaths)
	if err != nil {
		return err
	}
	if !haveQuery && !stats {
		printUsage(fs)
		return fmt.Errorf("choose an analysis: --flows-out, --flows-in, --shortest-paths, --all-paths or --stats")
	}

	assignment, err := parseBooleans(booleans)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(policyPath)
	if err != nil {
		return err
	}
	p, err := policy.NewCompiler().Compile(string(src))
	if err != nil {
		return fmt.Errorf("compiling %s: %w", policyPath, err)
	}
	logger.Debug("compiled policy", "types", len(p.TypeNames()), "rules", len(p.Rules))

	weights, err := loadWeights(mapPath)
	if err != nil {
		return err
	}
	weights.MapPolicy(p)

	opts := []infoflow.BuildOption{
		infoflow.WithMinWeight(minWeight),
		infoflow.WithBooleans(assignment),
	}
	if len(exclude) > 0 {
		opts = append(opts, infoflow.WithExclude(exclude...))
	}
	graph, err := infoflow.Build(p, weights, opts...)
	if err != nil {
		return err
	}
	graphStats := graph.Stats()
	logger.Debug("built flow graph", "nodes", graphStats.Nodes, "edges", graphStats.Edges)

	if stats {
		if err := render.WriteStats(os.Stdout, graphStats); err != nil {
			return err
		}
		if !haveQuery {
			return nil
		}
	}

	seq, err := infoflow.Search(graph, query)
	if err != nil {
		return err
	}

	if dot {
		var flows []*infoflow.Flow
		for flow := range seq {
			if limit > 0 && len(flows) == limit {
				break
			}
			flows = append(flows, flow)
		}
		out, err := render.DOT("flows", flows)
		if err != nil {
			return err
		}
		fmt.Print(out)
		logger.Debug("analysis done", "mode", query.Mode, "flows", len(flows))
		return nil
	}

	tw := render.NewTextWriter(os.Stdout, full)
	for flow := range seq {
		if limit > 0 && tw.Flows() == limit {
			break
		}
		if err := tw.WriteFlow(flow); err != nil {
			return err
		}
	}
	logger.Debug("analysis done", "mode", query.Mode, "flows", tw.Flows())
	return nil
}

func modeFlagSet(fs *pflag.FlagSet) bool {
	return fs.Changed("flows-out") || fs.Changed("flows-in") ||
		fs.Changed("shortest-paths") || fs.Changed("all-paths")
}

// buildQuery turns the mode flags into a query, insisting on exactly
// one mode. haveQuery is false when no mode was chosen at all.
func buildQuery(fs *pflag.FlagSet, source, target string, flowsOut, flowsIn, shortest bool, allPaths int) (infoflow.Query, bool, error) {
	query := infoflow.Query{Source: source, Target: target}

	chosen := 0
	if flowsOut {
		query.Mode = infoflow.ModeFlowsOut
		chosen++
	}
	if flowsIn {
		query.Mode = infoflow.ModeFlowsIn
		chosen++
	}
	if shortest {
		query.Mode = infoflow.ModeShortestPaths
		chosen++
	}
	if allPaths != 0 || fs.Changed("all-paths") {
		query.Mode = infoflow.ModeAllPaths
		query.DepthLimit = allPaths
		chosen++
	}

	if chosen > 1 {
		return infoflow.Query{}, false, fmt.Errorf("choose exactly one analysis mode")
	}
	return query, chosen == 1, nil
}

func parseBooleans(arg string) (infoflow.BooleanAssignment, error) {
	switch strings.TrimSpace(arg) {
	case "", "all":
		return infoflow.AllBooleans(), nil
	case "default":
		return infoflow.DefaultBooleans(), nil
	}

	values := map[string]bool{}
	for _, pair := range strings.Split(arg, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return infoflow.BooleanAssignment{}, fmt.Errorf("booleans: %q is not name=true|false", pair)
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return infoflow.BooleanAssignment{}, fmt.Errorf("booleans: %q is not name=true|false", pair)
		}
		values[strings.TrimSpace(name)] = value
	}
	return infoflow.ExplicitBooleans(values), nil
}

func loadWeights(path string) (*permmap.Map, error) {
	if path == "" {
		return permmap.Default(), nil
	}
	return permmap.LoadFile(path)
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `teflow analyzes information flow through type-enforcement policies.

Builds a weighted flow graph from the policy's allow rules and a
permission map, then searches it.

Usage:
  teflow [flags] POLICY_FILE

Examples:
  teflow -s init_t --flows-out policy.te
  teflow -s init_t -t shadow_t --shortest-paths -w 3 policy.te
  teflow -s init_t -t shadow_t --all-paths 4 -l 20 --full policy.te
  teflow --stats policy.te

Flags:
%s`, fs.FlagUsages())
}
