// Package app orchestrates one analysis run: compile the policy, load
// the weight table, build the flow graph and search it. Compilation and
// graph construction are cached by input digest so repeated requests
// against the same policy skip the expensive work.
package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/teflow/teflow/internal/infoflow"
	"github.com/teflow/teflow/internal/permmap"
	"github.com/teflow/teflow/internal/policy"
	"github.com/teflow/teflow/internal/policy/cache"
)

type Compiler interface {
	Compile(src string) (*policy.Policy, error)
}

type PolicyCache interface {
	GetOrCompute(key string, fn func() (*policy.Policy, error)) (*policy.Policy, error)
}

type GraphCache interface {
	GetOrCompute(key string, fn func() (*infoflow.FlowGraph, error)) (*infoflow.FlowGraph, error)
}

// GraphRequest carries everything that shapes the flow graph.
// MinWeight 0 means the default of 1. An empty PermMapSource selects
// the built-in permission map.
type GraphRequest struct {
	PolicySource  string
	PermMapSource string
	MinWeight     int
	Exclude       []string
	Booleans      infoflow.BooleanAssignment
}

// AnalysisRequest is a graph plus one search over it. Limit 0 returns
// every flow; a positive limit stops the search after that many.
type AnalysisRequest struct {
	GraphRequest
	Mode       infoflow.Mode
	Source     string
	Target     string
	DepthLimit int
	Limit      int
}

// AnalysisResult is the collected search output. Truncated reports that
// Limit cut the sequence short.
type AnalysisResult struct {
	Flows     []*infoflow.Flow
	Stats     infoflow.Stats
	Truncated bool
}

type Service struct {
	compiler Compiler
	policies PolicyCache
	graphs   GraphCache
}

func NewService(compiler Compiler, policies PolicyCache, graphs GraphCache) *Service {
	return &Service{compiler: compiler, policies: policies, graphs: graphs}
}

// Analyze builds (or reuses) the flow graph for the request and runs
// the search, consuming the flow sequence only as far as Limit allows.
func (s *Service) Analyze(req AnalysisRequest) (*AnalysisResult, error) {
	graph, err := s.graph(req.GraphRequest)
	if err != nil {
		return nil, err
	}

	seq, err := infoflow.Search(graph, infoflow.Query{
		Mode:       req.Mode,
		Source:     req.Source,
		Target:     req.Target,
		DepthLimit: req.DepthLimit,
	})
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{Stats: graph.Stats()}
	for flow := range seq {
		if req.Limit > 0 && len(result.Flows) == req.Limit {
			result.Truncated = true
			break
		}
		result.Flows = append(result.Flows, flow)
	}
	return result, nil
}

// GraphStats builds (or reuses) the flow graph and returns its
// counters without running a search.
func (s *Service) GraphStats(req GraphRequest) (infoflow.Stats, error) {
	graph, err := s.graph(req)
	if err != nil {
		return infoflow.Stats{}, err
	}
	return graph.Stats(), nil
}

func (s *Service) graph(req GraphRequest) (*infoflow.FlowGraph, error) {
	if strings.TrimSpace(req.PolicySource) == "" {
		return nil, fmt.Errorf("policy source is required")
	}

	p, err := s.policies.GetOrCompute(cache.Key("policy", req.PolicySource), func() (*policy.Policy, error) {
		return s.compiler.Compile(req.PolicySource)
	})
	if err != nil {
		return nil, fmt.Errorf("compiling policy: %w", err)
	}

	return s.graphs.GetOrCompute(graphKey(req), func() (*infoflow.FlowGraph, error) {
		weights, err := s.weights(req.PermMapSource)
		if err != nil {
			return nil, err
		}
		weights.MapPolicy(p)

		opts := []infoflow.BuildOption{infoflow.WithBooleans(req.Booleans)}
		if req.MinWeight != 0 {
			opts = append(opts, infoflow.WithMinWeight(req.MinWeight))
		}
		if len(req.Exclude) > 0 {
			opts = append(opts, infoflow.WithExclude(req.Exclude...))
		}
		return infoflow.Build(p, weights, opts...)
	})
}

func (s *Service) weights(source string) (*permmap.Map, error) {
	if strings.TrimSpace(source) == "" {
		return permmap.Default(), nil
	}
	m, err := permmap.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing permission map: %w", err)
	}
	return m, nil
}

// graphKey digests every input that shapes the graph. Exclusions are
// order-insensitive, boolean values are canonicalized by name.
func graphKey(req GraphRequest) string {
	exclude := make([]string, len(req.Exclude))
	copy(exclude, req.Exclude)
	sort.Strings(exclude)

	booleans := make([]string, 0, len(req.Booleans.Values))
	for name, value := range req.Booleans.Values {
		booleans = append(booleans, name+"="+strconv.FormatBool(value))
	}
	sort.Strings(booleans)

	return cache.Key(
		"graph",
		req.PolicySource,
		req.PermMapSource,
		strconv.Itoa(req.MinWeight),
		strings.Join(exclude, ","),
		strconv.Itoa(int(req.Booleans.Mode)),
		strings.Join(booleans, ","),
	)
}
