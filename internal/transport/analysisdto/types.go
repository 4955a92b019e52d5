// Package analysisdto holds the request and response shapes shared by
// the HTTP and Lambda transports.
package analysisdto

import (
	"fmt"

	"github.com/teflow/teflow/internal/app"
	"github.com/teflow/teflow/internal/infoflow"
	"github.com/teflow/teflow/internal/render"
)

// Booleans selects how conditional rules are resolved. Mode is "all"
// (the default when omitted), "default", or "explicit"; Values only
// applies to explicit mode.
type Booleans struct {
	Mode   string          `json:"mode,omitempty"`
	Values map[string]bool `json:"values,omitempty"`
}

func (b *Booleans) assignment() (infoflow.BooleanAssignment, error) {
	if b == nil {
		return infoflow.AllBooleans(), nil
	}
	switch b.Mode {
	case "", "all":
		return infoflow.AllBooleans(), nil
	case "default":
		return infoflow.DefaultBooleans(), nil
	case "explicit":
		return infoflow.ExplicitBooleans(b.Values), nil
	default:
		return infoflow.BooleanAssignment{}, fmt.Errorf("unknown boolean mode %q", b.Mode)
	}
}

// AnalyzeRequest is one graph build plus one search over it.
type AnalyzeRequest struct {
	PolicySource  string    `json:"policy_source"`
	PermMapSource string    `json:"perm_map_source,omitempty"`
	MinWeight     int       `json:"min_weight,omitempty"`
	Exclude       []string  `json:"exclude,omitempty"`
	Booleans      *Booleans `json:"booleans,omitempty"`
	Mode          string    `json:"mode"`
	Source        string    `json:"source"`
	Target        string    `json:"target,omitempty"`
	DepthLimit    int       `json:"depth_limit,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Full          bool      `json:"full,omitempty"`
	DOT           bool      `json:"dot,omitempty"`
}

// AnalysisRequest converts the wire shape into the service request.
func (r AnalyzeRequest) AnalysisRequest() (app.AnalysisRequest, error) {
	mode, err := infoflow.ParseMode(r.Mode)
	if err != nil {
		return app.AnalysisRequest{}, err
	}
	booleans, err := r.Booleans.assignment()
	if err != nil {
		return app.AnalysisRequest{}, err
	}
	return app.AnalysisRequest{
		GraphRequest: app.GraphRequest{
			PolicySource:  r.PolicySource,
			PermMapSource: r.PermMapSource,
			MinWeight:     r.MinWeight,
			Exclude:       r.Exclude,
			Booleans:      booleans,
		},
		Mode:       mode,
		Source:     r.Source,
		Target:     r.Target,
		DepthLimit: r.DepthLimit,
		Limit:      r.Limit,
	}, nil
}

// StatsRequest is a graph build without a search.
type StatsRequest struct {
	PolicySource  string    `json:"policy_source"`
	PermMapSource string    `json:"perm_map_source,omitempty"`
	MinWeight     int       `json:"min_weight,omitempty"`
	Exclude       []string  `json:"exclude,omitempty"`
	Booleans      *Booleans `json:"booleans,omitempty"`
}

// GraphRequest converts the wire shape into the service request.
func (r StatsRequest) GraphRequest() (app.GraphRequest, error) {
	booleans, err := r.Booleans.assignment()
	if err != nil {
		return app.GraphRequest{}, err
	}
	return app.GraphRequest{
		PolicySource:  r.PolicySource,
		PermMapSource: r.PermMapSource,
		MinWeight:     r.MinWeight,
		Exclude:       r.Exclude,
		Booleans:      booleans,
	}, nil
}

type Step struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Weight int      `json:"weight"`
	Rules  []string `json:"rules,omitempty"`
}

type Flow struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Summary string `json:"summary"`
	Steps   []Step `json:"steps"`
}

type Stats struct {
	Nodes            int     `json:"nodes"`
	Edges            int     `json:"edges"`
	AverageOutDegree float64 `json:"average_out_degree"`
}

type AnalyzeResponse struct {
	Mode      string `json:"mode"`
	Flows     []Flow `json:"flows"`
	Stats     Stats  `json:"stats"`
	Truncated bool   `json:"truncated,omitempty"`
	DOT       string `json:"dot,omitempty"`
}

// NewAnalyzeResponse flattens the service result for the wire. Rules
// are rendered per step only when full output was requested; dot adds
// a DOT export of the union graph of the returned flows.
func NewAnalyzeResponse(mode infoflow.Mode, result *app.AnalysisResult, full, dot bool) (AnalyzeResponse, error) {
	resp := AnalyzeResponse{
		Mode:      mode.String(),
		Flows:     make([]Flow, 0, len(result.Flows)),
		Stats:     NewStats(result.Stats),
		Truncated: result.Truncated,
	}
	for _, flow := range result.Flows {
		out := Flow{
			Source:  flow.Source(),
			Target:  flow.Target(),
			Summary: flow.String(),
			Steps:   make([]Step, 0, len(flow.Steps)),
		}
		for _, step := range flow.Steps {
			s := Step{Source: step.Source, Target: step.Target, Weight: step.Weight}
			if full {
				for _, rule := range step.Rules {
					s.Rules = append(s.Rules, rule.String())
				}
			}
			out.Steps = append(out.Steps, s)
		}
		resp.Flows = append(resp.Flows, out)
	}
	if dot {
		rendered, err := render.DOT("flows", result.Flows)
		if err != nil {
			return AnalyzeResponse{}, fmt.Errorf("rendering dot: %w", err)
		}
		resp.DOT = rendered
	}
	return resp, nil
}

func NewStats(s infoflow.Stats) Stats {
	return Stats{Nodes: s.Nodes, Edges: s.Edges, AverageOutDegree: s.AverageOutDegree}
}
