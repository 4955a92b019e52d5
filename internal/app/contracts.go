package app

import "github.com/teflow/teflow/internal/infoflow"

// Analyzer is the surface the transports consume.
type Analyzer interface {
	Analyze(req AnalysisRequest) (*AnalysisResult, error)
	GraphStats(req GraphRequest) (infoflow.Stats, error)
}
