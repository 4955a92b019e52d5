// teflow-lambda serves the analysis service behind API Gateway.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/teflow/teflow/internal/app"
	"github.com/teflow/teflow/internal/config"
	"github.com/teflow/teflow/internal/infoflow"
	"github.com/teflow/teflow/internal/policy"
	"github.com/teflow/teflow/internal/policy/cache"
	"github.com/teflow/teflow/internal/transport/lambdatransport"
)

func main() {
	cfg := config.Load()

	svc := app.NewService(
		policy.NewCompiler(),
		cache.NewInMemory[*policy.Policy](cfg.PolicyCacheMaxItems),
		cache.NewInMemory[*infoflow.FlowGraph](cfg.GraphCacheMaxItems),
	)
	h := lambdatransport.NewHandler(svc, cfg.MaxFlows)

	lambda.Start(h.Analyze)
}
