// Package lambdatransport exposes the analysis service behind API
// Gateway.
package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/teflow/teflow/internal/app"
	"github.com/teflow/teflow/internal/transport/analysisdto"
)

type Handler struct {
	svc      app.Analyzer
	maxFlows int
}

// NewHandler wires the analysis service to the Lambda entrypoint.
// maxFlows caps the number of flows a single request may return; 0
// leaves requests uncapped.
func NewHandler(svc app.Analyzer, maxFlows int) *Handler {
	return &Handler{svc: svc, maxFlows: maxFlows}
}

// Analyze assumes API Gateway already routed POST /analyze here.
func (h *Handler) Analyze(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body, err := readBody(req)
	if err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid body", "details": err.Error()}), nil
	}

	var in analysisdto.AnalyzeRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()}), nil
	}

	svcReq, err := in.AnalysisRequest()
	if err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "invalid request", "details": err.Error()}), nil
	}
	svcReq.Limit = h.capLimit(svcReq.Limit)

	result, err := h.svc.Analyze(svcReq)
	if err != nil {
		return jsonResp(http.StatusBadRequest, map[string]any{"error": "analysis failed", "details": err.Error()}), nil
	}

	resp, err := analysisdto.NewAnalyzeResponse(svcReq.Mode, result, in.Full, in.DOT)
	if err != nil {
		return jsonResp(http.StatusInternalServerError, map[string]any{"error": "rendering failed", "details": err.Error()}), nil
	}
	return jsonResp(http.StatusOK, resp), nil
}

func (h *Handler) capLimit(limit int) int {
	if h.maxFlows <= 0 {
		return limit
	}
	if limit <= 0 || limit > h.maxFlows {
		return h.maxFlows
	}
	return limit
}

func readBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func jsonResp(status int, body any) events.APIGatewayV2HTTPResponse {
	b, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(b),
	}
}
