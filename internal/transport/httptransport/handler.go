// Package httptransport exposes the analysis service over HTTP.
package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/teflow/teflow/internal/app"
	"github.com/teflow/teflow/internal/transport/analysisdto"
)

type Handler struct {
	svc      app.Analyzer
	log      *log.Logger
	maxFlows int
}

// NewHandler wires the analysis service to HTTP. maxFlows caps the
// number of flows a single request may return; 0 leaves requests
// uncapped.
func NewHandler(svc app.Analyzer, logger *log.Logger, maxFlows int) *Handler {
	return &Handler{svc: svc, log: logger, maxFlows: maxFlows}
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in analysisdto.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
		return
	}

	req, err := in.AnalysisRequest()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "details": err.Error()})
		return
	}
	req.Limit = h.capLimit(req.Limit)

	result, err := h.svc.Analyze(req)
	if err != nil {
		logger.Error("analysis failed", "mode", in.Mode, "source", in.Source, "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "analysis failed", "details": err.Error()})
		return
	}

	resp, err := analysisdto.NewAnalyzeResponse(req.Mode, result, in.Full, in.DOT)
	if err != nil {
		logger.Error("rendering failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "rendering failed", "details": err.Error()})
		return
	}

	logger.Info("analysis done",
		"mode", in.Mode, "source", in.Source, "target", in.Target,
		"flows", len(result.Flows), "truncated", result.Truncated)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in analysisdto.StatsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
		return
	}

	req, err := in.GraphRequest()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "details": err.Error()})
		return
	}

	stats, err := h.svc.GraphStats(req)
	if err != nil {
		logger.Error("graph build failed", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "graph build failed", "details": err.Error()})
		return
	}

	logger.Info("graph stats", "nodes", stats.Nodes, "edges", stats.Edges)
	writeJSON(w, http.StatusOK, analysisdto.NewStats(stats))
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger tags the response and all log lines for one request
// with a fresh request id.
func (h *Handler) requestLogger(w http.ResponseWriter) *log.Logger {
	id := uuid.New().String()
	w.Header().Set("X-Request-Id", id)
	return h.log.With("request_id", id)
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

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
