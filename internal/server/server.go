package server

import (
	"encoding/json"
	"net/http"

	"github.com/calionestevar/orionai/internal/config"
	"github.com/calionestevar/orionai/internal/policy"
	"github.com/calionestevar/orionai/internal/redact"
	"github.com/calionestevar/orionai/internal/telemetry"
)

// Server exposes the validation engine over HTTP. There is no
// authentication on this surface; deployments front it themselves.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	engine *policy.Engine
	tel    *telemetry.Provider
}

// New wires the routes. The engine must already be initialized.
func New(cfg *config.Config, engine *policy.Engine, tel *telemetry.Provider) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		cfg:    cfg,
		engine: engine,
		tel:    tel,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/validate", s.handleValidate)
	s.mux.HandleFunc("/v1/validate/quick", s.handleQuickValidate)
	s.mux.HandleFunc("/v1/metrics", s.handleMetrics)
	s.mux.HandleFunc("/v1/report", s.handleComplianceReport)
	s.mux.HandleFunc("/v1/safemode", s.handleSafeModeStatus)
	s.mux.HandleFunc("/v1/safemode/exit", s.handleSafeModeExit)

	return s
}

// Handler returns the root handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type validateRequest struct {
	AISystem string `json:"ai_system"`
	Text     string `json:"text"`
	Context  string `json:"context"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.AISystem == "" {
		req.AISystem = "unknown"
	}

	ctx, span := s.tel.Tracer().Start(r.Context(), "validate")
	report := s.engine.Validate(ctx, req.AISystem, req.Text, req.Context)
	span.SetAttributes(telemetry.SafeAttributes(map[string]interface{}{
		"orionai.result":          string(report.Result),
		"orionai.ai_system":       report.AISystem,
		"orionai.suspicion_score": report.SuspicionScore,
		"orionai.rules":           report.TriggeredRules,
	})...)
	span.End()

	writeJSON(w, http.StatusOK, report)
}

type quickValidateRequest struct {
	Text string `json:"text"`
}

type quickValidateResponse struct {
	Valid bool `json:"valid"`
}

func (s *Server) handleQuickValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req quickValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, quickValidateResponse{
		Valid: s.engine.QuickValidate(r.Context(), req.Text),
	})
}

type metricsResponse struct {
	policy.Snapshot
	SafeModeActive bool `json:"safe_mode_active"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, metricsResponse{
		Snapshot:       s.engine.Metrics(),
		SafeModeActive: s.engine.IsInSafeMode(),
	})
}

func (s *Server) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.engine.ExportComplianceReport()))
}

type safeModeResponse struct {
	Active bool `json:"active"`
}

func (s *Server) handleSafeModeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, safeModeResponse{Active: s.engine.IsInSafeMode()})
}

func (s *Server) handleSafeModeExit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.engine.ExitSafeMode()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		redact.Logf("server: failed to write response: %v", err)
	}
}
