package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/njchilds90/goderiv"
	"github.com/njchilds90/goderiv/internal/config"
	"github.com/njchilds90/goderiv/internal/observability"
)

type server struct {
	cfg     config.Server
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	call    func(goderiv.ToolRequest) goderiv.ToolResponse
}

// newServer wires telemetry from tel. A nil tel, or a signal tel leaves
// off, records nothing.
func newServer(cfg config.Server, logger *slog.Logger, tel *observability.Providers) *server {
	return &server{
		cfg:     cfg,
		logger:  logger,
		metrics: tel.Recorder(),
		spans:   tel.Spans(),
		call:    goderiv.HandleToolCall,
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	// POST /tool — handle a tool call
	mux.HandleFunc("/tool", s.handleTool)
	// GET /schema — return tool schema for agent registration
	mux.HandleFunc("/schema", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(goderiv.MCPToolSpec()))
	})
	// GET /health — liveness check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	return mux
}

func (s *server) handleTool(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.LogPanic(s.logger, rec, debug.Stack())
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req goderiv.ToolRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if dec.More() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: trailing data"})
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	logger := observability.EnrichLogger(s.logger, requestID, req.Tool)
	ctx, span := s.spans.StartToolSpan(r.Context(), req.Tool, requestID)
	observability.LogToolCall(logger)
	done := observability.TimedOperation()

	var callErr error
	defer func() {
		if rec := recover(); rec != nil {
			callErr = fmt.Errorf("tool %q panicked: %v", req.Tool, rec)
			observability.LogPanic(logger, rec, debug.Stack())
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		s.metrics.RecordToolCall(ctx, req.Tool, done(), callErr)
		s.spans.EndSpanWithError(span, callErr)
	}()

	resp := s.call(req)

	elapsed := done()
	if resp.Error != "" {
		callErr = errors.New(resp.Error)
		observability.LogToolError(logger, callErr, observability.Millis(elapsed))
	} else {
		points := evaluatedPoints(resp.Result)
		s.metrics.RecordEvaluations(ctx, req.Tool, points)
		observability.LogToolComplete(logger, observability.Millis(elapsed), points)
	}

	writeJSON(w, http.StatusOK, resp)
}

func evaluatedPoints(result any) int {
	switch r := result.(type) {
	case goderiv.Evaluation:
		return 1
	case []goderiv.Evaluation:
		return len(r)
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
