package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/njchilds90/goderiv"
	"github.com/njchilds90/goderiv/internal/config"
	"github.com/njchilds90/goderiv/internal/observability"
)

func newTestServer(t *testing.T) (*httptest.Server, *bytes.Buffer) {
	t.Helper()
	logs := &bytes.Buffer{}
	cfg := config.Default()
	cfg.MaxBodyBytes = 512
	s := newServer(cfg, slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})), nil)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts, logs
}

func postTool(t *testing.T, ts *httptest.Server, body string) (*http.Response, goderiv.ToolResponse) {
	t.Helper()
	res, err := http.Post(ts.URL+"/tool", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	var out goderiv.ToolResponse
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if res.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return res, out
}

func TestTool_Eval(t *testing.T) {
	ts, logs := newTestServer(t)

	res, out := postTool(t, ts, `{"tool":"eval","params":{"expr":{"type":"pow","base":{"type":"x"},"exp":{"type":"x"}},"point":2}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, out.Error)

	result, ok := out.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "4", result["value"])
	assert.Equal(t, "2", result["point"])

	_, err := uuid.Parse(res.Header.Get("X-Request-Id"))
	assert.NoError(t, err)
	assert.Contains(t, logs.String(), "tool call completed")
}

func TestTool_ErrorInBody(t *testing.T) {
	ts, logs := newTestServer(t)

	res, out := postTool(t, ts, `{"tool":"integrate","params":{}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, out.Error, "unknown tool")
	assert.Contains(t, logs.String(), "tool call failed")
}

func TestTool_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"tool":`},
		{"unknown field", `{"tool":"eval","extra":1}`},
		{"trailing data", `{"tool":"mcp_spec"} {"tool":"mcp_spec"}`},
		{"too large", `{"tool":"eval","params":{"pad":"` + strings.Repeat("a", 1024) + `"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := postTool(t, ts, tt.body)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}
}

func TestTool_MethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	res, err := http.Get(ts.URL + "/tool")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestSchemaAndHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/schema")
	require.NoError(t, err)
	defer res.Body.Close()
	var spec map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&spec))
	assert.Contains(t, spec, "tools")

	res2, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer res2.Body.Close()
	var health map[string]any
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}

func TestEvaluatedPoints(t *testing.T) {
	assert.Equal(t, 1, evaluatedPoints(goderiv.Evaluation{}))
	assert.Equal(t, 3, evaluatedPoints(make([]goderiv.Evaluation, 3)))
	assert.Equal(t, 0, evaluatedPoints(map[string]any{}))
}

func TestTool_TelemetryEnabled(t *testing.T) {
	out := &bytes.Buffer{}
	cfg := config.Default()
	cfg.Metrics, cfg.Tracing = true, true
	tel, err := observability.NewProviders(out, cfg.Metrics, cfg.Tracing)
	require.NoError(t, err)

	s := newServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), tel)
	_, span := s.spans.StartToolSpan(context.Background(), "eval", "r")
	assert.True(t, span.IsRecording())
	span.End()

	ts := httptest.NewServer(s.routes())
	defer ts.Close()
	res, resp := postTool(t, ts, `{"tool":"eval_points","params":{"expr":{"type":"x"},"points":[1,2]}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Empty(t, resp.Error)

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Contains(t, out.String(), "goderiv.tool.eval_points")
	assert.Contains(t, out.String(), "goderiv.tool.calls")
	assert.Contains(t, out.String(), "goderiv.eval.points")
}

type recordedCall struct {
	tool string
	err  error
}

type recordingMetrics struct{ calls []recordedCall }

func (m *recordingMetrics) RecordToolCall(_ context.Context, tool string, _ time.Duration, err error) {
	m.calls = append(m.calls, recordedCall{tool, err})
}
func (m *recordingMetrics) RecordEvaluations(context.Context, string, int) {}

type recordingSpans struct {
	started int
	ended   []error
}

func (s *recordingSpans) StartToolSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	s.started++
	return ctx, trace.SpanFromContext(ctx)
}
func (s *recordingSpans) EndSpanWithError(_ trace.Span, err error) { s.ended = append(s.ended, err) }

func TestTool_PanicEndsSpanAndRecords(t *testing.T) {
	logs := &bytes.Buffer{}
	metrics, spans := &recordingMetrics{}, &recordingSpans{}
	s := newServer(config.Default(), slog.New(slog.NewJSONHandler(logs, nil)), nil)
	s.metrics, s.spans = metrics, spans
	s.call = func(goderiv.ToolRequest) goderiv.ToolResponse { panic("boom") }

	rec := httptest.NewRecorder()
	s.handleTool(rec, httptest.NewRequest(http.MethodPost, "/tool", strings.NewReader(`{"tool":"eval","params":{}}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	require.Len(t, metrics.calls, 1)
	assert.Equal(t, "eval", metrics.calls[0].tool)
	assert.ErrorContains(t, metrics.calls[0].err, "boom")

	assert.Equal(t, 1, spans.started)
	require.Len(t, spans.ended, 1)
	assert.ErrorContains(t, spans.ended[0], "boom")
	assert.Contains(t, logs.String(), "boom")
}

func TestTool_SuccessRecordsOnce(t *testing.T) {
	metrics, spans := &recordingMetrics{}, &recordingSpans{}
	s := newServer(config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	s.metrics, s.spans = metrics, spans

	rec := httptest.NewRecorder()
	s.handleTool(rec, httptest.NewRequest(http.MethodPost, "/tool", strings.NewReader(`{"tool":"integrate","params":{}}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, metrics.calls, 1)
	assert.ErrorContains(t, metrics.calls[0].err, "unknown tool")
	require.Len(t, spans.ended, 1)
	assert.Error(t, spans.ended[0])
}
