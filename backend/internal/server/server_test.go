package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fractional-quest/backend/internal/assembler"
	"fractional-quest/backend/internal/extract"
	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/graph"
	"fractional-quest/backend/internal/memory"
	"fractional-quest/backend/internal/observability"
	"fractional-quest/backend/internal/relational"
	"fractional-quest/backend/internal/tools"
	apperrors "fractional-quest/backend/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeAssembler struct {
	res     *assembler.Result
	err     error
	gotUser string
	gotHint string
}

func (f *fakeAssembler) Assemble(ctx context.Context, userID, queryHint string) (*assembler.Result, error) {
	f.gotUser, f.gotHint = userID, queryHint
	return f.res, f.err
}

type echoDispatcher struct {
	calls []tools.ToolCall
}

func (f *echoDispatcher) Dispatch(ctx context.Context, call tools.ToolCall) tools.ToolResponse {
	f.calls = append(f.calls, call)
	return tools.ToolResponse{Type: tools.ResponseType, ToolCallID: call.CallID, Content: "handled " + call.Name}
}

type fakeRecorder struct {
	rec *memory.Recording
	err error
}

func (f *fakeRecorder) Record(ctx context.Context, userID, transcript string, metadata map[string]interface{}) (*memory.Recording, error) {
	return f.rec, f.err
}

type fakeGraph struct {
	gateway.DisabledGraph
	payloads []gateway.Payload
	err      error
}

func (f *fakeGraph) EnsureSubject(ctx context.Context, userID string, hints map[string]string) error {
	return f.err
}

func (f *fakeGraph) Append(ctx context.Context, userID string, payload gateway.Payload) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

type fakeFacts struct {
	facts graph.Facts
	err   error
}

func (f *fakeFacts) UserFacts(ctx context.Context, userID string) (graph.Facts, error) {
	return f.facts, f.err
}

type fakePreferences struct {
	saved map[string][]string
}

func (f *fakePreferences) SavePreference(ctx context.Context, userID, prefType string, values []string) error {
	if f.saved == nil {
		f.saved = map[string][]string{}
	}
	f.saved[prefType] = values
	return nil
}

func newTestRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if deps.Metrics == nil {
		deps.Metrics = observability.NewCollector("test")
	}
	return NewRouter(deps)
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// ============================================================================
// Routes
// ============================================================================

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(Deps{})
	w := do(router, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	degraded := newTestRouter(Deps{Ready: func(ctx context.Context) error { return errors.New("no db") }})
	w = do(degraded, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthEndpoint_ReportsSources(t *testing.T) {
	states := map[string]string{"graph-service": "closed", "memory-service": "disabled"}
	router := newTestRouter(Deps{Sources: func() map[string]string { return states }})

	w := do(router, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]interface{}{"graph-service": "closed", "memory-service": "disabled"}, body["sources"])

	states["graph-service"] = "open"
	w = do(router, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestHumeTool(t *testing.T) {
	d := &echoDispatcher{}
	router := newTestRouter(Deps{Dispatcher: d})

	w := do(router, "POST", "/api/hume-tool", `{"tool_call_id":"abc","name":"search_jobs","parameters":"{\"location\":\"London\"}"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "tool_response", body["type"])
	assert.Equal(t, "abc", body["tool_call_id"])
	assert.Equal(t, "handled search_jobs", body["content"])
	require.Len(t, d.calls, 1)
	assert.JSONEq(t, `{"location":"London"}`, string(d.calls[0].Parameters))
}

func TestHumeTool_BadRequests(t *testing.T) {
	d := &echoDispatcher{}
	router := newTestRouter(Deps{Dispatcher: d})

	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{"no name", `{"tool_call_id":"abc","parameters":{}}`, "abc"},
		{"not json", `not json`, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, "POST", "/api/hume-tool", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode(t, w)
			assert.Equal(t, "tool_response", body["type"])
			assert.Equal(t, tt.wantID, body["tool_call_id"])
		})
	}
	assert.Empty(t, d.calls)
}

func TestHumeTool_EndToEndUnknownTool(t *testing.T) {
	d := tools.NewDispatcher(nil, nil, nil, tools.Options{}, nil)
	router := newTestRouter(Deps{Dispatcher: d})

	w := do(router, "POST", "/api/hume-tool", `{"tool_call_id":"x1","name":"delete_everything"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"tool_response","tool_call_id":"x1","content":"Unknown tool: delete_everything"}`, w.Body.String())
}

func TestListTools(t *testing.T) {
	router := newTestRouter(Deps{})
	w := do(router, "GET", "/api/hume-tool", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["tools"], len(tools.Definitions()))
}

func TestContextEndpoint(t *testing.T) {
	a := &fakeAssembler{res: &assembler.Result{
		Context: "User skills: Go",
		Stats:   assembler.Stats{Relational: 1, Chars: 15},
	}}
	router := newTestRouter(Deps{Assembler: a})

	w := do(router, "GET", "/api/context?userId=u1&query=golang", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "User skills: Go", body["context"])
	assert.Equal(t, "u1", a.gotUser)
	assert.Equal(t, "golang", a.gotHint)

	stats, ok := body["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, stats["relational"])
}

func TestContextEndpoint_Errors(t *testing.T) {
	router := newTestRouter(Deps{Assembler: &fakeAssembler{}})
	w := do(router, "GET", "/api/context", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing := newTestRouter(Deps{Assembler: &fakeAssembler{err: apperrors.NewStoreUnavailable("user facts", errors.New("down"))}})
	w = do(failing, "GET", "/api/context?userId=u1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, true, decode(t, w)["retryable"])

	broken := newTestRouter(Deps{Assembler: &fakeAssembler{err: errors.New("bad query")}})
	w = do(broken, "GET", "/api/context?userId=u1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decode(t, w)["retryable"])
}

func TestSaveMemory(t *testing.T) {
	rec := &memory.Recording{Saved: true, TranscriptLength: 42, Extracted: &extract.Result{Preferences: []extract.Preference{}}, GraphFacts: 2}

	tests := []struct {
		name       string
		recorder   *fakeRecorder
		body       string
		wantStatus int
		wantSaved  bool
		wantReason string
	}{
		{"saved", &fakeRecorder{rec: rec}, `{"userId":"u1","transcript":"long enough transcript here"}`, http.StatusOK, true, ""},
		{"graph errors still saved", &fakeRecorder{rec: rec, err: errors.New("graph down")}, `{"userId":"u1","transcript":"long enough transcript here"}`, http.StatusOK, true, ""},
		{"too short", &fakeRecorder{rec: &memory.Recording{}, err: memory.ErrTranscriptTooShort}, `{"userId":"u1","transcript":"hi"}`, http.StatusOK, false, "Transcript too short"},
		{"disabled", &fakeRecorder{rec: &memory.Recording{TranscriptLength: 30}}, `{"userId":"u1","transcript":"long enough transcript here"}`, http.StatusOK, false, "Memory service not configured"},
		{"store failure", &fakeRecorder{rec: &memory.Recording{}, err: errors.New("503")}, `{"userId":"u1","transcript":"long enough transcript here"}`, http.StatusInternalServerError, false, ""},
		{"no user", &fakeRecorder{}, `{"transcript":"long enough transcript here"}`, http.StatusBadRequest, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(Deps{Recorder: tt.recorder})
			w := do(router, "POST", "/api/memory/save", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			if tt.wantStatus == http.StatusBadRequest {
				return
			}
			assert.Equal(t, tt.wantSaved, body["saved"])
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, body["reason"])
			}
		})
	}
}

func TestExtractPreferences(t *testing.T) {
	router := newTestRouter(Deps{})

	w := do(router, "POST", "/api/extract-preferences", `{"transcript":"I want CTO roles in London"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var res extract.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"CTO"}, res.Values(extract.TypeRole))
	assert.True(t, res.ShouldConfirm)

	w = do(router, "POST", "/api/extract-preferences", `{"transcript":""}`)
	assert.JSONEq(t, `{"preferences":[],"should_confirm":false}`, w.Body.String())
}

func TestGraphPreference(t *testing.T) {
	g := &fakeGraph{}
	prefs := &fakePreferences{}
	router := newTestRouter(Deps{Graph: g, Preferences: prefs})

	w := do(router, "POST", "/api/graph/preference",
		`{"userId":"u1","preference":{"type":"role","values":["CTO","CFO"],"validated":true,"raw_text":"CTO or CFO"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["stored"])

	require.Len(t, g.payloads, 1)
	assert.Equal(t, "user_role", g.payloads[0].Type)
	assert.Equal(t, "User confirmed role: CTO, CFO", g.payloads[0].Summary())
	assert.Equal(t, []string{"CTO", "CFO"}, prefs.saved["role"])
}

func TestGraphPreference_Errors(t *testing.T) {
	tests := []struct {
		name       string
		graph      gateway.GraphGateway
		body       string
		wantStatus int
	}{
		{"bad type", &fakeGraph{}, `{"userId":"u1","preference":{"type":"salary","values":["x"]}}`, http.StatusBadRequest},
		{"no values", &fakeGraph{}, `{"userId":"u1","preference":{"type":"role","values":[]}}`, http.StatusBadRequest},
		{"no user", &fakeGraph{}, `{"preference":{"type":"role","values":["CTO"]}}`, http.StatusBadRequest},
		{"disabled", gateway.DisabledGraph{}, `{"userId":"u1","preference":{"type":"role","values":["CTO"]}}`, http.StatusServiceUnavailable},
		{"graph down", &fakeGraph{err: errors.New("down")}, `{"userId":"u1","preference":{"type":"role","values":["CTO"]}}`, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(Deps{Graph: tt.graph})
			w := do(router, "POST", "/api/graph/preference", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, false, decode(t, w)["success"])
		})
	}
}

func TestGraphUser(t *testing.T) {
	facts := &fakeFacts{facts: graph.Facts{
		Skills: []graph.Skill{{ID: "s1", Name: "Go", Category: "engineering", Confidence: 0.9}},
	}}
	router := newTestRouter(Deps{Facts: facts})

	w := do(router, "GET", "/api/graph/user?userId=u1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, 1.0, stats["skillCount"])
	g := body["graph"].(map[string]interface{})
	assert.Equal(t, "u1", g["user_id"])
	assert.NotEmpty(t, g["nodes"])
}

func TestGraphUser_Errors(t *testing.T) {
	router := newTestRouter(Deps{Facts: &fakeFacts{}})
	assert.Equal(t, http.StatusBadRequest, do(router, "GET", "/api/graph/user", "").Code)

	unknown := newTestRouter(Deps{Facts: &fakeFacts{err: relational.ErrUserNotFound}})
	assert.Equal(t, http.StatusOK, do(unknown, "GET", "/api/graph/user?userId=ghost", "").Code)

	failing := newTestRouter(Deps{Facts: &fakeFacts{err: errors.New("down")}})
	assert.Equal(t, http.StatusInternalServerError, do(failing, "GET", "/api/graph/user?userId=u1", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observability.NewCollector("test")
	router := newTestRouter(Deps{Metrics: metrics})

	do(router, "GET", "/health", "")
	do(router, "GET", "/nowhere", "")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))

	w := do(router, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_http_requests_total"))
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(Deps{})
	w := do(router, "OPTIONS", "/api/context", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
