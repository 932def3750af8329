package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/graph"
	"fractional-quest/backend/internal/observability"
	"fractional-quest/backend/internal/relational"
	"fractional-quest/backend/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-process system of record
type memoryStore struct {
	facts  graph.Facts
	skills []relational.SkillRecord
	saved  map[string]string
}

func (m *memoryStore) UserFacts(ctx context.Context, userID string) (graph.Facts, error) {
	if userID != "u1" {
		return graph.Facts{}, relational.ErrUserNotFound
	}
	return m.facts, nil
}

func (m *memoryStore) Profile(ctx context.Context, userID string) (*relational.Profile, error) {
	return nil, relational.ErrUserNotFound
}

func (m *memoryStore) Skills(ctx context.Context, userID string) ([]relational.SkillRecord, error) {
	return m.skills, nil
}

func (m *memoryStore) SearchListings(ctx context.Context, f relational.ListingFilter) ([]relational.ListingRecord, error) {
	return nil, nil
}

func (m *memoryStore) ListingByID(ctx context.Context, id string) (*relational.ListingRecord, error) {
	return nil, relational.ErrListingNotFound
}

func (m *memoryStore) SearchArticles(ctx context.Context, topic string, limit int) ([]relational.Article, error) {
	return nil, nil
}

func (m *memoryStore) SaveProfileField(ctx context.Context, userID, field, value string) error {
	m.saved[field] = value
	return nil
}

func (m *memoryStore) SavePreference(ctx context.Context, userID, prefType string, values []string) error {
	return nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Env:               "test",
		SiteBaseURL:       "parttime.quest",
		GraphBackend:      config.GraphBackendNone,
		GatewayTimeout:    time.Second,
		ContextCharBudget: 2000,
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *memoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := &memoryStore{
		facts: graph.Facts{
			Skills: []graph.Skill{{ID: "1", Name: "Financial modelling", Category: "finance", Confidence: 0.9}},
		},
		skills: []relational.SkillRecord{{Name: "Financial modelling", Level: "expert"}},
		saved:  map[string]string{},
	}
	router, dispatcher := newRouter(testConfig(), store, gateway.DisabledGraph{}, gateway.DisabledMemory{}, observability.NewCollector("test"))
	t.Cleanup(dispatcher.Wait)
	return router, store
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, map[string]interface{}{"graph-service": "disabled", "memory-service": "disabled"}, response["sources"])
}

func TestContextEndpoint_RelationalOnly(t *testing.T) {
	router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/context?userId=u1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Context string `json:"context"`
		Stats   struct {
			Relational int               `json:"relational"`
			Sources    map[string]string `json:"sources"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response.Context, "Financial modelling")
	assert.Equal(t, 1, response.Stats.Relational)
	assert.Equal(t, "disabled", response.Stats.Sources["graph-service"])
	assert.Equal(t, "disabled", response.Stats.Sources["memory-service"])
}

func TestContextEndpoint_UnknownUserIsEmpty(t *testing.T) {
	router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/context?userId=ghost", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "", response["context"])
}

func TestToolEndpoint_SaveThenSkills(t *testing.T) {
	router, store := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/hume-tool", bytes.NewBufferString(
		`{"tool_call_id":"c1","name":"save_user_preference","parameters":{"user_id":"u1","field":"timeline","value":"January"}}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"tool_response","tool_call_id":"c1","content":"Saved timeline: January"}`, w.Body.String())
	assert.Equal(t, "January", store.saved["timeline"])

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/hume-tool", bytes.NewBufferString(
		`{"tool_call_id":"c2","name":"get_user_facts","parameters":{"user_id":"u1"}}`))
	router.ServeHTTP(w, req)

	assert.JSONEq(t, `{"type":"tool_response","tool_call_id":"c2","content":"Skills: Financial modelling - expert"}`, w.Body.String())
}

func TestMemorySaveEndpoint_InvalidRequest(t *testing.T) {
	router, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/memory/save", bytes.NewBuffer([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
