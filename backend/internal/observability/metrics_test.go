package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("quest")

	c.RecordFragments("relational", 3)
	c.RecordFragments("relational", 0)
	c.RecordSourceFailure("memory-service")
	c.RecordToolCall("search_jobs", "ok")
	c.RecordToolCall("search_jobs", "ok")
	c.RecordHTTPRequest("POST", "/api/hume-tool", 200, 10*time.Millisecond)
	c.RecordAssembly(120 * time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.Fragments.WithLabelValues("relational")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SourceFailures.WithLabelValues("memory-service")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ToolCalls.WithLabelValues("search_jobs", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("POST", "/api/hume-tool", "200")))
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordFragments("relational", 1)
		c.RecordSourceFailure("graph-service")
		c.RecordAssembly(time.Second)
		c.RecordToolCall("x", "ok")
		c.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("quest")
	c.RecordToolCall("get_user_profile", "ok")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `quest_tool_calls_total{outcome="ok",tool="get_user_profile"} 1`)
}
