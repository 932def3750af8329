package config

import (
	"testing"
	"time"

	apperrors "fractional-quest/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/quest")
	t.Setenv("GRAPH_BACKEND", "")
	t.Setenv("ZEP_API_KEY", "")
	t.Setenv("SUPERMEMORY_API_KEY", "")
	t.Setenv("GATEWAY_TIMEOUT_MS", "")
	t.Setenv("CONTEXT_CHAR_BUDGET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, GraphBackendZep, cfg.GraphBackend)
	assert.Equal(t, 4*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 2000, cfg.ContextCharBudget)
	assert.False(t, cfg.GraphEnabled())
	assert.False(t, cfg.MemoryEnabled())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))

	var missing *apperrors.ErrConfigMissingRequired
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "DATABASE_URL", missing.Field)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabaseURL:       "postgres://x",
			GraphBackend:      GraphBackendNone,
			GatewayTimeout:    time.Second,
			ContextCharBudget: 100,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.GraphBackend = "arangodb" }, true},
		{"zero timeout", func(c *Config) { c.GatewayTimeout = 0 }, true},
		{"zero budget", func(c *Config) { c.ContextCharBudget = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGraphEnabled(t *testing.T) {
	c := &Config{GraphBackend: GraphBackendNeo4j, Neo4jURI: "bolt://x", Neo4jPassword: "pw"}
	assert.True(t, c.GraphEnabled())

	c.GraphBackend = GraphBackendNone
	assert.False(t, c.GraphEnabled())

	c = &Config{GraphBackend: GraphBackendZep, ZepAPIKey: "k"}
	assert.True(t, c.GraphEnabled())
}
