package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "fractional-quest/backend/pkg/errors"
	"github.com/joho/godotenv"
)

// Graph backends accepted by GRAPH_BACKEND
const (
	GraphBackendZep   = "zep"
	GraphBackendNeo4j = "neo4j"
	GraphBackendNone  = "none"
)

// Config holds all application configuration
type Config struct {
	// App
	Port        string
	Env         string
	SiteBaseURL string

	// System of record
	DatabaseURL string

	// Temporal knowledge graph
	GraphBackend  string
	ZepAPIURL     string
	ZepAPIKey     string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Semantic memory
	SupermemoryAPIURL string
	SupermemoryAPIKey string

	// Preference extraction (OpenAI-compatible endpoint, optional)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Context assembly
	GatewayTimeout    time.Duration
	ContextCharBudget int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		SiteBaseURL:       getEnv("SITE_BASE_URL", "parttime.quest"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		GraphBackend:      strings.ToLower(getEnv("GRAPH_BACKEND", GraphBackendZep)),
		ZepAPIURL:         getEnv("ZEP_API_URL", "https://api.getzep.com/api/v2"),
		ZepAPIKey:         getEnv("ZEP_API_KEY", ""),
		Neo4jURI:          getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:         getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", ""),
		SupermemoryAPIURL: getEnv("SUPERMEMORY_API_URL", "https://api.supermemory.ai/v1"),
		SupermemoryAPIKey: getEnv("SUPERMEMORY_API_KEY", ""),
		LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		GatewayTimeout:    time.Duration(getEnvInt("GATEWAY_TIMEOUT_MS", 4000)) * time.Millisecond,
		ContextCharBudget: getEnvInt("CONTEXT_CHAR_BUDGET", 2000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
// Missing credentials for external services are not an error: the
// matching gateway runs disabled.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return apperrors.NewConfigMissingRequired("DATABASE_URL")
	}
	switch c.GraphBackend {
	case GraphBackendZep, GraphBackendNeo4j, GraphBackendNone:
	default:
		return fmt.Errorf("GRAPH_BACKEND must be one of zep, neo4j, none (got %q)", c.GraphBackend)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT_MS must be positive")
	}
	if c.ContextCharBudget <= 0 {
		return fmt.Errorf("CONTEXT_CHAR_BUDGET must be positive")
	}
	return nil
}

// GraphEnabled reports whether the configured graph backend has credentials
func (c *Config) GraphEnabled() bool {
	switch c.GraphBackend {
	case GraphBackendZep:
		return c.ZepAPIKey != ""
	case GraphBackendNeo4j:
		return c.Neo4jURI != "" && c.Neo4jPassword != ""
	}
	return false
}

// MemoryEnabled reports whether the semantic memory service is configured
func (c *Config) MemoryEnabled() bool {
	return c.SupermemoryAPIKey != ""
}

// LLMEnabled reports whether LLM-backed extraction is configured
func (c *Config) LLMEnabled() bool {
	return c.LLMBaseURL != "" || c.LLMAPIKey != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
