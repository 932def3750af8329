package gateway

import (
	"context"
	"fmt"

	"fractional-quest/backend/pkg/config"
	"fractional-quest/backend/pkg/logger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// CloseFunc releases whatever a gateway holds open
type CloseFunc func(ctx context.Context) error

func noopClose(context.Context) error { return nil }

// NewGraphGateway builds the configured graph backend behind a circuit
// breaker. Without credentials the gateway is disabled.
func NewGraphGateway(ctx context.Context, cfg *config.Config) (GraphGateway, CloseFunc, error) {
	log := logger.Get()

	if !cfg.GraphEnabled() {
		log.Info("Graph gateway disabled", zap.String("backend", cfg.GraphBackend))
		return DisabledGraph{}, noopClose, nil
	}

	switch cfg.GraphBackend {
	case config.GraphBackendZep:
		log.Info("Graph gateway: zep", zap.String("url", cfg.ZepAPIURL))
		zep := NewZepGraph(cfg.ZepAPIURL, cfg.ZepAPIKey, cfg.GatewayTimeout)
		return NewBreakerGraph("graph-service", zep, DefaultBreakerSettings), noopClose, nil

	case config.GraphBackendNeo4j:
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
		}
		// The driver reconnects on its own; an unreachable server at boot
		// only means queries fail until it comes back.
		g := NewNeo4jGraph(driver)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Warn("Neo4j not reachable at startup", zap.Error(err))
		} else if applied, err := g.EnsureSchema(ctx); err != nil {
			log.Warn("Failed to apply Neo4j schema", zap.Error(err))
		} else {
			log.Debug("Neo4j schema applied", zap.Int("statements", applied))
		}
		log.Info("Graph gateway: neo4j", zap.String("uri", cfg.Neo4jURI))
		return NewBreakerGraph("graph-service", g, DefaultBreakerSettings), g.Close, nil
	}

	return DisabledGraph{}, noopClose, nil
}

// NewMemoryGateway builds the memory client behind a circuit breaker.
// Without credentials the gateway is disabled.
func NewMemoryGateway(cfg *config.Config) MemoryGateway {
	if !cfg.MemoryEnabled() {
		logger.Get().Info("Memory gateway disabled")
		return DisabledMemory{}
	}
	client := NewSupermemoryClient(cfg.SupermemoryAPIURL, cfg.SupermemoryAPIKey, cfg.GatewayTimeout)
	return NewBreakerMemory("memory-service", client, DefaultBreakerSettings)
}
