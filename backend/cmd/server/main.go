package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fractional-quest/backend/internal/assembler"
	"fractional-quest/backend/internal/extract"
	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/memory"
	"fractional-quest/backend/internal/observability"
	"fractional-quest/backend/internal/relational"
	"fractional-quest/backend/internal/server"
	"fractional-quest/backend/internal/tools"
	"fractional-quest/backend/pkg/config"
	"fractional-quest/backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting context service...",
		zap.String("env", cfg.Env),
		zap.String("graph_backend", cfg.GraphBackend),
		zap.Bool("graph_enabled", cfg.GraphEnabled()),
		zap.Bool("memory_enabled", cfg.MemoryEnabled()),
		zap.Bool("llm_enabled", cfg.LLMEnabled()),
	)

	ctx := context.Background()

	// System of record
	store, err := relational.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	// External services
	graphGateway, closeGraph, err := gateway.NewGraphGateway(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to create graph gateway", zap.Error(err))
	}
	memoryGateway := gateway.NewMemoryGateway(cfg)

	metrics := observability.NewCollector("quest")
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, dispatcher := newRouter(cfg, store, graphGateway, memoryGateway, metrics)

	// Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let background graph writes finish before closing the graph driver
	dispatcher.Wait()
	if err := closeGraph(shutdownCtx); err != nil {
		log.Warn("Failed to close graph gateway", zap.Error(err))
	}

	log.Info("Server exited")
}

// systemOfRecord is everything the routes read from and write to the database
type systemOfRecord interface {
	assembler.FactReader
	tools.Catalogue
	tools.ProfileWriter
	server.PreferenceStore
	Ping(ctx context.Context) error
}

// newRouter wires the services onto one router. The dispatcher is returned
// so shutdown can wait for its background writes.
func newRouter(cfg *config.Config, db systemOfRecord, g gateway.GraphGateway, m gateway.MemoryGateway, metrics *observability.Collector) (*gin.Engine, *tools.Dispatcher) {
	asm := assembler.New(db, g, m, assembler.Options{
		Budget:  cfg.ContextCharBudget,
		Timeout: cfg.GatewayTimeout,
	}, metrics)
	dispatcher := tools.NewDispatcher(db, db, g, tools.Options{
		SiteBaseURL:   cfg.SiteBaseURL,
		AppendTimeout: cfg.GatewayTimeout,
	}, metrics)
	extractor := extract.New(cfg)

	router := server.NewRouter(server.Deps{
		Assembler:   asm,
		Dispatcher:  dispatcher,
		Recorder:    memory.NewRecorder(m, g, extractor),
		Extractor:   extractor,
		Graph:       g,
		Facts:       db,
		Preferences: db,
		Metrics:     metrics,
		Ready:       db.Ping,
		Sources: func() map[string]string {
			return map[string]string{
				"graph-service":  gateway.SourceState(g),
				"memory-service": gateway.SourceState(m),
			}
		},
	})
	return router, dispatcher
}
