// Package server exposes context assembly, tool dispatch and conversation
// recording over HTTP.
package server

import (
	"context"
	"net/http"

	"fractional-quest/backend/internal/assembler"
	"fractional-quest/backend/internal/extract"
	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/memory"
	"fractional-quest/backend/internal/observability"
	"fractional-quest/backend/internal/tools"
	"fractional-quest/backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextAssembler builds the assistant context for a user
type ContextAssembler interface {
	Assemble(ctx context.Context, userID, queryHint string) (*assembler.Result, error)
}

// ToolDispatcher answers tool calls
type ToolDispatcher interface {
	Dispatch(ctx context.Context, call tools.ToolCall) tools.ToolResponse
}

// TranscriptRecorder stores finished conversations
type TranscriptRecorder interface {
	Record(ctx context.Context, userID, transcript string, metadata map[string]interface{}) (*memory.Recording, error)
}

// PreferenceStore persists confirmed preferences in the system of record
type PreferenceStore interface {
	SavePreference(ctx context.Context, userID, prefType string, values []string) error
}

// Deps are the services the routes call
type Deps struct {
	Assembler   ContextAssembler
	Dispatcher  ToolDispatcher
	Recorder    TranscriptRecorder
	Extractor   extract.Extractor
	Graph       gateway.GraphGateway
	Facts       assembler.FactReader
	Preferences PreferenceStore
	Metrics     *observability.Collector
	// Ready reports whether the system of record is reachable; nil means always ready
	Ready func(ctx context.Context) error
	// Sources reports each external source's state by origin
	Sources func() map[string]string
}

// Server holds the HTTP handlers
type Server struct {
	deps   Deps
	logger *zap.Logger
}

// NewRouter builds the gin engine with every route registered
func NewRouter(deps Deps) *gin.Engine {
	if deps.Graph == nil {
		deps.Graph = gateway.DisabledGraph{}
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.PatternExtractor{}
	}

	s := &Server{deps: deps, logger: logger.Named("server")}

	router := gin.New()
	router.Use(ginLogger(s.logger))
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware(deps.Metrics))
	router.Use(cors())

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := router.Group("/api")
	{
		api.POST("/hume-tool", s.humeTool)
		api.GET("/hume-tool", s.listTools)

		api.GET("/context", s.assembleContext)

		api.POST("/memory/save", s.saveMemory)
		api.POST("/extract-preferences", s.extractPreferences)

		api.POST("/graph/preference", s.graphPreference)
		api.GET("/graph/user", s.graphUser)
	}

	return router
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.deps.Sources != nil {
		sources := s.deps.Sources()
		for _, state := range sources {
			if state == "open" {
				resp["status"] = "degraded"
			}
		}
		resp["sources"] = sources
	}

	if s.deps.Ready != nil {
		if err := s.deps.Ready(c.Request.Context()); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			resp["status"] = "degraded"
			resp["error"] = "database unreachable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}
