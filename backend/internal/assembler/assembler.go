// Package assembler builds the context string handed to the voice assistant
// from the relational store, the graph service and the memory service.
package assembler

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"fractional-quest/backend/internal/constants"
	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/graph"
	"fractional-quest/backend/internal/observability"
	"fractional-quest/backend/internal/relational"
	apperrors "fractional-quest/backend/pkg/errors"
	"fractional-quest/backend/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FactReader reads the authoritative facts for a user
type FactReader interface {
	UserFacts(ctx context.Context, userID string) (graph.Facts, error)
}

// Source status values reported in Stats.Sources
const (
	StatusOK       = "ok"
	StatusEmpty    = "empty"
	StatusDisabled = "disabled"
	StatusTimeout  = "timeout"
	StatusError    = "error"
)

// Stats describes how one context string was built
type Stats struct {
	// Fragments in the final context, per origin
	Relational    int `json:"relational"`
	GraphService  int `json:"graph_service"`
	MemoryService int `json:"memory_service"`
	// Dropped counts fragments fully absorbed by more authoritative ones
	Dropped int `json:"dropped"`
	// Truncated counts fragments removed to fit the budget
	Truncated int                     `json:"truncated"`
	Chars     int                     `json:"chars"`
	Sources   map[graph.Origin]string `json:"sources"`
}

// Result is an assembled context. An empty Context means nothing is known.
type Result struct {
	Context   string           `json:"context"`
	Stats     Stats            `json:"stats"`
	Fragments []graph.Fragment `json:"-"`
}

// Options tunes an Assembler
type Options struct {
	// Budget caps the context length in characters
	Budget int
	// Timeout bounds each source fetch independently
	Timeout     time.Duration
	GraphLimit  int
	MemoryLimit int
}

// Assembler fans out to every source and merges what comes back
type Assembler struct {
	facts   FactReader
	graph   gateway.GraphGateway
	memory  gateway.MemoryGateway
	opts    Options
	metrics *observability.Collector
	logger  *zap.Logger
}

// New creates an assembler. Zero options fall back to defaults.
func New(facts FactReader, g gateway.GraphGateway, m gateway.MemoryGateway, opts Options, metrics *observability.Collector) *Assembler {
	if opts.Budget == 0 {
		opts.Budget = constants.DefaultContextCharBudget
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultGatewayTimeout
	}
	if opts.GraphLimit <= 0 {
		opts.GraphLimit = constants.GraphSearchLimit
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = constants.MemorySearchLimit
	}
	if g == nil {
		g = gateway.DisabledGraph{}
	}
	if m == nil {
		m = gateway.DisabledMemory{}
	}
	return &Assembler{
		facts:   facts,
		graph:   g,
		memory:  m,
		opts:    opts,
		metrics: metrics,
		logger:  logger.Named("assembler"),
	}
}

// Assemble builds the context for a user. It fails only when the relational
// store cannot be read for a reason other than the user being unknown, or
// when ctx itself is done. Every other source failure yields an empty
// contribution from that source.
func (a *Assembler) Assemble(ctx context.Context, userID, queryHint string) (*Result, error) {
	start := time.Now()
	defer func() { a.metrics.RecordAssembly(time.Since(start)) }()

	if strings.TrimSpace(queryHint) == "" {
		queryHint = constants.DefaultQueryHint
	}

	var (
		relFrags, graphFrags, memFrags    []graph.Fragment
		relErr                            error
		relStatus, graphStatus, memStatus string
	)

	// Goroutines never return errors: every source must settle before we go on
	var g errgroup.Group

	g.Go(func() error {
		defer a.recoverSource(graph.OriginRelational, userID, &relStatus, &relErr)
		fctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()

		facts, err := a.facts.UserFacts(fctx, userID)
		switch {
		case stderrors.Is(err, relational.ErrUserNotFound):
			relStatus = StatusEmpty
		case err != nil:
			relStatus = a.failure(graph.OriginRelational, userID, err)
			relErr = err
		default:
			relFrags = graph.ToFragments(graph.BuildGraph(userID, facts), graph.OriginRelational)
			relStatus = status(len(relFrags))
		}
		return nil
	})

	g.Go(func() error {
		defer a.recoverSource(graph.OriginGraphService, userID, &graphStatus, nil)
		fctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()

		res, err := a.graph.Query(fctx, userID, queryHint, a.opts.GraphLimit)
		if err != nil {
			graphStatus = a.failure(graph.OriginGraphService, userID, err)
			return nil
		}
		graphFrags = graphFragments(res)
		graphStatus = status(len(graphFrags))
		return nil
	})

	g.Go(func() error {
		defer a.recoverSource(graph.OriginMemoryService, userID, &memStatus, nil)
		fctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()

		snippets, err := a.memory.Search(fctx, userID, queryHint, a.opts.MemoryLimit)
		if err != nil {
			memStatus = a.failure(graph.OriginMemoryService, userID, err)
			return nil
		}
		memFrags = memoryFragments(snippets)
		memStatus = status(len(memFrags))
		return nil
	})

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if relErr != nil {
		if apperrors.IsErrorType(relErr, apperrors.ErrorTypeStore) {
			return nil, relErr
		}
		return nil, apperrors.NewStoreUnavailable("user facts", relErr)
	}

	all := make([]graph.Fragment, 0, len(relFrags)+len(graphFrags)+len(memFrags))
	all = append(all, relFrags...)
	all = append(all, graphFrags...)
	all = append(all, memFrags...)

	merged, dropped := merge(all)
	text, kept, truncated := fitBudget(merged, a.opts.Budget)

	stats := Stats{
		Dropped:   dropped,
		Truncated: truncated,
		Chars:     len([]rune(text)),
		Sources: map[graph.Origin]string{
			graph.OriginRelational:    relStatus,
			graph.OriginGraphService:  graphStatus,
			graph.OriginMemoryService: memStatus,
		},
	}
	for _, f := range kept {
		switch f.Origin {
		case graph.OriginRelational:
			stats.Relational++
		case graph.OriginGraphService:
			stats.GraphService++
		case graph.OriginMemoryService:
			stats.MemoryService++
		}
	}
	a.metrics.RecordFragments(string(graph.OriginRelational), stats.Relational)
	a.metrics.RecordFragments(string(graph.OriginGraphService), stats.GraphService)
	a.metrics.RecordFragments(string(graph.OriginMemoryService), stats.MemoryService)

	a.logger.Debug("Context assembled",
		zap.String("user_id", userID),
		zap.Int("relational", stats.Relational),
		zap.Int("graph_service", stats.GraphService),
		zap.Int("memory_service", stats.MemoryService),
		zap.Int("dropped", dropped),
		zap.Int("truncated", truncated),
		zap.Duration("latency", time.Since(start)),
	)

	return &Result{Context: text, Stats: stats, Fragments: kept}, nil
}

// recoverSource turns a panicking fetch into a failed source. It must be
// deferred directly by the fetch goroutine.
func (a *Assembler) recoverSource(origin graph.Origin, userID string, status *string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("panic: %v", r)
	*status = a.failure(origin, userID, err)
	if errp != nil {
		*errp = err
	}
}

// failure logs and counts a source failure and returns its status
func (a *Assembler) failure(origin graph.Origin, userID string, err error) string {
	if apperrors.IsDisabled(err) {
		return StatusDisabled
	}
	timedOut := stderrors.Is(err, context.DeadlineExceeded)
	if timedOut {
		err = apperrors.NewContextTimeout(string(origin), a.opts.Timeout, err)
	}
	a.metrics.RecordSourceFailure(string(origin))
	a.logger.Warn("Context source failed",
		zap.String("origin", string(origin)),
		zap.String("user_id", userID),
		zap.Bool("retryable", apperrors.IsRetryable(err)),
		zap.Error(err),
	)
	if timedOut {
		return StatusTimeout
	}
	return StatusError
}

func status(n int) string {
	if n == 0 {
		return StatusEmpty
	}
	return StatusOK
}
