package gateway

import (
	"context"
	stderrors "errors"
	"time"

	apperrors "fractional-quest/backend/pkg/errors"
	"fractional-quest/backend/pkg/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tunes when a failing source is tripped
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32
	// OpenFor is how long calls fail fast before a trial call is let through
	OpenFor time.Duration
}

// DefaultBreakerSettings trips after five straight failures for thirty seconds
var DefaultBreakerSettings = BreakerSettings{
	ConsecutiveFailures: 5,
	OpenFor:             30 * time.Second,
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	log := logger.Named("breaker")
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// Only the service's own failures count against it
			return err == nil ||
				apperrors.IsDisabled(err) ||
				apperrors.IsErrorType(err, apperrors.ErrorTypeInput) ||
				stderrors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// breakerErr maps a tripped breaker to a source failure
func breakerErr(name string, err error) error {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewSourceUnavailable(name, err)
	}
	return err
}

// BreakerGraph fails fast while the wrapped graph gateway keeps failing
type BreakerGraph struct {
	inner GraphGateway
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerGraph wraps a graph gateway with a circuit breaker
func NewBreakerGraph(name string, inner GraphGateway, s BreakerSettings) *BreakerGraph {
	return &BreakerGraph{inner: inner, cb: newBreaker(name, s)}
}

func (b *BreakerGraph) EnsureSubject(ctx context.Context, userID string, hints map[string]string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.EnsureSubject(ctx, userID, hints)
	})
	return breakerErr(b.cb.Name(), err)
}

func (b *BreakerGraph) Append(ctx context.Context, userID string, payload Payload) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Append(ctx, userID, payload)
	})
	return breakerErr(b.cb.Name(), err)
}

func (b *BreakerGraph) Query(ctx context.Context, userID, text string, limit int) (*GraphResult, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Query(ctx, userID, text, limit)
	})
	if err != nil {
		return nil, breakerErr(b.cb.Name(), err)
	}
	return res.(*GraphResult), nil
}

// State reports the breaker state: closed, half-open or open
func (b *BreakerGraph) State() string {
	return b.cb.State().String()
}

// BreakerMemory fails fast while the wrapped memory gateway keeps failing
type BreakerMemory struct {
	inner MemoryGateway
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerMemory wraps a memory gateway with a circuit breaker
func NewBreakerMemory(name string, inner MemoryGateway, s BreakerSettings) *BreakerMemory {
	return &BreakerMemory{inner: inner, cb: newBreaker(name, s)}
}

func (b *BreakerMemory) Store(ctx context.Context, userID, text string, metadata map[string]interface{}) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Store(ctx, userID, text, metadata)
	})
	return breakerErr(b.cb.Name(), err)
}

func (b *BreakerMemory) Search(ctx context.Context, userID, query string, limit int) ([]Snippet, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Search(ctx, userID, query, limit)
	})
	if err != nil {
		return nil, breakerErr(b.cb.Name(), err)
	}
	return res.([]Snippet), nil
}

// State reports the breaker state: closed, half-open or open
func (b *BreakerMemory) State() string {
	return b.cb.State().String()
}

// SourceState describes a graph or memory gateway for health output:
// "disabled" without credentials, otherwise its breaker state.
func SourceState(g interface{}) string {
	switch v := g.(type) {
	case nil, DisabledGraph, DisabledMemory:
		return "disabled"
	case interface{ State() string }:
		return v.State()
	}
	return "unknown"
}
