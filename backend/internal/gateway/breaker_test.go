package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "fractional-quest/backend/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMemory struct {
	calls int
	err   error
}

func (c *countingMemory) Store(context.Context, string, string, map[string]interface{}) error {
	c.calls++
	return c.err
}

func (c *countingMemory) Search(context.Context, string, string, int) ([]Snippet, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []Snippet{{ID: "1", Content: "hello"}}, nil
}

func TestBreakerMemory_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &countingMemory{err: apperrors.NewSourceUnavailable("supermemory", errors.New("boom"))}
	b := NewBreakerMemory("memory-service", inner, BreakerSettings{ConsecutiveFailures: 2, OpenFor: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := b.Search(context.Background(), "u", "q", 1)
		require.Error(t, err)
	}
	assert.Equal(t, 2, inner.calls)

	_, err := b.Search(context.Background(), "u", "q", 1)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the service")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSource))
	assert.Equal(t, "open", b.State())
}

func TestBreakerMemory_DisabledDoesNotTrip(t *testing.T) {
	inner := &countingMemory{err: apperrors.ErrSourceDisabled}
	b := NewBreakerMemory("memory-service", inner, BreakerSettings{ConsecutiveFailures: 1, OpenFor: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := b.Search(context.Background(), "u", "q", 1)
		assert.True(t, apperrors.IsDisabled(err))
	}
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerMemory_PassesResults(t *testing.T) {
	b := NewBreakerMemory("memory-service", &countingMemory{}, DefaultBreakerSettings)
	snippets, err := b.Search(context.Background(), "u", "q", 1)
	require.NoError(t, err)
	assert.Len(t, snippets, 1)
}

func TestBreakerGraph_WrapsDisabled(t *testing.T) {
	b := NewBreakerGraph("graph-service", DisabledGraph{}, DefaultBreakerSettings)
	_, err := b.Query(context.Background(), "u", "q", 1)
	assert.True(t, apperrors.IsDisabled(err))
	assert.True(t, apperrors.IsDisabled(b.Append(context.Background(), "u", Payload{Type: PayloadSkillAdded})))
	assert.Equal(t, "closed", b.State())
}

func TestSourceState(t *testing.T) {
	assert.Equal(t, "disabled", SourceState(DisabledGraph{}))
	assert.Equal(t, "disabled", SourceState(DisabledMemory{}))
	assert.Equal(t, "disabled", SourceState(nil))
	assert.Equal(t, "unknown", SourceState(&countingMemory{}))

	inner := &countingMemory{err: apperrors.NewSourceUnavailable("supermemory", errors.New("boom"))}
	b := NewBreakerMemory("memory-service", inner, BreakerSettings{ConsecutiveFailures: 1, OpenFor: time.Minute})
	assert.Equal(t, "closed", SourceState(b))
	_, _ = b.Search(context.Background(), "u", "q", 1)
	assert.Equal(t, "open", SourceState(b))
}
