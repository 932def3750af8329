package memory

import (
	"context"
	"errors"
	"testing"

	"fractional-quest/backend/internal/extract"
	"fractional-quest/backend/internal/gateway"
	apperrors "fractional-quest/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedMemory struct {
	text     string
	metadata map[string]interface{}
}

type fakeMemory struct {
	gateway.DisabledMemory
	stored []storedMemory
	err    error
}

func (f *fakeMemory) Store(ctx context.Context, userID, text string, metadata map[string]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, storedMemory{text: text, metadata: metadata})
	return nil
}

type fakeGraph struct {
	gateway.DisabledGraph
	ensured  int
	payloads []gateway.Payload
	err      error
}

func (f *fakeGraph) EnsureSubject(ctx context.Context, userID string, hints map[string]string) error {
	f.ensured++
	return nil
}

func (f *fakeGraph) Append(ctx context.Context, userID string, payload gateway.Payload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type fixedExtractor struct {
	res *extract.Result
	err error
}

func (f fixedExtractor) Extract(ctx context.Context, transcript string) (*extract.Result, error) {
	return f.res, f.err
}

const transcript = "I'm a CFO looking at fintech roles in London, ideally 2 days a week."

func TestRecord(t *testing.T) {
	mem := &fakeMemory{}
	g := &fakeGraph{}
	r := NewRecorder(mem, g, extract.PatternExtractor{})

	rec, err := r.Record(context.Background(), "u1", transcript, map[string]interface{}{"session": "s1"})
	require.NoError(t, err)

	assert.True(t, rec.Saved)
	assert.Equal(t, len(transcript), rec.TranscriptLength)
	assert.Equal(t, []string{"CFO"}, rec.Extracted.Values(extract.TypeRole))

	require.Len(t, mem.stored, 5)
	assert.Equal(t, transcript, mem.stored[0].text)
	assert.Equal(t, "conversation", mem.stored[0].metadata["type"])
	assert.Equal(t, "s1", mem.stored[0].metadata["session"])
	assert.Equal(t, "Roles of interest: CFO", mem.stored[1].text)
	assert.Equal(t, "Availability: 2 days/week", mem.stored[4].text)
	convID := mem.stored[0].metadata["conversation_id"]
	assert.NotEmpty(t, convID)
	assert.Equal(t, convID, mem.stored[4].metadata["conversation_id"])

	assert.Equal(t, 1, g.ensured)
	require.Len(t, g.payloads, 4)
	assert.Equal(t, 4, rec.GraphFacts)
	assert.Equal(t, gateway.PayloadJobPreferences, g.payloads[0].Type)
	assert.Equal(t, "User mentioned role: CFO", g.payloads[0].Summary())
}

func TestRecord_KeepsCallerConversationID(t *testing.T) {
	mem := &fakeMemory{}
	r := NewRecorder(mem, nil, extract.PatternExtractor{})

	_, err := r.Record(context.Background(), "u1", transcript, map[string]interface{}{"conversation_id": "chat-9"})
	require.NoError(t, err)

	for _, m := range mem.stored {
		assert.Equal(t, "chat-9", m.metadata["conversation_id"])
	}
}

func TestRecord_TooShort(t *testing.T) {
	mem := &fakeMemory{}
	r := NewRecorder(mem, nil, nil)

	for _, text := range []string{"", "   hi there   ", "nineteen characters"} {
		rec, err := r.Record(context.Background(), "u1", text, nil)
		assert.ErrorIs(t, err, ErrTranscriptTooShort, text)
		require.NotNil(t, rec)
		assert.False(t, rec.Saved)
	}
	assert.Empty(t, mem.stored)

	_, err := r.Record(context.Background(), "u1", "twenty characters!!!", nil)
	assert.NoError(t, err)
}

func TestRecord_RequiresUser(t *testing.T) {
	r := NewRecorder(&fakeMemory{}, nil, nil)
	_, err := r.Record(context.Background(), " ", transcript, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInput))
}

func TestRecord_SkillsGoToSkillPayload(t *testing.T) {
	g := &fakeGraph{}
	r := NewRecorder(&fakeMemory{}, g, fixedExtractor{res: &extract.Result{Preferences: []extract.Preference{
		{Type: extract.TypeSkill, Values: []string{"M&A", "Fundraising"}, Confidence: extract.ConfidenceHigh},
	}}})

	_, err := r.Record(context.Background(), "u1", transcript, nil)
	require.NoError(t, err)

	require.Len(t, g.payloads, 1)
	assert.Equal(t, gateway.PayloadSkillAdded, g.payloads[0].Type)
	assert.Equal(t, []string{"M&A", "Fundraising"}, g.payloads[0].Values())
}

func TestRecord_MemoryFailureFails(t *testing.T) {
	g := &fakeGraph{}
	r := NewRecorder(&fakeMemory{err: apperrors.NewSourceUnavailable("supermemory", errors.New("503"))}, g, nil)

	rec, err := r.Record(context.Background(), "u1", transcript, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSource))
	require.NotNil(t, rec)
	assert.False(t, rec.Saved)
	assert.Empty(t, g.payloads)
}

func TestRecord_GraphFailureReturnedWithRecording(t *testing.T) {
	mem := &fakeMemory{}
	r := NewRecorder(mem, &fakeGraph{err: errors.New("graph down")}, nil)

	rec, err := r.Record(context.Background(), "u1", transcript, nil)
	assert.ErrorContains(t, err, "graph down")
	require.NotNil(t, rec)
	assert.True(t, rec.Saved)
	assert.Zero(t, rec.GraphFacts)
	assert.NotEmpty(t, mem.stored)
}

func TestRecord_DisabledServices(t *testing.T) {
	r := NewRecorder(gateway.DisabledMemory{}, gateway.DisabledGraph{}, nil)

	rec, err := r.Record(context.Background(), "u1", transcript, nil)
	require.NoError(t, err)
	assert.False(t, rec.Saved)
	assert.False(t, rec.Extracted.IsEmpty())
}

func TestRecord_ExtractorErrorStillStores(t *testing.T) {
	mem := &fakeMemory{}
	g := &fakeGraph{}
	r := NewRecorder(mem, g, fixedExtractor{err: errors.New("nope")})

	rec, err := r.Record(context.Background(), "u1", transcript, nil)
	require.NoError(t, err)
	assert.True(t, rec.Saved)
	assert.Len(t, mem.stored, 1)
	assert.Zero(t, g.ensured)
}
