// Package memory records finished conversations: the transcript goes to the
// memory service and any preferences heard in it go to the graph service.
package memory

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"fractional-quest/backend/internal/constants"
	"fractional-quest/backend/internal/extract"
	"fractional-quest/backend/internal/gateway"
	apperrors "fractional-quest/backend/pkg/errors"
	"fractional-quest/backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTranscriptTooShort is returned for transcripts not worth storing
var ErrTranscriptTooShort = stderrors.New("transcript too short")

// Recording describes what happened to one transcript
type Recording struct {
	Saved            bool            `json:"saved"`
	TranscriptLength int             `json:"transcriptLength"`
	Extracted        *extract.Result `json:"extracted"`
	// GraphFacts counts payloads appended to the graph service
	GraphFacts int `json:"graphFacts"`
}

// tagLabels prefixes the per-type memories stored next to a transcript
var tagLabels = map[string]string{
	extract.TypeRole:         "Roles of interest",
	extract.TypeIndustry:     "Industries of interest",
	extract.TypeLocation:     "Preferred locations",
	extract.TypeAvailability: "Availability",
	extract.TypeDayRate:      "Day rate expectation",
	extract.TypeSkill:        "Skills mentioned",
}

// Recorder stores transcripts and the preferences extracted from them
type Recorder struct {
	memory    gateway.MemoryGateway
	graph     gateway.GraphGateway
	extractor extract.Extractor
	logger    *zap.Logger
}

// NewRecorder creates a recorder. Nil gateways are treated as disabled.
func NewRecorder(m gateway.MemoryGateway, g gateway.GraphGateway, e extract.Extractor) *Recorder {
	if m == nil {
		m = gateway.DisabledMemory{}
	}
	if g == nil {
		g = gateway.DisabledGraph{}
	}
	if e == nil {
		e = extract.PatternExtractor{}
	}
	return &Recorder{
		memory:    m,
		graph:     g,
		extractor: e,
		logger:    logger.Named("memory"),
	}
}

// Record stores a transcript for a user. Transcripts shorter than the
// minimum are rejected with ErrTranscriptTooShort. A memory service failure
// fails the recording; graph failures are returned alongside a saved
// recording. Disabled services are skipped.
func (r *Recorder) Record(ctx context.Context, userID, transcript string, metadata map[string]interface{}) (*Recording, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewMalformedInput("userId", "required", nil)
	}
	trimmed := strings.TrimSpace(transcript)
	if len([]rune(trimmed)) < constants.MinTranscriptLength {
		return &Recording{TranscriptLength: len(transcript)}, ErrTranscriptTooShort
	}

	extracted, err := r.extractor.Extract(ctx, trimmed)
	if err != nil {
		r.logger.Warn("Preference extraction failed", zap.String("user_id", userID), zap.Error(err))
		extracted = &extract.Result{Preferences: []extract.Preference{}}
	}

	rec := &Recording{TranscriptLength: len(transcript), Extracted: extracted}

	if err := r.storeMemories(ctx, userID, trimmed, metadata, extracted); err != nil {
		if apperrors.IsDisabled(err) {
			r.logger.Debug("Memory service disabled, transcript not stored", zap.String("user_id", userID))
		} else {
			return rec, err
		}
	} else {
		rec.Saved = true
	}

	appended, graphErr := r.appendFacts(ctx, userID, extracted)
	rec.GraphFacts = appended
	if appended > 0 {
		rec.Saved = true
	}

	r.logger.Info("Conversation recorded",
		zap.String("user_id", userID),
		zap.Int("transcript_length", rec.TranscriptLength),
		zap.Int("preferences", len(extracted.Preferences)),
		zap.Int("graph_facts", appended),
		zap.Bool("saved", rec.Saved),
	)
	return rec, graphErr
}

// storeMemories writes the transcript and then one memory per extracted type
func (r *Recorder) storeMemories(ctx context.Context, userID, transcript string, metadata map[string]interface{}, extracted *extract.Result) error {
	meta := make(map[string]interface{}, len(metadata)+3)
	for k, v := range metadata {
		meta[k] = v
	}
	conversationID, ok := meta["conversation_id"].(string)
	if !ok || conversationID == "" {
		conversationID = uuid.New().String()
	}
	meta["conversation_id"] = conversationID
	meta["type"] = "conversation"
	if !extracted.IsEmpty() {
		meta["extracted"] = extracted.Preferences
	}

	if err := r.memory.Store(ctx, userID, transcript, meta); err != nil {
		return err
	}

	for _, p := range extracted.Preferences {
		text := fmt.Sprintf("%s: %s", tagLabels[p.Type], strings.Join(p.Values, ", "))
		if err := r.memory.Store(ctx, userID, text, map[string]interface{}{
			"type":            p.Type,
			"conversation_id": conversationID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// appendFacts mirrors extracted preferences into the graph service
func (r *Recorder) appendFacts(ctx context.Context, userID string, extracted *extract.Result) (int, error) {
	if extracted.IsEmpty() {
		return 0, nil
	}

	if err := r.graph.EnsureSubject(ctx, userID, nil); err != nil {
		if apperrors.IsDisabled(err) {
			return 0, nil
		}
		return 0, err
	}

	var (
		appended int
		errs     []error
	)
	for _, p := range extracted.Preferences {
		if err := r.graph.Append(ctx, userID, payloadFor(p)); err != nil {
			r.logger.Warn("Failed to append preference to graph",
				zap.String("user_id", userID),
				zap.String("type", p.Type),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		appended++
	}
	return appended, stderrors.Join(errs...)
}

// payloadFor maps an extracted preference to a graph payload
func payloadFor(p extract.Preference) gateway.Payload {
	if p.Type == extract.TypeSkill {
		return gateway.Payload{
			Type: gateway.PayloadSkillAdded,
			Data: map[string]interface{}{
				"values":     p.Values,
				"context":    "User mentioned skills: " + strings.Join(p.Values, ", "),
				"confidence": p.Confidence,
				"source":     "conversation",
			},
		}
	}
	return gateway.Payload{
		Type: gateway.PayloadJobPreferences,
		Data: map[string]interface{}{
			"preference_type": p.Type,
			"values":          p.Values,
			"context":         fmt.Sprintf("User mentioned %s: %s", p.Type, strings.Join(p.Values, ", ")),
			"confidence":      p.Confidence,
			"raw_text":        p.RawText,
			"source":          "conversation",
		},
	}
}
