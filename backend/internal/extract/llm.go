package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"fractional-quest/backend/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const extractionPrompt = `You read conversation transcripts between a career assistant and a user looking for fractional or part-time executive work. Extract only the preferences the user explicitly states about themselves, not what they are being shown.

Categories:
- role: roles they want (e.g. "CFO", "CMO", "Finance Director")
- industry: industries they are interested in (e.g. "fintech", "healthcare")
- location: where they want to work (e.g. "London", "remote", "UK")
- availability: days per week they can work (e.g. "2 days/week")
- day_rate: rate expectations (e.g. "£800/day")
- skill: skills they say they have (e.g. "Series A fundraising")

Reply with one JSON object and nothing else:
{"preferences":[{"type":"role|industry|location|availability|day_rate|skill","values":["..."],"confidence":"high|medium|low","raw_text":"exact quote"}],"should_confirm":true}

Return an empty preferences array if nothing clear was stated.`

// LLMExtractor asks an OpenAI-compatible chat endpoint to extract
// preferences. Any failure falls back to the pattern extractor.
type LLMExtractor struct {
	client   *openai.Client
	model    string
	mu       sync.RWMutex
	fallback Extractor
	logger   *zap.Logger
}

// NewLLMExtractor creates an extractor for an OpenAI-compatible endpoint.
// An empty baseURL uses the OpenAI default.
func NewLLMExtractor(baseURL, apiKey, model string) *LLMExtractor {
	// Local gateways accept any key
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &LLMExtractor{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		fallback: PatternExtractor{},
		logger:   logger.Named("extract"),
	}
}

// SetModel switches the model used for later calls
func (e *LLMExtractor) SetModel(model string) {
	if model == "" {
		return
	}
	e.mu.Lock()
	e.model = model
	e.mu.Unlock()
}

// Model returns the current model
func (e *LLMExtractor) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// Extract never fails; model errors and unparseable replies use the fallback
func (e *LLMExtractor) Extract(ctx context.Context, transcript string) (*Result, error) {
	model := e.Model()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Transcript:\n" + transcript},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Warn("LLM extraction failed, using patterns",
			zap.String("model", model),
			zap.Error(err),
		)
		return e.fallback.Extract(ctx, transcript)
	}
	if len(resp.Choices) == 0 {
		e.logger.Warn("LLM extraction returned no choices, using patterns", zap.String("model", model))
		return e.fallback.Extract(ctx, transcript)
	}

	res, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Warn("LLM extraction reply unparseable, using patterns",
			zap.String("model", model),
			zap.Error(err),
		)
		return e.fallback.Extract(ctx, transcript)
	}

	e.logger.Debug("LLM extraction complete",
		zap.String("model", model),
		zap.Int("preferences", len(res.Preferences)),
	)
	return res, nil
}

// parseResult reads the first JSON object in content, tolerating prose or
// code fences around it
func parseResult(content string) (*Result, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var res Result
	if err := json.Unmarshal([]byte(content[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("failed to parse reply: %w", err)
	}
	return res.finalize(), nil
}
