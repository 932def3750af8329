// Package extract finds career preferences in conversation transcripts.
package extract

import (
	"context"
	"strings"

	"fractional-quest/backend/pkg/config"
)

// Preference types
const (
	TypeRole         = "role"
	TypeIndustry     = "industry"
	TypeLocation     = "location"
	TypeAvailability = "availability"
	TypeDayRate      = "day_rate"
	TypeSkill        = "skill"
)

// Confidence levels
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Preference is one kind of preference heard in a transcript
type Preference struct {
	Type       string   `json:"type"`
	Values     []string `json:"values"`
	Confidence string   `json:"confidence"`
	RawText    string   `json:"raw_text"`
}

// Result is everything extracted from one transcript
type Result struct {
	Preferences []Preference `json:"preferences"`
	// ShouldConfirm is set when at least one preference is high confidence
	ShouldConfirm bool `json:"should_confirm"`
}

// Extractor turns a transcript into preferences
type Extractor interface {
	Extract(ctx context.Context, transcript string) (*Result, error)
}

// New returns the LLM extractor when an endpoint is configured and the
// pattern extractor otherwise
func New(cfg *config.Config) Extractor {
	if cfg != nil && cfg.LLMEnabled() {
		return NewLLMExtractor(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	}
	return PatternExtractor{}
}

// Values returns the values of every preference of the given type
func (r *Result) Values(prefType string) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, p := range r.Preferences {
		if p.Type == prefType {
			out = append(out, p.Values...)
		}
	}
	return out
}

// IsEmpty reports whether nothing was extracted
func (r *Result) IsEmpty() bool {
	return r == nil || len(r.Preferences) == 0
}

// finalize drops unusable preferences and recomputes ShouldConfirm
func (r *Result) finalize() *Result {
	kept := make([]Preference, 0, len(r.Preferences))
	for _, p := range r.Preferences {
		if !knownType(p.Type) {
			continue
		}
		p.Values = dedupe(p.Values)
		if len(p.Values) == 0 {
			continue
		}
		switch p.Confidence {
		case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		default:
			p.Confidence = ConfidenceLow
		}
		kept = append(kept, p)
	}
	r.Preferences = kept

	r.ShouldConfirm = false
	for _, p := range kept {
		if p.Confidence == ConfidenceHigh {
			r.ShouldConfirm = true
			break
		}
	}
	return r
}

func knownType(t string) bool {
	switch t {
	case TypeRole, TypeIndustry, TypeLocation, TypeAvailability, TypeDayRate, TypeSkill:
		return true
	}
	return false
}

// dedupe trims values and keeps the first of each, ignoring case
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// excerpt returns at most n runes of s
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
