// Package gateway isolates the external knowledge-graph and memory services.
// Gateways never retry: each call either succeeds or surfaces its error so
// the caller can decide. An unconfigured gateway returns
// errors.ErrSourceDisabled from every operation.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Payload type discriminators written to the graph service
const (
	PayloadProfessionalProfile = "professional_profile"
	PayloadWorkHistory         = "work_history"
	PayloadJobPreferences      = "job_preferences"
	PayloadSkillAdded          = "skill_added"
)

// GraphGateway is the temporal knowledge-graph service boundary
type GraphGateway interface {
	// EnsureSubject creates the user's subject if missing; safe to repeat
	EnsureSubject(ctx context.Context, userID string, hints map[string]string) error
	// Append writes one new fact; nothing is ever updated or deleted
	Append(ctx context.Context, userID string, payload Payload) error
	// Query returns nodes and edges relevant to text, best first
	Query(ctx context.Context, userID, text string, limit int) (*GraphResult, error)
}

// MemoryGateway is the semantic memory service boundary
type MemoryGateway interface {
	Store(ctx context.Context, userID, text string, metadata map[string]interface{}) error
	// Search returns an empty slice, not an error, when the user has no memories
	Search(ctx context.Context, userID, query string, limit int) ([]Snippet, error)
}

// Payload is a typed fact document
type Payload struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// MarshalData flattens the payload into the JSON document sent to the service
func (p Payload) MarshalData() (string, error) {
	doc := make(map[string]interface{}, len(p.Data)+1)
	for k, v := range p.Data {
		doc[k] = v
	}
	doc["type"] = p.Type
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(b), nil
}

// Values returns the payload's "values" list as strings
func (p Payload) Values() []string {
	switch v := p.Data["values"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// Subject names what the fact is about. Two facts of the same type and
// subject describe the same thing, and the newer one supersedes the older.
func (p Payload) Subject() string {
	for _, key := range []string{"field", "preference_type", "subject"} {
		if s, ok := p.Data[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Summary renders the fact as one readable sentence
func (p Payload) Summary() string {
	if s, ok := p.Data["context"].(string); ok && s != "" {
		return s
	}
	if vals := p.Values(); len(vals) > 0 {
		label := strings.ReplaceAll(p.Type, "_", " ")
		if subj := p.Subject(); subj != "" {
			label = strings.ReplaceAll(subj, "_", " ")
		}
		return fmt.Sprintf("User %s: %s", label, strings.Join(vals, ", "))
	}

	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p.Data[k]))
	}
	return fmt.Sprintf("%s: %s", p.Type, strings.Join(parts, ", "))
}

// GraphNode is an entity returned by the graph service
type GraphNode struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Labels    []string  `json:"labels,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Score     float64   `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// HasLabel reports whether any label contains one of the given words
func (n GraphNode) HasLabel(words ...string) bool {
	for _, l := range n.Labels {
		lower := strings.ToLower(l)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

// GraphEdge is a relationship returned by the graph service. Fact carries
// the asserted sentence; InvalidAt is set once a newer fact superseded it.
type GraphEdge struct {
	UUID       string     `json:"uuid"`
	SourceUUID string     `json:"source_node_uuid"`
	TargetUUID string     `json:"target_node_uuid"`
	Name       string     `json:"name"`
	Fact       string     `json:"fact"`
	Score      float64    `json:"score,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
	InvalidAt  *time.Time `json:"invalid_at,omitempty"`
}

// GraphResult is a ranked retrieval result
type GraphResult struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Snippet is a ranked piece of remembered conversation
type Snippet struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Score     float64                `json:"score"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt *time.Time             `json:"createdAt,omitempty"`
}
