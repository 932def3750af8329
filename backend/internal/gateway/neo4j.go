package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "fractional-quest/backend/pkg/errors"
	"fractional-quest/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Neo4jGraph is a self-hosted temporal graph. Facts are append-only nodes
// stamped with created_at; a newer fact with the same type and subject
// invalidates older ones at read time.
type Neo4jGraph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4jGraph creates a graph gateway over an open driver
func NewNeo4jGraph(driver neo4j.DriverWithContext) *Neo4jGraph {
	return &Neo4jGraph{
		driver: driver,
		logger: logger.Named("neo4j-graph"),
	}
}

// Close closes the Neo4j driver connection
func (n *Neo4jGraph) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

// schemaStatements are idempotent; each one is applied independently
var schemaStatements = []string{
	"CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
	"CREATE CONSTRAINT fact_id_unique IF NOT EXISTS FOR (f:Fact) REQUIRE f.id IS UNIQUE",
	"CREATE INDEX fact_type_subject IF NOT EXISTS FOR (f:Fact) ON (f.type, f.subject)",
	"CREATE INDEX fact_created_at IF NOT EXISTS FOR (f:Fact) ON (f.created_at)",
	"CREATE INDEX entity_user_name IF NOT EXISTS FOR (e:Entity) ON (e.user_id, e.name)",
}

// EnsureSchema creates the constraints and indexes the fact queries rely on.
// It returns how many statements were applied; failures are logged and skipped.
func (n *Neo4jGraph) EnsureSchema(ctx context.Context) (int, error) {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	applied := 0
	var lastErr error
	for _, stmt := range schemaStatements {
		result, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = result.Consume(ctx)
		}
		if err != nil {
			n.logger.Warn("Schema statement failed", zap.String("statement", stmt), zap.Error(err))
			lastErr = err
			continue
		}
		applied++
	}
	if applied == 0 && lastErr != nil {
		return 0, apperrors.NewSourceUnavailable("neo4j", fmt.Errorf("failed to apply schema: %w", lastErr))
	}
	return applied, nil
}

// EnsureSubject merges the user node and refreshes its hint properties
func (n *Neo4jGraph) EnsureSubject(ctx context.Context, userID string, hints map[string]string) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	props := make(map[string]interface{}, len(hints))
	for k, v := range hints {
		props[k] = v
	}

	query := `
		MERGE (u:User {id: $userID})
		ON CREATE SET u.created_at = datetime()
		SET u += $props
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID": userID,
		"props":  props,
	})
	if err != nil {
		return apperrors.NewSourceUnavailable("neo4j", fmt.Errorf("failed to merge user: %w", err))
	}
	if _, err := result.Consume(ctx); err != nil {
		return apperrors.NewSourceUnavailable("neo4j", fmt.Errorf("failed to merge user: %w", err))
	}
	return nil
}

// entityLabel maps a payload type to the label its values carry
func entityLabel(payloadType string) string {
	switch payloadType {
	case PayloadSkillAdded:
		return "Skill"
	case PayloadWorkHistory:
		return "Company"
	case PayloadJobPreferences:
		return "Preference"
	case PayloadProfessionalProfile:
		return "Profile"
	}
	if strings.HasPrefix(payloadType, "user_") {
		return "Preference"
	}
	return "Topic"
}

// Append creates a new Fact node and links every value it mentions
func (n *Neo4jGraph) Append(ctx context.Context, userID string, payload Payload) error {
	data, err := payload.MarshalData()
	if err != nil {
		return apperrors.NewMalformedInput("payload", "not serializable", err)
	}

	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	values := payload.Values()
	if values == nil {
		values = []string{}
	}

	query := `
		MERGE (u:User {id: $userID})
		ON CREATE SET u.created_at = datetime()
		CREATE (f:Fact {
			id: $factID,
			type: $type,
			subject: $subject,
			summary: $summary,
			data: $data,
			created_at: datetime()
		})
		CREATE (u)-[:ASSERTED]->(f)
		WITH f
		UNWIND $values AS value
		MERGE (e:Entity {user_id: $userID, name: value})
		ON CREATE SET e.id = randomUUID(), e.label = $label, e.created_at = datetime()
		CREATE (f)-[:MENTIONS]->(e)
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID":  userID,
		"factID":  uuid.New().String(),
		"type":    payload.Type,
		"subject": payload.Subject(),
		"summary": payload.Summary(),
		"data":    data,
		"values":  values,
		"label":   entityLabel(payload.Type),
	})
	if err != nil {
		return apperrors.NewSourceUnavailable("neo4j", fmt.Errorf("failed to append fact: %w", err))
	}
	if _, err := result.Consume(ctx); err != nil {
		return apperrors.NewSourceUnavailable("neo4j", fmt.Errorf("failed to append fact: %w", err))
	}

	n.logger.Debug("Appended fact",
		zap.String("user_id", userID),
		zap.String("type", payload.Type),
		zap.Int("values", len(values)),
	)
	return nil
}

// queryTerms splits free text into lowercase search terms
func queryTerms(text string) []string {
	terms := []string{}
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// Query ranks facts by how many query terms their summary contains, then
// by recency, and returns them as edges plus the entities they mention.
func (n *Neo4jGraph) Query(ctx context.Context, userID, text string, limit int) (*GraphResult, error) {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (u:User {id: $userID})-[:ASSERTED]->(f:Fact)
		WITH u, f, size([t IN $terms WHERE toLower(f.summary) CONTAINS t]) AS hits
		ORDER BY hits DESC, f.created_at DESC
		LIMIT $limit
		OPTIONAL MATCH (u)-[:ASSERTED]->(newer:Fact {type: f.type, subject: f.subject})
		WHERE f.subject <> "" AND newer.created_at > f.created_at
		WITH f, hits, min(newer.created_at) AS invalid_at
		OPTIONAL MATCH (f)-[:MENTIONS]->(e:Entity)
		RETURN f.id AS id,
			f.type AS type,
			f.summary AS summary,
			f.created_at AS created_at,
			invalid_at,
			hits,
			collect({id: e.id, name: e.name, label: e.label, created_at: e.created_at}) AS entities
		ORDER BY hits DESC, created_at DESC
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"userID": userID,
		"terms":  queryTerms(text),
		"limit":  limit,
	})
	if err != nil {
		return nil, apperrors.NewSourceUnavailable("neo4j", fmt.Errorf("failed to query facts: %w", err))
	}

	out := &GraphResult{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	seenNodes := map[string]bool{}
	for result.Next(ctx) {
		record := result.Record()

		edge := GraphEdge{
			UUID:       getStringFromRecord(record, "id"),
			SourceUUID: userID,
			Name:       strings.ToUpper(getStringFromRecord(record, "type")),
			Fact:       getStringFromRecord(record, "summary"),
			Score:      float64(getIntFromRecord(record, "hits")),
			CreatedAt:  getTimeFromRecord(record, "created_at"),
		}
		if invalid := getTimeFromRecord(record, "invalid_at"); !invalid.IsZero() {
			edge.InvalidAt = &invalid
		}

		entities, _ := record.Get("entities")
		list, _ := entities.([]interface{})
		for _, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			name := getStringFromMap(m, "name")
			id := getStringFromMap(m, "id")
			if name == "" {
				continue
			}
			if edge.TargetUUID == "" {
				edge.TargetUUID = id
			}
			if seenNodes[id] {
				continue
			}
			seenNodes[id] = true
			out.Nodes = append(out.Nodes, GraphNode{
				UUID:      id,
				Name:      name,
				Labels:    []string{getStringFromMap(m, "label")},
				CreatedAt: getTimeFromMap(m, "created_at"),
			})
		}

		out.Edges = append(out.Edges, edge)
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewSourceUnavailable("neo4j", fmt.Errorf("failed to read facts: %w", err))
	}

	return out, nil
}

// ============================================================================
// Record helpers
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	return 0
}

func getTimeFromRecord(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	// Neo4j datetime values come as time.Time
	if t, ok := val.(time.Time); ok {
		return t
	}
	return time.Time{}
}

func getStringFromMap(m map[string]interface{}, key string) string {
	if str, ok := m[key].(string); ok {
		return str
	}
	return ""
}

func getTimeFromMap(m map[string]interface{}, key string) time.Time {
	if t, ok := m[key].(time.Time); ok {
		return t
	}
	return time.Time{}
}
