package graph

import "time"

// ============================================================================
// Graph Types
// ============================================================================

// NodeKind selects how a node is rendered into text
type NodeKind string

const (
	KindUser       NodeKind = "user"
	KindSkill      NodeKind = "skill"
	KindCompany    NodeKind = "company"
	KindPreference NodeKind = "preference"
	KindListing    NodeKind = "listing"
	KindFact       NodeKind = "fact"
	// KindCategory groups skills; categories are never rendered on their own
	KindCategory NodeKind = "category"
)

// Edge kinds
const (
	EdgeParent   = "parent"
	EdgeRelated  = "related"
	EdgeHasSkill = "has_skill"
	EdgeWorkedAt = "worked_at"
	EdgePrefers  = "prefers"
	EdgeMatches  = "matches"
)

// Node is a typed entity in one user's graph
type Node struct {
	ID         string                 `json:"id"`
	Kind       NodeKind               `json:"kind"`
	Label      string                 `json:"label"`
	SourceURI  string                 `json:"source_uri,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Edge is a directed relation between two nodes of the same graph.
// An edge with a Label is an asserted fact.
type Edge struct {
	SourceID string   `json:"source"`
	TargetID string   `json:"target"`
	Kind     string   `json:"kind"`
	Weight   *float64 `json:"weight,omitempty"`
	Label    string   `json:"label,omitempty"`
}

// Graph is scoped to exactly one user
type Graph struct {
	UserID string `json:"user_id"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

// Origin tags where a fragment came from
type Origin string

const (
	OriginRelational    Origin = "relational"
	OriginGraphService  Origin = "graph-service"
	OriginMemoryService Origin = "memory-service"
)

// Rank orders origins by authority; lower wins
func (o Origin) Rank() int {
	switch o {
	case OriginRelational:
		return 0
	case OriginGraphService:
		return 1
	default:
		return 2
	}
}

// Fragment is a source-tagged unit of context text. Items are the spoken
// pieces after the heading; Entities[i] is the normalized name of Items[i]
// and drives de-duplication.
type Fragment struct {
	Origin      Origin     `json:"origin"`
	Kind        NodeKind   `json:"kind"`
	Heading     string     `json:"heading"`
	Items       []string   `json:"items,omitempty"`
	Entities    []string   `json:"entities,omitempty"`
	Text        string     `json:"text"`
	Confidence  float64    `json:"confidence"`
	RecencyHint *time.Time `json:"recency_hint,omitempty"`
}

// ============================================================================
// Relational input rows
// ============================================================================

// Skill is a confirmed skill row
type Skill struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Company is a confirmed work-history row
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Preference is a stated job preference
type Preference struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Listing is a matched opportunity
type Listing struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Company string  `json:"company"`
	Score   float64 `json:"score"`
}

// Relation is an explicit association row between two entities,
// addressed by kind and key (the same key used to build the node id)
type Relation struct {
	FromKind NodeKind `json:"from_kind"`
	FromKey  string   `json:"from_key"`
	ToKind   NodeKind `json:"to_kind"`
	ToKey    string   `json:"to_key"`
	Label    string   `json:"label,omitempty"`
}

// Facts is everything the system of record knows about one user
type Facts struct {
	Skills      []Skill      `json:"skills"`
	Companies   []Company    `json:"companies"`
	Preferences []Preference `json:"preferences"`
	Listings    []Listing    `json:"listings"`
	Relations   []Relation   `json:"relations,omitempty"`
}

// Empty reports whether no rows were found
func (f Facts) Empty() bool {
	return len(f.Skills) == 0 && len(f.Companies) == 0 && len(f.Preferences) == 0 && len(f.Listings) == 0
}
