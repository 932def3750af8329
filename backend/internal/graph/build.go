package graph

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

var (
	nonSlug = regexp.MustCompile(`[^a-z0-9]+`)
	// slugSafe keys lose nothing but case and separators when slugged
	slugSafe = regexp.MustCompile(`^[a-z0-9 _\-]*$`)
)

// slug lowercases and collapses anything that is not a letter or digit to '-'
func slug(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

// NodeID builds the id for a node. The kind prefix keeps ids unique across
// kinds even when two rows share a key. Keys whose punctuation the slug
// would drop get a short hash suffix, so "C++" and "C#" stay distinct.
func NodeID(kind NodeKind, key string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(key)), " ")
	s := slug(norm)
	if slugSafe.MatchString(norm) {
		return fmt.Sprintf("%s-%s", kind, s)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(norm))
	suffix := fmt.Sprintf("%08x", h.Sum32())[:6]
	if s == "" {
		return fmt.Sprintf("%s-%s", kind, suffix)
	}
	return fmt.Sprintf("%s-%s-%s", kind, s, suffix)
}

func preferenceKey(p Preference) string {
	return p.Type + " " + p.Value
}

func keyOr(id, fallback string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return fallback
}

// builder accumulates nodes and edges, ignoring repeated node ids
type builder struct {
	g     Graph
	index map[string]int
}

func newBuilder(userID string) *builder {
	return &builder{
		g:     Graph{UserID: userID, Nodes: []Node{}, Edges: []Edge{}},
		index: make(map[string]int),
	}
}

func (b *builder) addNode(n Node) string {
	if _, ok := b.index[n.ID]; ok {
		return n.ID
	}
	b.index[n.ID] = len(b.g.Nodes)
	b.g.Nodes = append(b.g.Nodes, n)
	return n.ID
}

func (b *builder) addEdge(e Edge) {
	b.g.Edges = append(b.g.Edges, e)
}

// BuildGraph deterministically converts relational rows into a user graph.
// Skills with a category hang off a category node through a parent edge,
// relation rows become related edges, and edges whose endpoints are not
// in the graph are dropped.
func BuildGraph(userID string, facts Facts) Graph {
	b := newBuilder(userID)

	userNode := b.addNode(Node{
		ID:         NodeID(KindUser, userID),
		Kind:       KindUser,
		Label:      "You",
		Attributes: map[string]interface{}{"central": true},
	})

	for _, s := range facts.Skills {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		id := b.addNode(Node{
			ID:    NodeID(KindSkill, keyOr(s.ID, s.Name)),
			Kind:  KindSkill,
			Label: s.Name,
			Attributes: map[string]interface{}{
				"category":   s.Category,
				"confidence": s.Confidence,
			},
		})
		w := s.Confidence
		b.addEdge(Edge{SourceID: userNode, TargetID: id, Kind: EdgeHasSkill, Weight: &w})

		if s.Category != "" {
			cat := b.addNode(Node{
				ID:    NodeID(KindCategory, s.Category),
				Kind:  KindCategory,
				Label: s.Category,
			})
			b.addEdge(Edge{SourceID: id, TargetID: cat, Kind: EdgeParent})
		}
	}

	for _, c := range facts.Companies {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		attrs := map[string]interface{}{}
		if c.Role != "" {
			attrs["role"] = c.Role
		}
		id := b.addNode(Node{
			ID:         NodeID(KindCompany, keyOr(c.ID, c.Name)),
			Kind:       KindCompany,
			Label:      c.Name,
			Attributes: attrs,
		})
		b.addEdge(Edge{SourceID: userNode, TargetID: id, Kind: EdgeWorkedAt})
	}

	for _, p := range facts.Preferences {
		if strings.TrimSpace(p.Value) == "" {
			continue
		}
		id := b.addNode(Node{
			ID:         NodeID(KindPreference, preferenceKey(p)),
			Kind:       KindPreference,
			Label:      p.Value,
			Attributes: map[string]interface{}{"type": p.Type},
		})
		b.addEdge(Edge{SourceID: userNode, TargetID: id, Kind: EdgePrefers})
	}

	for _, l := range facts.Listings {
		if strings.TrimSpace(l.Title) == "" {
			continue
		}
		id := b.addNode(Node{
			ID:    NodeID(KindListing, keyOr(l.ID, l.Title+" "+l.Company)),
			Kind:  KindListing,
			Label: l.Title,
			Attributes: map[string]interface{}{
				"company": l.Company,
				"score":   l.Score,
			},
		})
		w := l.Score
		b.addEdge(Edge{SourceID: userNode, TargetID: id, Kind: EdgeMatches, Weight: &w})
	}

	for _, r := range facts.Relations {
		b.addEdge(Edge{
			SourceID: NodeID(r.FromKind, r.FromKey),
			TargetID: NodeID(r.ToKind, r.ToKey),
			Kind:     EdgeRelated,
			Label:    r.Label,
		})
	}

	g := b.g
	g.Prune()
	return g
}

// Prune removes edges whose endpoints do not resolve to a node in the graph
// and returns how many were dropped.
func (g *Graph) Prune() int {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}

	kept := g.Edges[:0]
	dropped := 0
	for _, e := range g.Edges {
		_, okSrc := ids[e.SourceID]
		_, okTgt := ids[e.TargetID]
		if okSrc && okTgt {
			kept = append(kept, e)
			continue
		}
		dropped++
	}
	g.Edges = kept
	return dropped
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
