package assembler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/graph"
)

const (
	// graphServiceConfidence is the confidence given to graph-service fragments
	graphServiceConfidence = 0.7
	// memoryConfidenceScale maps a snippet score into the memory band
	memoryConfidenceScale = 0.5
	// minFactLength filters out edge facts too short to be worth saying
	minFactLength = 10
	// knowledgeHeading prefixes search hits that are not skills, companies or preferences
	knowledgeHeading = "Relevant knowledge"
	// conversationHeading prefixes remembered conversation snippets
	conversationHeading = "Previous conversation"
)

// group collects items of one kind, de-duplicated by entity and capped
type group struct {
	kind     graph.NodeKind
	items    []string
	entities []string
	seen     map[string]bool
}

func newGroup(kind graph.NodeKind) *group {
	return &group{kind: kind, seen: map[string]bool{}}
}

func (g *group) add(item, entity string) {
	key := graph.Normalize(entity)
	if key == "" || g.seen[key] || len(g.items) >= graph.GroupCap(g.kind) {
		return
	}
	g.seen[key] = true
	g.items = append(g.items, strings.TrimSpace(item))
	g.entities = append(g.entities, key)
}

// nodeKind classifies a graph-service node by its labels
func nodeKind(n gateway.GraphNode) (graph.NodeKind, bool) {
	switch {
	case n.HasLabel("skill"):
		return graph.KindSkill, true
	case n.HasLabel("company", "organization"):
		return graph.KindCompany, true
	case n.HasLabel("preference"):
		return graph.KindPreference, true
	}
	return "", false
}

// graphFragments converts a graph-service result into fragments. Nodes with
// a recognised label join their kind's sentence, other nodes become
// relevant knowledge, and edge facts that have not been superseded become
// known facts, newest first.
func graphFragments(res *gateway.GraphResult) []graph.Fragment {
	if res == nil {
		return nil
	}

	groups := map[graph.NodeKind]*group{
		graph.KindSkill:      newGroup(graph.KindSkill),
		graph.KindCompany:    newGroup(graph.KindCompany),
		graph.KindPreference: newGroup(graph.KindPreference),
	}
	knowledge := newGroup(graph.KindFact)

	for _, n := range res.Nodes {
		name := strings.TrimSpace(n.Name)
		if name == "" {
			continue
		}
		if kind, ok := nodeKind(n); ok {
			groups[kind].add(name, name)
			continue
		}
		item := name
		if s := strings.TrimSpace(n.Summary); s != "" {
			item = fmt.Sprintf("%s: %s", name, s)
		}
		knowledge.add(item, name)
	}

	edges := make([]gateway.GraphEdge, 0, len(res.Edges))
	for _, e := range res.Edges {
		if e.InvalidAt != nil || len(strings.TrimSpace(e.Fact)) <= minFactLength {
			continue
		}
		edges = append(edges, e)
	}
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].CreatedAt.After(edges[j].CreatedAt)
	})
	facts := newGroup(graph.KindFact)
	var newest *time.Time
	for _, e := range edges {
		facts.add(e.Fact, e.Fact)
		if !e.CreatedAt.IsZero() && newest == nil {
			t := e.CreatedAt
			newest = &t
		}
	}

	var out []graph.Fragment
	for _, kind := range []graph.NodeKind{graph.KindSkill, graph.KindCompany, graph.KindPreference} {
		g := groups[kind]
		if len(g.items) > 0 {
			out = append(out, graph.NewFragment(graph.OriginGraphService, kind, g.items, g.entities, graphServiceConfidence))
		}
	}
	if len(facts.items) > 0 {
		f := graph.NewFragment(graph.OriginGraphService, graph.KindFact, facts.items, facts.entities, graphServiceConfidence)
		f.RecencyHint = newest
		out = append(out, f)
	}
	if len(knowledge.items) > 0 {
		out = append(out, graph.NewHeadedFragment(graph.OriginGraphService, graph.KindFact, knowledgeHeading,
			knowledge.items, knowledge.entities, graphServiceConfidence))
	}
	return out
}

// memoryFragments turns each snippet into its own fragment
func memoryFragments(snippets []gateway.Snippet) []graph.Fragment {
	out := make([]graph.Fragment, 0, len(snippets))
	for _, s := range snippets {
		text := strings.Join(strings.Fields(s.Content), " ")
		if text == "" {
			continue
		}
		f := graph.NewHeadedFragment(graph.OriginMemoryService, graph.KindFact, conversationHeading,
			[]string{text}, []string{graph.Normalize(text)}, clamp(s.Score)*memoryConfidenceScale)
		f.RecencyHint = s.CreatedAt
		out = append(out, f)
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
