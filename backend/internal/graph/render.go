package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// priority is the fixed rendering order of kind groups
var priority = []NodeKind{KindSkill, KindCompany, KindPreference, KindListing, KindFact}

// groupCaps bounds how many entities a single sentence names
var groupCaps = map[NodeKind]int{
	KindSkill:      10,
	KindCompany:    5,
	KindPreference: 5,
	KindListing:    5,
	KindFact:       5,
}

// Headings used as the sentence prefix for each kind group
var Headings = map[NodeKind]string{
	KindSkill:      "User skills",
	KindCompany:    "Past companies",
	KindPreference: "Preferences",
	KindListing:    "Matched roles",
	KindFact:       "Known facts",
}

// Priority returns the rendering position of a kind; unknown kinds sort last
func Priority(kind NodeKind) int {
	for i, k := range priority {
		if k == kind {
			return i
		}
	}
	return len(priority)
}

// GroupCap returns the entity cap for a kind group
func GroupCap(kind NodeKind) int {
	if c, ok := groupCaps[kind]; ok {
		return c
	}
	return 5
}

var spaces = regexp.MustCompile(`\s+`)

// Normalize reduces an entity name or sentence to a comparison key
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimRight(s, ".,!?;:")
}

// Separator returns how entities of a kind are joined inside a sentence
func Separator(kind NodeKind) string {
	if kind == KindFact {
		return "; "
	}
	return ", "
}

// NewFragment renders one sentence for a kind group. Items and entities are
// parallel: items[i] is how entity[i] is spoken.
func NewFragment(origin Origin, kind NodeKind, items, entities []string, confidence float64) Fragment {
	return NewHeadedFragment(origin, kind, Headings[kind], items, entities, confidence)
}

// NewHeadedFragment is NewFragment with a custom sentence heading
func NewHeadedFragment(origin Origin, kind NodeKind, heading string, items, entities []string, confidence float64) Fragment {
	return Fragment{
		Origin:     origin,
		Kind:       kind,
		Heading:    heading,
		Items:      items,
		Entities:   entities,
		Text:       fmt.Sprintf("%s: %s", heading, strings.Join(items, Separator(kind))),
		Confidence: confidence,
	}
}

// Keep returns a copy of the fragment holding only the items at the given
// positions, with its text re-rendered.
func (f Fragment) Keep(positions []int) Fragment {
	out := f
	out.Items = make([]string, 0, len(positions))
	out.Entities = make([]string, 0, len(positions))
	for _, i := range positions {
		out.Items = append(out.Items, f.Items[i])
		out.Entities = append(out.Entities, f.Entities[i])
	}
	out.Text = fmt.Sprintf("%s: %s", f.Heading, strings.Join(out.Items, Separator(f.Kind)))
	return out
}

// ToFragments renders a graph as at most one fragment per kind group, in
// priority order. The same graph always renders to the same fragments.
func ToFragments(g Graph, origin Origin) []Fragment {
	items := make(map[NodeKind][]string)
	entities := make(map[NodeKind][]string)
	seen := make(map[string]struct{})

	add := func(kind NodeKind, item, entity string) {
		key := string(kind) + "|" + Normalize(entity)
		if _, dup := seen[key]; dup || Normalize(entity) == "" {
			return
		}
		if len(items[kind]) >= GroupCap(kind) {
			return
		}
		seen[key] = struct{}{}
		items[kind] = append(items[kind], item)
		entities[kind] = append(entities[kind], Normalize(entity))
	}

	for _, n := range g.Nodes {
		switch n.Kind {
		case KindSkill:
			add(KindSkill, n.Label, n.Label)
		case KindCompany:
			item := n.Label
			if role, _ := n.Attributes["role"].(string); role != "" {
				item = fmt.Sprintf("%s (%s)", n.Label, role)
			}
			add(KindCompany, item, n.Label)
		case KindPreference:
			item := n.Label
			if t, _ := n.Attributes["type"].(string); t != "" {
				item = fmt.Sprintf("%s: %s", t, n.Label)
			}
			add(KindPreference, item, n.Label)
		case KindListing:
			item := n.Label
			if c, _ := n.Attributes["company"].(string); c != "" {
				item = fmt.Sprintf("%s at %s", n.Label, c)
			}
			add(KindListing, item, item)
		case KindFact:
			add(KindFact, n.Label, n.Label)
		}
	}

	// Labelled edges are asserted facts
	for _, e := range g.Edges {
		if e.Label == "" {
			continue
		}
		src, okSrc := g.Node(e.SourceID)
		tgt, okTgt := g.Node(e.TargetID)
		if !okSrc || !okTgt {
			continue
		}
		fact := fmt.Sprintf("%s %s %s", src.Label, e.Label, tgt.Label)
		add(KindFact, fact, fact)
	}

	confidence := 1.0
	if origin != OriginRelational {
		confidence = 0.7
	}

	var out []Fragment
	for _, kind := range priority {
		if len(items[kind]) == 0 {
			continue
		}
		out = append(out, NewFragment(origin, kind, items[kind], entities[kind], confidence))
	}
	return out
}
