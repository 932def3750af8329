package assembler

import (
	"sort"
	"strings"
	"unicode/utf8"

	"fractional-quest/backend/internal/graph"
)

// claimKey identifies one entity of one kind
func claimKey(kind graph.NodeKind, entity string) string {
	return string(kind) + "|" + entity
}

// merge removes entities already said by a more authoritative fragment and
// returns the survivors in output order, plus how many fragments vanished.
//
// Authority is origin rank, then confidence, then first-seen position. A
// fragment keeps only the entities nobody above it claimed; one left with
// nothing is dropped. Survivors are ordered by kind priority, then origin
// rank, then first-seen position, so equal inputs give equal output.
func merge(frags []graph.Fragment) ([]graph.Fragment, int) {
	byAuthority := make([]int, len(frags))
	for i := range frags {
		byAuthority[i] = i
	}
	sort.SliceStable(byAuthority, func(a, b int) bool {
		fa, fb := frags[byAuthority[a]], frags[byAuthority[b]]
		if fa.Origin.Rank() != fb.Origin.Rank() {
			return fa.Origin.Rank() < fb.Origin.Rank()
		}
		return fa.Confidence > fb.Confidence
	})

	claimed := map[string]bool{}
	survivors := make(map[int]graph.Fragment, len(frags))
	for _, idx := range byAuthority {
		f := frags[idx]

		if len(f.Entities) == 0 {
			key := claimKey(f.Kind, graph.Normalize(f.Text))
			if claimed[key] {
				continue
			}
			claimed[key] = true
			survivors[idx] = f
			continue
		}

		var keep []int
		for pos, entity := range f.Entities {
			key := claimKey(f.Kind, entity)
			if claimed[key] {
				continue
			}
			claimed[key] = true
			keep = append(keep, pos)
		}
		switch {
		case len(keep) == 0:
			continue
		case len(keep) == len(f.Entities):
			survivors[idx] = f
		default:
			survivors[idx] = f.Keep(keep)
		}
	}

	order := make([]int, 0, len(survivors))
	for idx := range survivors {
		order = append(order, idx)
	}
	sort.Slice(order, func(a, b int) bool {
		fa, fb := survivors[order[a]], survivors[order[b]]
		if pa, pb := graph.Priority(fa.Kind), graph.Priority(fb.Kind); pa != pb {
			return pa < pb
		}
		if fa.Origin.Rank() != fb.Origin.Rank() {
			return fa.Origin.Rank() < fb.Origin.Rank()
		}
		return order[a] < order[b]
	})

	out := make([]graph.Fragment, 0, len(order))
	for _, idx := range order {
		out = append(out, survivors[idx])
	}
	return out, len(frags) - len(out)
}

// fitBudget joins fragments one per line within budget characters. Whole
// fragments are dropped from the tail first; if the first fragment alone is
// too long it is cut. A budget of zero or less means no cap.
func fitBudget(frags []graph.Fragment, budget int) (string, []graph.Fragment, int) {
	if budget <= 0 {
		return joinTexts(frags), frags, 0
	}

	kept := frags
	for len(kept) > 1 && utf8.RuneCountInString(joinTexts(kept)) > budget {
		kept = kept[:len(kept)-1]
	}
	truncated := len(frags) - len(kept)

	text := joinTexts(kept)
	if utf8.RuneCountInString(text) > budget {
		text = cutRunes(text, budget)
	}
	return text, kept, truncated
}

func joinTexts(frags []graph.Fragment) string {
	parts := make([]string, len(frags))
	for i, f := range frags {
		parts[i] = f.Text
	}
	return strings.Join(parts, "\n")
}

// cutRunes returns at most n runes of s without splitting a character
func cutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
