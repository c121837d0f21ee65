package search

import (
	"sort"
	"strings"
)

// TermSet is the set of terms treated as equivalent to one query token. A
// listing satisfies a TermSet when its search blob contains any member;
// satisfying a query requires satisfying every TermSet.
type TermSet map[string]bool

// Terms returns the set members as a slice, sorted for stable SQL generation.
func (ts TermSet) Terms() []string {
	terms := make([]string, 0, len(ts))
	for t := range ts {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// ExpandQuery turns a raw free-text query into one TermSet per token.
//
// The query is normalized, then every multi-word synonym variant found in it
// is replaced by its canonical name (longest phrase first, so "local
// comercial" collapses before "local" could shadow it). The result is split
// on whitespace and each token expands to itself plus every variant of every
// group it belongs to.
//
// An empty or whitespace-only query yields nil: no text constraint.
func (s *Synonyms) ExpandQuery(rawQuery string) []TermSet {
	q := Normalize(rawQuery)
	if q == "" {
		return nil
	}

	for _, p := range s.phrases {
		if strings.Contains(q, p.variant) {
			q = strings.ReplaceAll(q, p.variant, p.canonical)
		}
	}

	var groups []TermSet
	for _, token := range strings.Fields(q) {
		groups = append(groups, s.expandToken(token))
	}
	return groups
}

func (s *Synonyms) expandToken(token string) TermSet {
	expanded := TermSet{token: true}
	for canon := range s.variantToGroups[token] {
		expanded[canon] = true
		for v := range s.groups[canon] {
			expanded[v] = true
		}
	}
	return expanded
}
