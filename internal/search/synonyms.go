package search

import (
	"sort"
	"strings"
)

// DefaultSynonyms maps each canonical term to the surface forms treated as
// equivalent when searching. Keys and variants are Argentine real-estate
// vocabulary as users actually type it (abbreviations, misspellings, truncated
// forms included).
var DefaultSynonyms = map[string][]string{
	// property types
	"departamento": {"departamento", "depto", "dto", "dpto", "apartamento", "apto"},
	"casa":         {"casa", "chalet", "chalec"},
	"ph":           {"ph", "propiedad horizontal"},
	"local":        {"local", "local comercial", "comercial"},
	"terreno":      {"terreno", "lote", "lotes", "parcel"},

	// operations
	"venta":      {"venta", "vender", "vende"},
	"alquiler":   {"alquiler", "renta", "arriendo", "arrendar", "alquilar", "alquilo"},
	"temporario": {"temporario", "temporal", "temporada"},

	// features
	"mascotas": {"mascotas", "pet friendly", "petfriendly", "acepta mascotas", "permite mascotas"},
	"cochera":  {"cochera", "garage", "garaje", "estacionamiento"},

	// other frequent terms
	"ambientes": {"ambiente", "ambientes", "amb", "dormitorio", "dormitorios", "hab", "habitacion", "habitaciones"},
	"banio":     {"baño", "bano", "toilette", "aseo"},
	"m2":        {"m2", "m²", "metros", "metros cuadrados", "mts", "mt2", "mt^2"},
}

// phrase is a multi-word variant and the canonical it collapses to during the
// substitution pass.
type phrase struct {
	variant   string
	canonical string
}

// Synonyms is the normalized synonym table plus its derived lookups. Built
// once at startup and read-only afterwards, so it is safe to share across
// request handlers without locking.
type Synonyms struct {
	groups          map[string]map[string]bool // canonical -> normalized variants (canonical included)
	variantToGroups map[string]map[string]bool // normalized variant -> canonicals it belongs to
	phrases         []phrase                   // multi-word variants, longest first
}

// NewSynonyms normalizes and inverts a canonical -> variants table.
// Multi-word variants are ordered longest-first (ties broken by variant then
// canonical) so the phrase-substitution pass in ExpandQuery is deterministic
// and prefers the more specific phrase when two overlap.
func NewSynonyms(table map[string][]string) *Synonyms {
	s := &Synonyms{
		groups:          make(map[string]map[string]bool, len(table)),
		variantToGroups: make(map[string]map[string]bool),
	}

	for canon, variants := range table {
		canonNorm := Normalize(canon)
		if canonNorm == "" {
			continue
		}
		group := map[string]bool{canonNorm: true}
		for _, v := range variants {
			if n := Normalize(v); n != "" {
				group[n] = true
			}
		}
		s.groups[canonNorm] = group

		for v := range group {
			if s.variantToGroups[v] == nil {
				s.variantToGroups[v] = make(map[string]bool)
			}
			s.variantToGroups[v][canonNorm] = true
		}
	}

	for canon, group := range s.groups {
		for v := range group {
			if strings.Contains(v, " ") {
				s.phrases = append(s.phrases, phrase{variant: v, canonical: canon})
			}
		}
	}
	sort.Slice(s.phrases, func(i, j int) bool {
		a, b := s.phrases[i], s.phrases[j]
		if len(a.variant) != len(b.variant) {
			return len(a.variant) > len(b.variant)
		}
		if a.variant != b.variant {
			return a.variant < b.variant
		}
		return a.canonical < b.canonical
	})

	return s
}

// Group returns the normalized variant set for a canonical name, or nil.
func (s *Synonyms) Group(canonical string) map[string]bool {
	return s.groups[canonical]
}
