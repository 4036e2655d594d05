package domain

import "strings"

// MatchesQuery reports whether any searchable field of e contains q,
// ignoring case. Only the empty query matches every entity; whitespace is
// part of the query.
func MatchesQuery(e *Entity, q string) bool {
	q = strings.ToLower(q)
	if q == "" {
		return true
	}
	if e == nil || e.Payload == nil {
		return false
	}
	for _, field := range e.Payload.SearchFields() {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// FilterEntities returns the entities matching q, preserving order.
// An empty query returns the input slice unchanged.
func FilterEntities(entities []*Entity, q string) []*Entity {
	if q == "" {
		return entities
	}
	out := make([]*Entity, 0, len(entities))
	for _, e := range entities {
		if MatchesQuery(e, q) {
			out = append(out, e)
		}
	}
	return out
}
