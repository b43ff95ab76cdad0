package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// IdentifierSet is an unordered set of external identifiers (EANs or MPNs).
// It marshals to a sorted JSON array.
type IdentifierSet map[string]struct{}

func NewIdentifierSet(values ...string) IdentifierSet {
	s := make(IdentifierSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts a non-blank identifier into the set.
func (s IdentifierSet) Add(value string) {
	if value = strings.TrimSpace(value); value != "" {
		s[value] = struct{}{}
	}
}

func (s IdentifierSet) Has(value string) bool {
	_, found := s[value]
	return found
}

func (s IdentifierSet) Len() int {
	return len(s)
}

func (s IdentifierSet) IsEmpty() bool {
	return len(s) == 0
}

// AddAll unions the other set into this one.
func (s IdentifierSet) AddAll(other IdentifierSet) {
	for v := range other {
		s[v] = struct{}{}
	}
}

func (s IdentifierSet) Intersects(other IdentifierSet) bool {
	for v := range other {
		if s.Has(v) {
			return true
		}
	}
	return false
}

// Slice returns the identifiers as a sorted slice.
func (s IdentifierSet) Slice() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s IdentifierSet) Clone() IdentifierSet {
	out := make(IdentifierSet, len(s))
	out.AddAll(s)
	return out
}

func (s IdentifierSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *IdentifierSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewIdentifierSet(values...)
	return nil
}
