package model

import (
	"strings"
)

// MergeScalar applies the field merge rule: the incoming value overwrites
// the existing one only if the existing value equals the unset sentinel.
// The first non-default value sticks, existing wins on conflict.
func MergeScalar[T comparable](existing, incoming, unset T) T {
	if existing == unset {
		return incoming
	}
	return existing
}

// MergeRule merges the type-specific attributes of the incoming record
// into the existing one. Rules are registered per hardware type,
// replacing virtual dispatch through an inheritance hierarchy.
type MergeRule func(existing, incoming *HardwareRecord)

// nolint: gochecknoglobals
var mergeRules = map[HardwareType]MergeRule{}

// RegisterMergeRule installs a type-specific attribute merge rule.
// Types without an own rule use the default first-non-default-per-key rule.
func RegisterMergeRule(t HardwareType, rule MergeRule) {
	mergeRules[t] = rule
}

// MergeInto merges the incoming record into the existing one.
// Scalar fields follow MergeScalar, set-valued fields are unioned.
func (r *HardwareRecord) MergeInto(existing *HardwareRecord) {
	existing.Type = MergeScalar(existing.Type, r.Type, TypeUnknown)
	existing.Manufacturer = MergeScalar(existing.Manufacturer, r.Manufacturer, "")
	existing.Model = MergeScalar(existing.Model, r.Model, "")
	if existing.LaunchDate == nil {
		existing.LaunchDate = r.LaunchDate
	}

	if existing.EANs == nil {
		existing.EANs = NewIdentifierSet()
	}
	if existing.MPNs == nil {
		existing.MPNs = NewIdentifierSet()
	}
	existing.EANs.AddAll(r.EANs)
	existing.MPNs.AddAll(r.MPNs)
	existing.PictureURLs = mergeOrdered(existing.PictureURLs, r.PictureURLs)

	if rule, found := mergeRules[existing.Type]; found {
		rule(existing, r)
	} else {
		MergeAttrs(existing, r)
	}
}

// MergeAttrs is the default attribute rule: per key, the first non-blank value sticks.
func MergeAttrs(existing, incoming *HardwareRecord) {
	if len(incoming.Attrs) == 0 {
		return
	}
	if existing.Attrs == nil {
		existing.Attrs = make(map[string]string, len(incoming.Attrs))
	}
	for key, value := range incoming.Attrs {
		if strings.TrimSpace(existing.Attrs[key]) == "" {
			existing.Attrs[key] = value
		}
	}
}

// mergeOrdered unions two ordered lists, keeping the first occurrence of each value.
func mergeOrdered(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, v := range list {
			if v != "" && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
