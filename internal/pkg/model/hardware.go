// Package model defines the canonical entities of the catalog:
// hardware records, price observations and the negative cache entries.
package model

import (
	"sort"
	"time"
)

// HardwareType is the variant discriminator of a hardware record.
type HardwareType string

const (
	TypeUnknown   HardwareType = "unknown"
	TypeCPU       HardwareType = "cpu"
	TypeGPU       HardwareType = "gpu"
	TypeRAM       HardwareType = "ram"
	TypeMainboard HardwareType = "mainboard"
	TypePSU       HardwareType = "psu"
	TypeCase      HardwareType = "case"
	TypeCooler    HardwareType = "cooler"
	TypeStorage   HardwareType = "storage"
)

// HardwareRecord is one canonical product after deduplication,
// or an observed record on its way into the merge engine.
//
// Invariant: within one Type, no two live records may share an EAN or MPN,
// sharing implies they must be merged.
type HardwareRecord struct {
	ID           string            `json:"id"`
	Type         HardwareType      `json:"type" validate:"required"`
	Manufacturer string            `json:"manufacturer"`
	Model        string            `json:"model" validate:"required"`
	EANs         IdentifierSet     `json:"eans"`
	MPNs         IdentifierSet     `json:"mpns"`
	PictureURLs  []string          `json:"pictureUrls,omitempty"`
	LaunchDate   *time.Time        `json:"launchDate,omitempty"`
	Attrs        map[string]string `json:"attrs,omitempty"`
}

// PrimaryIdentifier returns the identifier the record is keyed by
// for lookups and replication: the first MPN, or the first EAN.
func (r *HardwareRecord) PrimaryIdentifier() string {
	if mpns := r.MPNs.Slice(); len(mpns) > 0 {
		return mpns[0]
	}
	if eans := r.EANs.Slice(); len(eans) > 0 {
		return eans[0]
	}
	return ""
}

// NaturalKey identifies the entity across nodes, repeated updates
// to the same entity collapse to the latest value under this key.
func (r *HardwareRecord) NaturalKey() string {
	return string(r.Type) + "|" + r.PrimaryIdentifier()
}

// Identifiers returns all EANs and MPNs of the record.
func (r *HardwareRecord) Identifiers() []string {
	out := append(r.EANs.Slice(), r.MPNs.Slice()...)
	sort.Strings(out)
	return out
}

// SharesIdentifier reports whether both records share at least one EAN or MPN.
func (r *HardwareRecord) SharesIdentifier(other *HardwareRecord) bool {
	return r.EANs.Intersects(other.EANs) || r.MPNs.Intersects(other.MPNs)
}

func (r *HardwareRecord) Clone() *HardwareRecord {
	clone := *r
	clone.EANs = r.EANs.Clone()
	clone.MPNs = r.MPNs.Clone()
	clone.PictureURLs = append([]string(nil), r.PictureURLs...)
	if r.LaunchDate != nil {
		date := *r.LaunchDate
		clone.LaunchDate = &date
	}
	if r.Attrs != nil {
		clone.Attrs = make(map[string]string, len(r.Attrs))
		for k, v := range r.Attrs {
			clone.Attrs[k] = v
		}
	}
	return &clone
}
