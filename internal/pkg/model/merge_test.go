package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeScalar(t *testing.T) {
	t.Parallel()

	// The first non-default value sticks
	assert.Equal(t, "Corsair", MergeScalar("Corsair", "Unknown-Corp", ""))
	assert.Equal(t, "Corsair", MergeScalar("", "Corsair", ""))
	assert.Equal(t, "", MergeScalar("", "", ""))
	assert.Equal(t, TypeRAM, MergeScalar(TypeUnknown, TypeRAM, TypeUnknown))
	assert.Equal(t, TypeRAM, MergeScalar(TypeRAM, TypeCPU, TypeUnknown))
}

func TestMergeInto_ScalarsAndSets(t *testing.T) {
	t.Parallel()
	launch := time.Date(2020, 11, 5, 0, 0, 0, 0, time.UTC)

	existing := &HardwareRecord{
		ID:           "r1",
		Type:         TypeUnknown,
		Manufacturer: "",
		Model:        "Ryzen 5 5600X",
		EANs:         NewIdentifierSet("e1"),
		MPNs:         NewIdentifierSet("m1"),
		PictureURLs:  []string{"p1", "p2"},
	}
	incoming := &HardwareRecord{
		Type:         TypeCPU,
		Manufacturer: "AMD",
		Model:        "AMD Ryzen 5 5600X",
		EANs:         NewIdentifierSet("e2"),
		MPNs:         NewIdentifierSet("m1", "m2"),
		PictureURLs:  []string{"p2", "p3"},
		LaunchDate:   &launch,
	}

	incoming.MergeInto(existing)

	assert.Equal(t, "r1", existing.ID)
	assert.Equal(t, TypeCPU, existing.Type)
	assert.Equal(t, "AMD", existing.Manufacturer)
	// The existing model text sticks, it was already set
	assert.Equal(t, "Ryzen 5 5600X", existing.Model)
	assert.Equal(t, []string{"e1", "e2"}, existing.EANs.Slice())
	assert.Equal(t, []string{"m1", "m2"}, existing.MPNs.Slice())
	// Ordered union, first occurrence wins
	assert.Equal(t, []string{"p1", "p2", "p3"}, existing.PictureURLs)
	assert.Equal(t, launch, *existing.LaunchDate)
}

func TestMergeInto_NilSetsOnExisting(t *testing.T) {
	t.Parallel()
	existing := &HardwareRecord{Model: "X"}
	incoming := &HardwareRecord{EANs: NewIdentifierSet("e1"), MPNs: NewIdentifierSet("m1")}
	incoming.MergeInto(existing)
	assert.Equal(t, []string{"e1"}, existing.EANs.Slice())
	assert.Equal(t, []string{"m1"}, existing.MPNs.Slice())
}

func TestMergeAttrs_FirstNonBlankWins(t *testing.T) {
	t.Parallel()
	existing := &HardwareRecord{Attrs: map[string]string{"cores": "6", "socket": ""}}
	incoming := &HardwareRecord{Attrs: map[string]string{"cores": "8", "socket": "AM4", "tdp": "65 W"}}

	MergeAttrs(existing, incoming)

	assert.Equal(t, "6", existing.Attrs["cores"])
	assert.Equal(t, "AM4", existing.Attrs["socket"])
	assert.Equal(t, "65 W", existing.Attrs["tdp"])
}

func TestMergeInto_RegisteredRule(t *testing.T) {
	// Not parallel, the rule registry is process-wide
	RegisterMergeRule(TypeCooler, func(existing, incoming *HardwareRecord) {
		if existing.Attrs == nil {
			existing.Attrs = map[string]string{}
		}
		existing.Attrs["rule"] = "custom"
	})
	defer delete(mergeRules, TypeCooler)

	existing := &HardwareRecord{Type: TypeCooler, Model: "NH-D15"}
	incoming := &HardwareRecord{Type: TypeCooler, Attrs: map[string]string{"rule": "default"}}
	incoming.MergeInto(existing)
	assert.Equal(t, "custom", existing.Attrs["rule"])
}
