package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHardwareRecord_PrimaryIdentifier(t *testing.T) {
	t.Parallel()

	// MPN wins over EAN
	r := &HardwareRecord{
		EANs: NewIdentifierSet("0730143312042"),
		MPNs: NewIdentifierSet("100-100000065BOX"),
	}
	assert.Equal(t, "100-100000065BOX", r.PrimaryIdentifier())

	// EAN is the fallback
	r = &HardwareRecord{EANs: NewIdentifierSet("0730143312042"), MPNs: NewIdentifierSet()}
	assert.Equal(t, "0730143312042", r.PrimaryIdentifier())

	// No identifier at all
	r = &HardwareRecord{EANs: NewIdentifierSet(), MPNs: NewIdentifierSet()}
	assert.Equal(t, "", r.PrimaryIdentifier())
}

func TestHardwareRecord_NaturalKey(t *testing.T) {
	t.Parallel()
	r := &HardwareRecord{Type: TypeCPU, MPNs: NewIdentifierSet("100-100000065BOX")}
	assert.Equal(t, "cpu|100-100000065BOX", r.NaturalKey())
}

func TestHardwareRecord_SharesIdentifier(t *testing.T) {
	t.Parallel()
	a := &HardwareRecord{EANs: NewIdentifierSet("e1"), MPNs: NewIdentifierSet("m1")}
	b := &HardwareRecord{EANs: NewIdentifierSet("e2"), MPNs: NewIdentifierSet("m1")}
	c := &HardwareRecord{EANs: NewIdentifierSet("e3"), MPNs: NewIdentifierSet("m3")}
	assert.True(t, a.SharesIdentifier(b))
	assert.False(t, a.SharesIdentifier(c))
}

func TestHardwareRecord_Clone_Independent(t *testing.T) {
	t.Parallel()
	launch := time.Date(2020, 11, 5, 0, 0, 0, 0, time.UTC)
	original := &HardwareRecord{
		ID:           "r1",
		Type:         TypeCPU,
		Manufacturer: "AMD",
		Model:        "Ryzen 5 5600X",
		EANs:         NewIdentifierSet("e1"),
		MPNs:         NewIdentifierSet("m1"),
		PictureURLs:  []string{"https://img.example.com/1.jpg"},
		LaunchDate:   &launch,
		Attrs:        map[string]string{"cores": "6"},
	}

	clone := original.Clone()
	clone.EANs.Add("e2")
	clone.PictureURLs[0] = "changed"
	clone.Attrs["cores"] = "8"
	*clone.LaunchDate = launch.AddDate(1, 0, 0)

	assert.Equal(t, 1, original.EANs.Len())
	assert.Equal(t, "https://img.example.com/1.jpg", original.PictureURLs[0])
	assert.Equal(t, "6", original.Attrs["cores"])
	assert.Equal(t, launch, *original.LaunchDate)
}
