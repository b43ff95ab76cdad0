package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManufacturers_Add(t *testing.T) {
	t.Parallel()
	m := NewManufacturers()
	m.Add("Corsair")
	m.Add("corsair") // same name, different casing
	m.Add("  ")
	m.Add("")
	assert.Equal(t, 1, m.Len())
}

func TestManufacturers_Infer(t *testing.T) {
	t.Parallel()
	m := NewManufacturers("AMD", "Corsair", "be quiet!")

	name, found := m.Infer("CORSAIR Vengeance LPX 16GB")
	assert.True(t, found)
	assert.Equal(t, "Corsair", name)

	name, found = m.Infer("be quiet! Dark Rock Pro 4")
	assert.True(t, found)
	assert.Equal(t, "be quiet!", name)

	_, found = m.Infer("Generic 500W PSU")
	assert.False(t, found)
}

func TestManufacturers_Infer_LongestMatchWins(t *testing.T) {
	t.Parallel()
	m := NewManufacturers("King", "Kingston")
	name, found := m.Infer("Kingston Fury Beast 16GB")
	assert.True(t, found)
	assert.Equal(t, "Kingston", name)
}
