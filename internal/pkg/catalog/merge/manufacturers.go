package merge

import (
	"strings"

	"github.com/partdex/partdex/internal/pkg/syncmap"
)

// Manufacturers is the process-wide set of known manufacturer names.
// It is seeded at startup from the persisted records and grows monotonically,
// sanitization reads it concurrently.
type Manufacturers struct {
	names *syncmap.SyncMap[string, string]
}

func NewManufacturers(seed ...string) *Manufacturers {
	m := &Manufacturers{
		names: syncmap.New[string, string](func(key string) *string {
			return &key
		}),
	}
	for _, name := range seed {
		m.Add(name)
	}
	return m
}

// Add registers a manufacturer name, blank values are ignored.
func (m *Manufacturers) Add(name string) {
	if name = strings.TrimSpace(name); name != "" {
		canonical := m.names.GetOrInit(strings.ToLower(name))
		*canonical = name
	}
}

func (m *Manufacturers) Len() int {
	return m.names.Len()
}

// Infer searches the normalized model text for a known manufacturer name,
// case-insensitive, the longest match wins.
func (m *Manufacturers) Infer(modelText string) (string, bool) {
	haystack := strings.ToLower(modelText)
	best := ""
	for _, key := range m.names.Keys() {
		if len(key) > len(best) && strings.Contains(haystack, key) {
			best = key
		}
	}
	if best == "" {
		return "", false
	}
	return *m.names.GetOrInit(best), true
}
