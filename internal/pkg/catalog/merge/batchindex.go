package merge

import (
	"sort"

	"github.com/partdex/partdex/internal/pkg/model"
)

// batchIndex is the in-memory identifier index a batch is folded against.
// It starts from the bulk-fetched existing records and is updated after
// every fold, so later records in the batch see earlier merges.
type batchIndex struct {
	byIdentifier map[string]*model.HardwareRecord
	byID         map[string]*model.HardwareRecord
	preExisting  map[string]bool
	absorbed     map[string]*model.HardwareRecord
}

func newBatchIndex(existing map[string]*model.HardwareRecord) *batchIndex {
	idx := &batchIndex{
		byIdentifier: make(map[string]*model.HardwareRecord),
		byID:         make(map[string]*model.HardwareRecord),
		preExisting:  make(map[string]bool),
		absorbed:     make(map[string]*model.HardwareRecord),
	}
	// Deduplicate by record id, the bulk fetch maps identifiers to records
	for _, record := range existing {
		if _, found := idx.byID[record.ID]; !found {
			idx.put(record)
			idx.preExisting[record.ID] = true
		}
	}
	return idx
}

// matches returns all distinct indexed records sharing any identifier,
// records of the same type first so pickTarget prefers them.
func (idx *batchIndex) matches(record *model.HardwareRecord) []*model.HardwareRecord {
	seen := make(map[string]bool)
	var out []*model.HardwareRecord
	for _, identifier := range record.Identifiers() {
		if m, found := idx.byIdentifier[identifier]; found && !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type == record.Type && out[j].Type != record.Type
	})
	return out
}

// put indexes the record under all of its identifiers.
func (idx *batchIndex) put(record *model.HardwareRecord) {
	idx.byID[record.ID] = record
	for _, identifier := range record.Identifiers() {
		idx.byIdentifier[identifier] = record
	}
}

// absorb re-points every identifier of the absorbed record at the target
// and marks the absorbed record for deletion.
func (idx *batchIndex) absorb(record, target *model.HardwareRecord) {
	delete(idx.byID, record.ID)
	for _, identifier := range record.Identifiers() {
		idx.byIdentifier[identifier] = target
	}
	if idx.preExisting[record.ID] {
		idx.absorbed[record.ID] = record
	}
}

// survivors returns all live records of the index in a deterministic order.
func (idx *batchIndex) survivors() []*model.HardwareRecord {
	out := make([]*model.HardwareRecord, 0, len(idx.byID))
	for _, record := range idx.byID {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// deleted returns the pre-existing records absorbed during the batch,
// their rows must be removed from the store.
func (idx *batchIndex) deleted() []*model.HardwareRecord {
	out := make([]*model.HardwareRecord, 0, len(idx.absorbed))
	for _, record := range idx.absorbed {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
