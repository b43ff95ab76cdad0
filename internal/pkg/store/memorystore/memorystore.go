// Package memorystore provides an in-memory implementation of the store contract,
// used in tests and as a reference for the query semantics.
package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

type Store struct {
	lock         *sync.Mutex
	records      map[string]*model.HardwareRecord
	observations map[string]model.PriceObservation
	negative     map[string]model.NegativeCacheEntry
	runtime      map[string]string
}

func New() *Store {
	return &Store{
		lock:         &sync.Mutex{},
		records:      make(map[string]*model.HardwareRecord),
		observations: make(map[string]model.PriceObservation),
		negative:     make(map[string]model.NegativeCacheEntry),
		runtime:      make(map[string]string),
	}
}

func (s *Store) FindByAnyIdentifier(_ context.Context, t model.HardwareType, identifiers []string) ([]*model.HardwareRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	wanted := model.NewIdentifierSet(identifiers...)
	var out []*model.HardwareRecord
	for _, record := range s.sortedRecords() {
		if record.Type != t {
			continue
		}
		if record.EANs.Intersects(wanted) || record.MPNs.Intersects(wanted) {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}

func (s *Store) FindAllByIdentifiersIn(_ context.Context, identifiers []string) (map[string]*model.HardwareRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make(map[string]*model.HardwareRecord)
	for _, identifier := range identifiers {
		for _, record := range s.sortedRecords() {
			if record.EANs.Has(identifier) || record.MPNs.Has(identifier) {
				out[identifier] = record.Clone()
				break
			}
		}
	}
	return out, nil
}

func (s *Store) Save(_ context.Context, record *model.HardwareRecord) error {
	if record.ID == "" {
		return errors.New("record id must be set before save")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *Store) SaveAll(ctx context.Context, records []*model.HardwareRecord) error {
	for _, record := range records {
		if err := s.Save(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(_ context.Context, record *model.HardwareRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.records, record.ID)
	return nil
}

func (s *Store) DistinctManufacturers(_ context.Context) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, record := range s.records {
		if record.Manufacturer != "" && !seen[record.Manufacturer] {
			seen[record.Manufacturer] = true
			out = append(out, record.Manufacturer)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SavePriceObservations(_ context.Context, observations []model.PriceObservation) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	saved := 0
	for _, o := range observations {
		key := o.NaturalKey()
		if _, found := s.observations[key]; !found {
			s.observations[key] = o
			saved++
		}
	}
	return saved, nil
}

func (s *Store) AveragePrice(_ context.Context, identifiers []string, currency string, since time.Time) (int64, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	wanted := model.NewIdentifierSet(identifiers...)
	var sum, count int64
	for _, o := range s.observations {
		if o.Currency == currency && wanted.Has(o.Identifier) && !o.ObservedAt.Before(since) {
			sum += o.Amount
			count++
		}
	}
	if count == 0 {
		return 0, false, nil
	}
	return sum / count, true, nil
}

func (s *Store) GetNegativeEntry(_ context.Context, identifier, currency string) (*model.NegativeCacheEntry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if entry, found := s.negative[model.NegativeCacheKey(identifier, currency)]; found {
		return &entry, nil
	}
	return nil, nil
}

func (s *Store) PutNegativeEntry(_ context.Context, entry model.NegativeCacheEntry) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.negative[entry.Key()] = entry
	return nil
}

func (s *Store) DeleteExpiredNegativeEntries(_ context.Context, now time.Time) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	deleted := 0
	for key, entry := range s.negative {
		if !entry.BlockedUntil.After(now) {
			delete(s.negative, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) GetRuntimeValue(_ context.Context, key string) (string, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	value, found := s.runtime[key]
	return value, found, nil
}

func (s *Store) PutRuntimeValue(_ context.Context, key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.runtime[key] = value
	return nil
}

// RecordCount returns the number of live canonical records.
func (s *Store) RecordCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.records)
}

// ObservationCount returns the number of persisted price observations.
func (s *Store) ObservationCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.observations)
}

// sortedRecords returns records in a deterministic order, the caller must hold the lock.
func (s *Store) sortedRecords() []*model.HardwareRecord {
	out := make([]*model.HardwareRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
