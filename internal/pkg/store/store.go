// Package store defines the persistence contract of the catalog.
// Each call is assumed to be atomic, the callers do not rely on
// cross-call transactions.
package store

import (
	"context"
	"time"

	"github.com/partdex/partdex/internal/pkg/model"
)

// RecordStore persists canonical hardware records and their identifier index.
type RecordStore interface {
	// FindByAnyIdentifier returns all records of the type sharing any of the identifiers.
	FindByAnyIdentifier(ctx context.Context, t model.HardwareType, identifiers []string) ([]*model.HardwareRecord, error)
	// FindAllByIdentifiersIn returns a mapping from each known identifier to its record,
	// for the bulk fetch at the start of a batch merge.
	FindAllByIdentifiersIn(ctx context.Context, identifiers []string) (map[string]*model.HardwareRecord, error)
	Save(ctx context.Context, record *model.HardwareRecord) error
	SaveAll(ctx context.Context, records []*model.HardwareRecord) error
	Delete(ctx context.Context, record *model.HardwareRecord) error
	// DistinctManufacturers seeds the known-manufacturers set at startup.
	DistinctManufacturers(ctx context.Context) ([]string, error)
}

// PriceStore persists immutable price observations.
type PriceStore interface {
	// SavePriceObservations writes observations, duplicates by the natural key
	// are ignored. It returns the count of newly written rows.
	SavePriceObservations(ctx context.Context, observations []model.PriceObservation) (int, error)
	// AveragePrice aggregates the local price history of the identifiers
	// since the given time. The bool result reports whether any observation exists.
	AveragePrice(ctx context.Context, identifiers []string, currency string, since time.Time) (int64, bool, error)
}

// NegativeCacheStore persists the "known absent" markers.
type NegativeCacheStore interface {
	// GetNegativeEntry returns the entry or nil when none exists.
	GetNegativeEntry(ctx context.Context, identifier, currency string) (*model.NegativeCacheEntry, error)
	PutNegativeEntry(ctx context.Context, entry model.NegativeCacheEntry) error
	DeleteExpiredNegativeEntries(ctx context.Context, now time.Time) (int, error)
}

// RuntimeStore persists small runtime values, e.g. the sweep resume cursor.
type RuntimeStore interface {
	GetRuntimeValue(ctx context.Context, key string) (string, bool, error)
	PutRuntimeValue(ctx context.Context, key, value string) error
}

type Store interface {
	RecordStore
	PriceStore
	NegativeCacheStore
	RuntimeStore
}
