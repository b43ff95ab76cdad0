package model

import (
	"fmt"
	"time"
)

// Condition of a marketplace listing.
type Condition string

const (
	ConditionUnknown     Condition = "unknown"
	ConditionNew         Condition = "new"
	ConditionUsed        Condition = "used"
	ConditionRefurbished Condition = "refurbished"
	ConditionDefective   Condition = "defective"
)

// PriceObservation is one observed marketplace price.
// It is immutable once written, re-observing the same listing is a no-op,
// see NaturalKey.
type PriceObservation struct {
	MarketplaceDomain string       `json:"marketplaceDomain" validate:"required"`
	MarketplaceItemID string       `json:"marketplaceItemId" validate:"required"`
	Identifier        string       `json:"identifier" validate:"required"`
	Amount            int64        `json:"amount"` // minor currency units
	Currency          string       `json:"currency" validate:"required,len=3"`
	ObservedAt        time.Time    `json:"observedAt"`
	Condition         Condition    `json:"condition"`
	RecordType        HardwareType `json:"recordType,omitempty"`
}

// NaturalKey derives the deduplication key of the observation.
func (o *PriceObservation) NaturalKey() string {
	return fmt.Sprintf(
		"%s|%s|%s|%d|%s|%s",
		o.MarketplaceDomain, o.MarketplaceItemID, o.Identifier,
		o.Amount, o.Currency, o.ObservedAt.UTC().Format("2006-01-02"),
	)
}

// NegativeCacheEntry marks an (identifier, currency) pair as known absent,
// remote lookups are blocked until BlockedUntil.
type NegativeCacheEntry struct {
	Identifier   string    `json:"identifier"`
	Currency     string    `json:"currency"`
	BlockedUntil time.Time `json:"blockedUntil"`
}

func (e *NegativeCacheEntry) Key() string {
	return NegativeCacheKey(e.Identifier, e.Currency)
}

func NegativeCacheKey(identifier, currency string) string {
	return identifier + "|" + currency
}
