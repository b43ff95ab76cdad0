package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partdex/partdex/internal/pkg/model"
)

func TestStore_RecordsAreCopied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	record := &model.HardwareRecord{
		ID:    "r1",
		Type:  model.TypeCPU,
		Model: "Ryzen 5 5600X",
		MPNs:  model.NewIdentifierSet("m1"),
		EANs:  model.NewIdentifierSet(),
	}
	require.NoError(t, s.Save(ctx, record))

	// Mutating the input or the result must not leak into the store
	record.MPNs.Add("m2")
	found, err := s.FindByAnyIdentifier(ctx, model.TypeCPU, []string{"m1"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"m1"}, found[0].MPNs.Slice())

	found[0].MPNs.Add("m3")
	again, err := s.FindByAnyIdentifier(ctx, model.TypeCPU, []string{"m1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, again[0].MPNs.Slice())
}

func TestStore_SaveRequiresID(t *testing.T) {
	t.Parallel()
	s := New()
	err := s.Save(context.Background(), &model.HardwareRecord{Model: "X"})
	assert.Error(t, err)
}

func TestStore_AveragePriceWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	saved, err := s.SavePriceObservations(ctx, []model.PriceObservation{
		{MarketplaceDomain: "ebay.de", MarketplaceItemID: "i1", Identifier: "m1", Amount: 100, Currency: "EUR", ObservedAt: now},
		{MarketplaceDomain: "ebay.de", MarketplaceItemID: "i2", Identifier: "m1", Amount: 300, Currency: "EUR", ObservedAt: now},
		{MarketplaceDomain: "ebay.de", MarketplaceItemID: "i3", Identifier: "m1", Amount: 999, Currency: "EUR", ObservedAt: now.Add(-100 * 24 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	average, found, err := s.AveragePrice(ctx, []string{"m1"}, "EUR", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(200), average)

	_, found, err = s.AveragePrice(ctx, []string{"m1"}, "USD", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
}
