package lookup

import (
	"context"

	"github.com/partdex/partdex/internal/pkg/marketapi"
	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

// marketFetcher fetches completed sales and active listings from the
// marketplace API and turns them into price observations.
type marketFetcher struct {
	client *marketapi.Client
}

func NewMarketFetcher(client *marketapi.Client) Fetcher {
	return &marketFetcher{client: client}
}

func (f *marketFetcher) Fetch(ctx context.Context, identifier, currency string) ([]model.PriceObservation, error) {
	errs := errors.NewMultiError()
	var out []model.PriceObservation

	completed, _, err := f.client.SearchCompleted(ctx, identifier, currency)
	if err != nil {
		errs.AppendWithPrefix(err, "completed listings")
	}
	for _, listing := range completed {
		out = append(out, listing.Observation(identifier))
	}

	active, _, err := f.client.SearchActive(ctx, identifier, currency)
	if err != nil {
		errs.AppendWithPrefix(err, "active listings")
	}
	for _, listing := range active {
		out = append(out, listing.Observation(identifier))
	}

	// A partial result counts, the fetch fails only when every source failed
	if len(out) == 0 && errs.Len() > 0 {
		return nil, errs.ErrorOrNil()
	}
	return out, nil
}
