// Package lookup provides the on-demand price lookup with a negative cache
// and single-flight deduplication of the remote fetches.
package lookup

import (
	"context"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/store"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

type Status string

const (
	// StatusFound - the local price history answered the lookup.
	StatusFound Status = "FOUND"
	// StatusNotFoundCached - a non-expired negative cache entry blocked the lookup, no network call was made.
	StatusNotFoundCached Status = "NOT_FOUND_CACHED"
	// StatusNotFound - the remote fetch ran and still yielded no price.
	StatusNotFound Status = "NOT_FOUND"
)

// Result is the deterministic, typed outcome of a lookup, it is never an error.
type Result struct {
	Status   Status
	Average  int64
	Currency string
}

// Fetcher runs one remote fetch across all configured sources
// and returns the resulting price observations.
type Fetcher interface {
	Fetch(ctx context.Context, identifier, currency string) ([]model.PriceObservation, error)
}

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
	Store() store.Store
}

type Service struct {
	config  Config
	clock   clockwork.Clock
	logger  log.Logger
	store   store.Store
	fetcher Fetcher

	// flights coalesces concurrent fetches per "identifier|currency" key,
	// only the first caller starts the job, the others attach to it.
	flights *singleflight.Group

	// hot is a best-effort in-memory front of the persisted negative cache,
	// the BlockedUntil value is always re-validated against the clock.
	hot *ristretto.Cache[string, int64]
}

func NewService(d dependencies, fetcher Fetcher, cfg Config) (*Service, error) {
	hot, err := ristretto.NewCache(&ristretto.Config[string, int64]{
		NumCounters: cfg.CacheMaxEntries * 10,
		MaxCost:     cfg.CacheMaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.PrefixError(err, "cannot create negative cache")
	}
	return &Service{
		config:  cfg,
		clock:   d.Clock(),
		logger:  d.Logger().WithComponent("pricing.lookup"),
		store:   d.Store(),
		fetcher: fetcher,
		flights: &singleflight.Group{},
		hot:     hot,
	}, nil
}

// LookupPriceNow answers a price question for the identifier, fetching
// from the remote sources when the local history is empty.
// It blocks at most for the duration of one remote fetch.
func (s *Service) LookupPriceNow(ctx context.Context, identifier, currency string) (Result, error) {
	primary, identifiers, err := s.resolveIdentifier(ctx, identifier)
	if err != nil {
		return Result{}, err
	}

	// A non-expired negative entry means no network call at all
	if s.isBlocked(ctx, primary, currency) {
		return Result{Status: StatusNotFoundCached, Currency: currency}, nil
	}

	// Local aggregated history answers without a remote call
	if average, found, err := s.localAverage(ctx, identifiers, currency); err != nil {
		return Result{}, err
	} else if found {
		return Result{Status: StatusFound, Average: average, Currency: currency}, nil
	}

	// Start or join the deduplicated remote fetch
	if err := s.fetchShared(ctx, primary, currency); err != nil {
		return Result{}, err
	}

	// Re-check the history after the fetch
	if average, found, err := s.localAverage(ctx, identifiers, currency); err != nil {
		return Result{}, err
	} else if found {
		return Result{Status: StatusFound, Average: average, Currency: currency}, nil
	}

	// Still nothing, block further lookups for the TTL
	if err := s.block(ctx, primary, currency); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusNotFound, Currency: currency}, nil
}

// resolveIdentifier maps the raw identifier to the canonical record and its
// identifiers. Unknown identifiers fall back to the raw value, so lookups
// keep working for unrecognized items.
func (s *Service) resolveIdentifier(ctx context.Context, identifier string) (string, []string, error) {
	records, err := s.store.FindAllByIdentifiersIn(ctx, []string{identifier})
	if err != nil {
		return "", nil, err
	}
	if record, found := records[identifier]; found {
		if primary := record.PrimaryIdentifier(); primary != "" {
			return primary, record.Identifiers(), nil
		}
	}
	return identifier, []string{identifier}, nil
}

func (s *Service) localAverage(ctx context.Context, identifiers []string, currency string) (int64, bool, error) {
	since := s.clock.Now().Add(-s.config.HistoryWindow)
	return s.store.AveragePrice(ctx, identifiers, currency, since)
}

// isBlocked checks the negative cache, the hot front first, then the persisted rows.
func (s *Service) isBlocked(ctx context.Context, identifier, currency string) bool {
	key := model.NegativeCacheKey(identifier, currency)
	now := s.clock.Now()

	if blockedUntil, found := s.hot.Get(key); found {
		if now.Unix() < blockedUntil {
			return true
		}
		s.hot.Del(key)
	}

	entry, err := s.store.GetNegativeEntry(ctx, identifier, currency)
	if err != nil {
		s.logger.Warnf(ctx, "cannot read negative cache: %s", err)
		return false
	}
	if entry != nil && entry.BlockedUntil.After(now) {
		s.hot.SetWithTTL(key, entry.BlockedUntil.Unix(), 1, entry.BlockedUntil.Sub(now))
		return true
	}
	return false
}

func (s *Service) block(ctx context.Context, identifier, currency string) error {
	blockedUntil := s.clock.Now().Add(s.config.NegativeCacheTTL)
	entry := model.NegativeCacheEntry{Identifier: identifier, Currency: currency, BlockedUntil: blockedUntil}
	if err := s.store.PutNegativeEntry(ctx, entry); err != nil {
		return err
	}
	s.hot.SetWithTTL(entry.Key(), blockedUntil.Unix(), 1, s.config.NegativeCacheTTL)
	s.logger.Debugf(ctx, `lookup of "%s" (%s) blocked until %s`, identifier, currency, blockedUntil.UTC())
	return nil
}

// fetchShared runs the remote fetch once per key, concurrent callers wait for
// the same job. A fetch failure is logged and treated as an empty result.
// The singleflight entry is dropped on every completion path, a later call
// always gets a fresh job.
func (s *Service) fetchShared(ctx context.Context, identifier, currency string) error {
	key := model.NegativeCacheKey(identifier, currency)
	ch := s.flights.DoChan(key, func() (any, error) {
		observations, err := s.fetcher.Fetch(ctx, identifier, currency)
		if err != nil {
			s.logger.Warnf(ctx, `remote fetch for "%s" failed: %s`, identifier, err)
			return nil, nil
		}
		if len(observations) > 0 {
			saved, err := s.store.SavePriceObservations(ctx, observations)
			if err != nil {
				return nil, err
			}
			s.logger.Debugf(ctx, `fetched "%d" observations for "%s", "%d" new`, len(observations), identifier, saved)
		}
		return nil, nil
	})

	select {
	case result := <-ch:
		return result.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
