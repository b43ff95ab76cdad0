// Package sweep implements the quota-aware background scan of tracked
// identifiers against the rate-limited marketplace API. The scan is
// resumable, a persisted cursor survives process restarts, and quota
// exhaustion is expected flow control, not an error.
package sweep

import (
	"context"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/marketapi"
	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/service/common/servicectx"
	"github.com/partdex/partdex/internal/pkg/store"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

const resumeIndexKey = "sweep.resumeIndex"

// PriceAPI is the part of the marketplace API the sweep uses.
type PriceAPI interface {
	SearchCompleted(ctx context.Context, identifier, currency string) ([]marketapi.Listing, marketapi.RateLimit, error)
	RateLimit(ctx context.Context) (marketapi.RateLimit, error)
}

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
	Store() store.Store
	Process() *servicectx.Process
}

type Loop struct {
	config Config
	clock  clockwork.Clock
	logger log.Logger
	store  store.Store
	api    PriceAPI

	// tickLock makes Tick non-reentrant, two overlapping ticks must never
	// compute inconsistent batches.
	tickLock *sync.Mutex

	// state guards the tracked identifier list and the cursor
	state          *sync.Mutex
	tracked        []string
	trackedSet     map[string]bool
	lastChecked    map[string]int64 // unix seconds of the last successful check
	resumeIndex    int
	remainingQuota int
	quotaResetAt   int64 // unix seconds
}

func New(ctx context.Context, d dependencies, api PriceAPI, cfg Config) (*Loop, error) {
	l := &Loop{
		config:         cfg,
		clock:          d.Clock(),
		logger:         d.Logger().WithComponent("pricing.sweep"),
		store:          d.Store(),
		api:            api,
		tickLock:       &sync.Mutex{},
		state:          &sync.Mutex{},
		trackedSet:     make(map[string]bool),
		lastChecked:    make(map[string]int64),
		remainingQuota: -1,
	}

	// Reload the persisted resume cursor
	if value, found, err := l.store.GetRuntimeValue(ctx, resumeIndexKey); err != nil {
		return nil, errors.PrefixError(err, "cannot load sweep resume cursor")
	} else if found {
		if index, err := strconv.Atoi(value); err == nil {
			l.resumeIndex = index
		}
	}
	return l, nil
}

// Start runs the periodic ticker until shutdown.
func (l *Loop) Start(d dependencies) {
	ctx, cancel := context.WithCancelCause(context.Background())
	wg := &sync.WaitGroup{}
	d.Process().OnShutdown(func(ctx context.Context) {
		l.logger.Info(ctx, "received shutdown request")
		cancel(errors.New("shutting down: sweep"))
		wg.Wait()
		l.logger.Info(ctx, "shutdown done")
	})

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := l.clock.NewTicker(l.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if err := l.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
					l.logger.Errorf(ctx, "sweep tick failed: %s", err)
				}
			}
		}
	}()
}

// RegisterIdentifier adds the identifier to the tracked list.
// It is idempotent and safe for concurrent use by the merge engine.
func (l *Loop) RegisterIdentifier(identifier string) {
	if identifier == "" {
		return
	}
	l.state.Lock()
	defer l.state.Unlock()
	if !l.trackedSet[identifier] {
		l.trackedSet[identifier] = true
		l.tracked = append(l.tracked, identifier)
	}
}

// TrackedCount returns the size of the tracked identifier list.
func (l *Loop) TrackedCount() int {
	l.state.Lock()
	defer l.state.Unlock()
	return len(l.tracked)
}

// ResumeIndex returns the current cursor position.
func (l *Loop) ResumeIndex() int {
	l.state.Lock()
	defer l.state.Unlock()
	return l.resumeIndex
}

// Tick runs one sweep round. It is idempotent with zero eligible work
// and returns nil on quota exhaustion.
func (l *Loop) Tick(ctx context.Context) error {
	l.tickLock.Lock()
	defer l.tickLock.Unlock()

	// Refresh the quota window, best-effort, a failure keeps the prior values
	if limit, err := l.api.RateLimit(ctx); err != nil {
		l.logger.Warnf(ctx, "cannot refresh rate limit: %s", err)
	} else {
		l.setQuota(limit)
	}

	now := l.clock.Now()
	l.state.Lock()
	if l.remainingQuota == 0 && now.Unix() < l.quotaResetAt {
		l.state.Unlock()
		l.logger.Debug(ctx, "quota exhausted, sweep skipped")
		return nil
	}
	batch := l.selectBatchLocked(now.Unix())
	listLen := len(l.tracked)
	l.state.Unlock()

	if listLen == 0 {
		return nil
	}
	if len(batch) == 0 {
		// Nothing eligible in a full wrap, advance by one so the cursor
		// is not parked forever on an ineligible window
		l.state.Lock()
		l.resumeIndex = (l.resumeIndex + 1) % listLen
		index := l.resumeIndex
		l.state.Unlock()
		l.persistResumeIndex(ctx, index)
		return nil
	}

	checked, saved := 0, 0
	for _, position := range batch {
		l.state.Lock()
		identifier := l.tracked[position]
		l.state.Unlock()

		listings, limit, err := l.api.SearchCompleted(ctx, identifier, l.config.Currency)
		var quotaErr *marketapi.QuotaExhaustedError
		if errors.As(err, &quotaErr) {
			// Expected flow control: stop the batch, the cursor stays at the
			// identifier that failed so the next tick retries it first
			l.state.Lock()
			l.resumeIndex = position
			l.remainingQuota = 0
			l.quotaResetAt = quotaErr.ResetAt.Unix()
			l.state.Unlock()
			l.persistResumeIndex(ctx, position)
			l.logger.Debugf(ctx, `quota exhausted at "%s", "%d" of "%d" checked`, identifier, checked, len(batch))
			return nil
		}
		if err != nil {
			// Local failure, never aborts the sweep
			l.logger.Warnf(ctx, `sweep of "%s" failed: %s`, identifier, err)
			continue
		}

		l.setQuota(limit)
		observations := make([]model.PriceObservation, 0, len(listings))
		for _, listing := range listings {
			observations = append(observations, listing.Observation(identifier))
		}
		if len(observations) > 0 {
			n, err := l.store.SavePriceObservations(ctx, observations)
			if err != nil {
				return err
			}
			saved += n
		}

		now = l.clock.Now()
		l.state.Lock()
		l.lastChecked[identifier] = now.Unix()
		l.resumeIndex = (position + 1) % listLen
		exhausted := l.remainingQuota == 0 && now.Unix() < l.quotaResetAt
		l.state.Unlock()
		checked++

		if exhausted {
			break
		}
	}

	l.state.Lock()
	index := l.resumeIndex
	l.state.Unlock()
	l.persistResumeIndex(ctx, index)
	l.logger.Infof(ctx, `sweep finished, "%d" identifiers checked, "%d" new observations`, checked, saved)
	return nil
}

// selectBatchLocked scans forward from the cursor, at most once around the
// list, and collects eligible positions up to the batch size.
// The caller must hold the state lock.
func (l *Loop) selectBatchLocked(nowUnix int64) []int {
	listLen := len(l.tracked)
	if listLen == 0 {
		return nil
	}

	batchSize := l.config.BatchHardCap
	if l.remainingQuota >= 0 {
		batchSize = min(l.config.BatchHardCap, max(1, l.remainingQuota))
	}

	recheck := int64(l.config.RecheckInterval.Seconds())
	var batch []int
	start := l.resumeIndex % listLen
	for offset := 0; offset < listLen && len(batch) < batchSize; offset++ {
		position := (start + offset) % listLen
		identifier := l.tracked[position]
		if nowUnix-l.lastChecked[identifier] >= recheck {
			batch = append(batch, position)
		}
	}
	return batch
}

func (l *Loop) setQuota(limit marketapi.RateLimit) {
	l.state.Lock()
	defer l.state.Unlock()
	if limit.Remaining >= 0 {
		l.remainingQuota = limit.Remaining
	} else if l.remainingQuota > 0 {
		// No header in the response, account for the call locally
		l.remainingQuota--
	}
	if !limit.ResetAt.IsZero() {
		l.quotaResetAt = limit.ResetAt.Unix()
	}
}

func (l *Loop) persistResumeIndex(ctx context.Context, index int) {
	if err := l.store.PutRuntimeValue(ctx, resumeIndexKey, strconv.Itoa(index)); err != nil {
		l.logger.Warnf(ctx, "cannot persist sweep resume cursor: %s", err)
	}
}
