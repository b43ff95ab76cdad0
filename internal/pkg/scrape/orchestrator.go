// Package scrape orchestrates the daily scrape job: the configured sources
// produce observed records onto a channel and a bounded worker group merges
// them into the canonical state. A failed run is retried a fixed number of
// times with a fixed delay, then the job gives up until the next cycle.
package scrape

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/partdex/partdex/internal/pkg/catalog/merge"
	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/service/common/servicectx"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

// Source is one extraction collaborator, it turns fetched pages into
// observed records. The extraction mechanics are out of the core's scope.
type Source interface {
	Name() string
	Scrape(ctx context.Context, out chan<- *model.HardwareRecord) error
}

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
	Process() *servicectx.Process
}

type Orchestrator struct {
	config  Config
	clock   clockwork.Clock
	logger  log.Logger
	engine  *merge.Engine
	sources []Source
}

func NewOrchestrator(d dependencies, engine *merge.Engine, sources []Source, cfg Config) *Orchestrator {
	return &Orchestrator{
		config:  cfg,
		clock:   d.Clock(),
		logger:  d.Logger().WithComponent("scrape"),
		engine:  engine,
		sources: sources,
	}
}

// Start schedules the daily job until shutdown.
func (o *Orchestrator) Start(d dependencies) {
	ctx, cancel := context.WithCancelCause(context.Background())
	wg := &sync.WaitGroup{}
	d.Process().OnShutdown(func(ctx context.Context) {
		o.logger.Info(ctx, "received shutdown request")
		cancel(errors.New("shutting down: scrape"))
		wg.Wait()
		o.logger.Info(ctx, "shutdown done")
	})

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := o.clock.NewTicker(o.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				o.runWithRetry(ctx)
			}
		}
	}()
}

// runWithRetry retries a failed run with a fixed delay, a bounded number of
// times. After the last attempt it only logs, there is no retry storm.
func (o *Orchestrator) runWithRetry(ctx context.Context) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.config.RetryDelay), uint64(o.config.RetryCount)),
		ctx,
	)
	err := backoff.Retry(func() error {
		if err := o.RunOnce(ctx); err != nil {
			o.logger.Warnf(ctx, "scrape run failed, will retry: %s", err)
			return err
		}
		return nil
	}, policy)
	if err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Errorf(ctx, `scrape job gave up after "%d" retries: %s`, o.config.RetryCount, err)
	}
}

// RunOnce executes one whole scrape cycle across all sources.
// Failures of single records are logged and skipped, a source failure
// fails the run as a whole so it can be retried.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	records := make(chan *model.HardwareRecord)
	merged, skipped := 0, 0
	var counters sync.Mutex
	mergeErrs := errors.NewMultiError()

	// Bounded workers replace the original listener registry, every worker
	// drains the same channel. A failed record never stops the drain loop,
	// a blocked producer must not wait on an abandoned channel. Merge
	// failures are collected and fail the run once it has completed.
	workers := &sync.WaitGroup{}
	for i := 0; i < o.config.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for record := range records {
				if _, err := o.engine.ResolveAndMerge(ctx, record); err != nil {
					if merge.IsValidationError(err) {
						o.logger.Warnf(ctx, "record skipped: %s", err)
						counters.Lock()
						skipped++
						counters.Unlock()
					} else {
						o.logger.Errorf(ctx, "record merge failed: %s", err)
						mergeErrs.Append(err)
					}
					continue
				}
				counters.Lock()
				merged++
				counters.Unlock()
			}
		}()
	}

	// Producers push onto the shared channel
	producers, producersCtx := errgroup.WithContext(ctx)
	for _, source := range o.sources {
		source := source
		producers.Go(func() error {
			if err := source.Scrape(producersCtx, records); err != nil {
				return errors.PrefixErrorf(err, `source "%s"`, source.Name())
			}
			return nil
		})
	}

	producerErr := producers.Wait()
	close(records)
	workers.Wait()

	o.logger.Infof(ctx, `scrape run finished, "%d" records merged, "%d" skipped`, merged, skipped)

	errs := errors.NewMultiError()
	errs.Append(producerErr, mergeErrs.ErrorOrNil())
	return errs.ErrorOrNil()
}
