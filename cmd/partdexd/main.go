// Command partdexd runs the catalog node: merge engine, on-demand price
// lookup, quota-aware price sweep and replication to peer nodes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap/zapcore"

	"github.com/partdex/partdex/internal/pkg/catalog/merge"
	"github.com/partdex/partdex/internal/pkg/config"
	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/marketapi"
	"github.com/partdex/partdex/internal/pkg/model"
	"github.com/partdex/partdex/internal/pkg/pricing/lookup"
	"github.com/partdex/partdex/internal/pkg/pricing/sweep"
	"github.com/partdex/partdex/internal/pkg/replication"
	"github.com/partdex/partdex/internal/pkg/replication/peerclient"
	"github.com/partdex/partdex/internal/pkg/scrape"
	"github.com/partdex/partdex/internal/pkg/service/common/servicectx"
	"github.com/partdex/partdex/internal/pkg/store"
	"github.com/partdex/partdex/internal/pkg/store/sqlitestore"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		os.Exit(1)
	}
}

// scope is the dependency container of the service process.
type scope struct {
	clock  clockwork.Clock
	logger log.Logger
	proc   *servicectx.Process
	store  store.Store

	// Lookup is exposed to the API layer
	Lookup *lookup.Service
}

func (s *scope) Clock() clockwork.Clock       { return s.clock }
func (s *scope) Logger() log.Logger           { return s.logger }
func (s *scope) Process() *servicectx.Process { return s.proc }
func (s *scope) Store() store.Store           { return s.store }

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.NewServiceLogger(os.Stdout, level, cfg.LogFormat)
	defer func() {
		_ = logger.Sync()
	}()

	proc, err := servicectx.New(ctx, logger)
	if err != nil {
		return err
	}

	db, err := sqlitestore.New(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	proc.OnShutdown(func(ctx context.Context) {
		if err := db.Close(); err != nil {
			logger.Errorf(ctx, "cannot close database: %s", err)
		}
	})

	d := &scope{clock: clockwork.NewRealClock(), logger: logger, proc: proc, store: db}

	// Remote clients
	marketClient := marketapi.NewClient(cfg.MarketAPI)
	peerClient := peerclient.NewClient(cfg.PeerClient)

	// Background nodes
	sweepLoop, err := sweep.New(ctx, d, marketClient, cfg.Sweep)
	if err != nil {
		return err
	}
	if cfg.Sweep.Enabled {
		sweepLoop.Start(d)
	}

	queue := replication.NewQueue(d, peerClient, cfg.Replication)
	if cfg.Replication.Enabled {
		queue.Start(d)
	}

	// On-demand lookup, exposed to the API layer
	d.Lookup, err = lookup.NewService(d, lookup.NewMarketFetcher(marketClient), cfg.Lookup)
	if err != nil {
		return err
	}

	// Merge engine feeding replication and the sweep loop
	engine, err := merge.NewEngine(ctx, d, &mergeHooks{queue: queue, sweep: sweepLoop, replicate: cfg.Replication.Enabled})
	if err != nil {
		return err
	}

	// Daily scrape job, the sources are registered by the extraction build tags
	orchestrator := scrape.NewOrchestrator(d, engine, sources(), cfg.Scrape)
	if cfg.Scrape.Enabled {
		orchestrator.Start(d)
	}

	logger.Info(ctx, "catalog node started")
	return proc.WaitForShutdown()
}

// mergeHooks wires merge side effects: every canonical survivor is
// replicated and its identifiers join the sweep list.
type mergeHooks struct {
	queue     *replication.Queue
	sweep     *sweep.Loop
	replicate bool
}

func (h *mergeHooks) RecordPersisted(ctx context.Context, record *model.HardwareRecord) {
	if h.replicate {
		h.queue.Enqueue(record)
	}
	for ean := range record.EANs {
		h.sweep.RegisterIdentifier(ean)
	}
}

// sources returns the configured extraction collaborators.
// The extraction mechanics live outside this core.
func sources() []scrape.Source {
	return nil
}
