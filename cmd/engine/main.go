// Command engine boots the matching engine: one Matcher per configured
// pair, journaled through a circuit-broken bbolt-backed durability sink,
// fanned out to the in-process event bus and an external NATS publisher,
// snapshotted periodically, and projected into Postgres for reporting.
// Wiring follows the teacher's go.uber.org/fx module composition style
// (internal/architecture/fx/{workerpool,resilience}).
package main

import (
	"context"
	"flag"
	"fmt"

	"go.etcd.io/bbolt"
	"go.uber.org/fx"
	"go.uber.org/zap"

	fxresilience "github.com/obmatch/matchcore/internal/architecture/fx/resilience"
	"github.com/obmatch/matchcore/internal/architecture/fx/workerpool"
	"github.com/obmatch/matchcore/internal/config"
	"github.com/obmatch/matchcore/internal/decimal"
	"github.com/obmatch/matchcore/internal/domain"
	"github.com/obmatch/matchcore/internal/eventbus"
	"github.com/obmatch/matchcore/internal/gateway"
	"github.com/obmatch/matchcore/internal/idgen"
	"github.com/obmatch/matchcore/internal/journal"
	"github.com/obmatch/matchcore/internal/matcher"
	"github.com/obmatch/matchcore/internal/metrics"
	"github.com/obmatch/matchcore/internal/orderbook"
	"github.com/obmatch/matchcore/internal/persistence"
	"github.com/obmatch/matchcore/internal/resilience"
	"github.com/obmatch/matchcore/internal/router"
	"github.com/obmatch/matchcore/internal/selftrade"
	"github.com/obmatch/matchcore/internal/snapshot"
)

var configPath = flag.String("config", "./config/engine.yaml", "path to engine configuration")

func main() {
	flag.Parse()

	app := fx.New(
		fx.Supply(*configPath),
		fx.Provide(
			zap.NewProduction,
			newConfigLoader,
			newConfig,
			newJournalDB,
			newJournal,
			newSnapshotStore,
			newBus,
			newExternalPublisher,
			newSelftradeRegistry,
			newRouter,
		),
		workerpool.Module,
		fxresilience.Module,
		metrics.Module,
		gateway.Module,
		fx.Invoke(registerPairs, bridgeEventsToExternal, startIndexer),
	)
	app.Run()
}

func newConfigLoader(path string) (*config.Loader, error) {
	return config.NewLoader(path)
}

func newConfig(loader *config.Loader) (config.Config, error) {
	return loader.Current()
}

func newJournalDB(cfg config.Config) (*bbolt.DB, error) {
	return bbolt.Open(cfg.Journal.Path, 0o600, nil)
}

func newJournal(db *bbolt.DB, cfg config.Config, logger *zap.Logger) (*journal.Journal, error) {
	mode := journal.SyncStrict
	if cfg.Journal.SyncMode == "batched" {
		mode = journal.SyncBatched
	}
	return journal.Open(cfg.Journal.Path, mode, logger)
}

func newSnapshotStore(db *bbolt.DB) (*snapshot.BoltStore, error) {
	return snapshot.NewBoltStore(db)
}

func newBus(logger *zap.Logger) *eventbus.Bus {
	return eventbus.New(logger)
}

func newExternalPublisher(cfg config.Config) (*eventbus.ExternalPublisher, error) {
	if cfg.NATSUrl == "" {
		return nil, nil
	}
	return eventbus.NewExternalPublisher(cfg.NATSUrl)
}

func newSelftradeRegistry(cfg config.Config) (*selftrade.Registry, error) {
	return selftrade.NewRegistry(cfg.EngineVersion)
}

func newRouter(logger *zap.Logger, pools *workerpool.WorkerPoolFactory) *router.Router {
	return router.New(logger, pools)
}

// snapshotDepth is the number of price levels per side a periodic
// snapshot retains (spec §4.J / §6 snapshot_depth).
const snapshotDepth = 20

// fanoutSink publishes every matcher event to the durable journal (via the
// circuit breaker) and the in-process event bus, and drives the pair's
// periodic snapshotter off the same event stream; a journal failure halts
// the pair (surfaced through the returned error), a bus publish failure
// or snapshot-save failure never does. Publish always runs on the pair's
// single-writer drain loop (internal/router), so calling the snapshotter
// and reading book state from here is race-free without extra locking.
type fanoutSink struct {
	guarded *resilience.GuardedSink
	bus     *eventbus.Bus
	logger  *zap.Logger

	snap    *snapshot.Snapshotter
	bookFor func() *orderbook.Book
}

func (f *fanoutSink) Publish(ev domain.Event) error {
	if err := f.guarded.Publish(ev); err != nil {
		return err
	}
	if err := f.bus.Publish(ev); err != nil {
		f.logger.Warn("event bus publish failed", zap.String("pair", ev.Pair), zap.Error(err))
	}
	if f.snap != nil && f.snap.OnEvent() {
		payload := f.bookFor().DepthSnapshot(snapshotDepth)
		if err := f.snap.Save(context.Background(), payload, ev.Seq); err != nil {
			f.logger.Warn("snapshot save failed", zap.String("pair", ev.Pair), zap.Error(err))
		}
	}
	return nil
}

func pairConfigFrom(s config.PairSettings) (domain.PairConfig, error) {
	tick, err := decimal.NewFromString(s.TickSize, s.PriceScale)
	if err != nil {
		return domain.PairConfig{}, fmt.Errorf("pair %s: tick_size: %w", s.Pair, err)
	}
	lot, err := decimal.NewFromString(s.LotSize, s.QtyScale)
	if err != nil {
		return domain.PairConfig{}, fmt.Errorf("pair %s: lot_size: %w", s.Pair, err)
	}
	minQty := decimal.Zero(s.QtyScale)
	if s.MinQty != "" {
		minQty, err = decimal.NewFromString(s.MinQty, s.QtyScale)
		if err != nil {
			return domain.PairConfig{}, fmt.Errorf("pair %s: min_qty: %w", s.Pair, err)
		}
	}
	return domain.PairConfig{
		Pair:       s.Pair,
		TickSize:   tick,
		LotSize:    lot,
		MinQty:     minQty,
		PriceScale: s.PriceScale,
		QtyScale:   s.QtyScale,
		Disabled:   s.Disabled,
	}, nil
}

func registerPairs(
	lc fx.Lifecycle,
	cfg config.Config,
	journalDB *bbolt.DB,
	j *journal.Journal,
	snapStore *snapshot.BoltStore,
	bus *eventbus.Bus,
	breakers *fxresilience.CircuitBreakerFactory,
	stp *selftrade.Registry,
	r *router.Router,
	logger *zap.Logger,
) error {
	for _, ps := range cfg.Pairs {
		pairCfg, err := pairConfigFrom(ps)
		if err != nil {
			return err
		}
		policy, err := stp.Resolve(ps.STPPolicy)
		if err != nil {
			return fmt.Errorf("pair %s: self-trade policy: %w", ps.Pair, err)
		}

		snap, err := snapshot.New(ps.Pair, snapshot.Config{Frequency: cfg.Snapshot.Frequency, EventThreshold: cfg.Snapshot.EventThreshold}, snapStore, logger)
		if err != nil {
			return fmt.Errorf("pair %s: snapshotter: %w", ps.Pair, err)
		}

		guarded := resilience.NewGuardedSink(ps.Pair, j, breakers)
		sink := &fanoutSink{guarded: guarded, bus: bus, logger: logger, snap: snap}
		ids := idgen.NewGenerator(ps.Pair)

		m := matcher.New(pairCfg, policy, ids, sink, nil)
		sink.bookFor = m.Book
		r.RegisterPair(ps.Pair, m, cfg.Router.QueueDepth, cfg.Router.CommandsPerSecond)

		logger.Info("pair registered", zap.String("pair", ps.Pair))
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return j.Close()
		},
	})
	return nil
}

func bridgeEventsToExternal(lc fx.Lifecycle, bus *eventbus.Bus, ext *eventbus.ExternalPublisher, logger *zap.Logger) {
	if ext == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return bus.Subscribe(ctx, func(ev domain.Event) error {
				if err := ext.Publish(ev); err != nil {
					logger.Warn("external publish failed", zap.String("pair", ev.Pair), zap.Error(err))
				}
				return nil
			})
		},
		OnStop: func(context.Context) error {
			return ext.Close()
		},
	})
}

func startIndexer(lc fx.Lifecycle, bus *eventbus.Bus, cfg config.Config, logger *zap.Logger) error {
	if cfg.PostgresDSN == "" {
		return nil
	}
	ix, err := persistence.OpenIndexer(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("indexer: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return bus.Subscribe(ctx, func(ev domain.Event) error {
				if err := ix.Handle(ev); err != nil {
					logger.Warn("indexer handle failed", zap.String("pair", ev.Pair), zap.Error(err))
				}
				return nil
			})
		},
		OnStop: func(context.Context) error {
			return ix.Close()
		},
	})
	return nil
}
