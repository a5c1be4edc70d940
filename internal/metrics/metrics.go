// Package metrics exposes Prometheus metrics for the matching engine,
// adapted from the teacher's internal/metrics fx.Module pattern (a
// registry provided via DI, a promhttp handler registered as an fx
// lifecycle hook) but re-pointed at matcher/router/journal counters
// instead of the teacher's WebSocket/PeerJS gauges, which have no
// counterpart in this domain.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/obmatch/matchcore/internal/config"
)

// Module provides the Prometheus registry, the matching-engine metric
// collectors, and the promhttp server as an fx lifecycle hook.
var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Provide(NewEngineMetrics),
	fx.Invoke(registerHandler),
)

// NewRegistry builds an empty Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// EngineMetrics are the counters and histograms for matching-engine
// activity. No component in this repository requests or updates them.
type EngineMetrics struct {
	OrdersAccepted  *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	Trades          *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
	JournalLatency  *prometheus.HistogramVec
	PairHalted      *prometheus.GaugeVec
}

// NewEngineMetrics registers and returns the engine's metric collectors
// against registry.
func NewEngineMetrics(registry *prometheus.Registry) *EngineMetrics {
	m := &EngineMetrics{
		OrdersAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_orders_accepted_total",
			Help: "Orders accepted, by pair and side.",
		}, []string{"pair", "side"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_orders_rejected_total",
			Help: "Orders rejected, by pair and reason.",
		}, []string{"pair", "reason"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchcore_trades_total",
			Help: "Trades executed, by pair.",
		}, []string{"pair"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchcore_router_queue_depth",
			Help: "Current depth of a pair's command queue.",
		}, []string{"pair"}),
		JournalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchcore_journal_write_seconds",
			Help:    "Latency of journal append calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pair", "mode"}),
		PairHalted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchcore_pair_halted",
			Help: "1 if a pair's matcher has halted after an invariant violation.",
		}, []string{"pair"}),
	}
	registry.MustRegister(m.OrdersAccepted, m.OrdersRejected, m.Trades, m.QueueDepth, m.JournalLatency, m.PairHalted)
	return m
}

func registerHandler(lc fx.Lifecycle, logger *zap.Logger, registry *prometheus.Registry, cfg config.Config) {
	addr := cfg.MetricsAddr
	if addr == "" {
		addr = ":9090"
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting metrics server", zap.String("addr", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping metrics server")
			return server.Shutdown(ctx)
		},
	})
}
