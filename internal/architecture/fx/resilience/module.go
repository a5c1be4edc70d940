package resilience

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the circuit breaker factory that guards journal writes
// (internal/resilience): any failed write through the "journal-write"
// breaker, including one refused while the breaker is open, halts the
// pair (spec §7 JournalWriteFailure).
var Module = fx.Options(
	fx.Provide(NewCircuitBreakerFactory),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, logger *zap.Logger, breakers *CircuitBreakerFactory) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("resilience components stopping", zap.Float64("journal_write_success_rate", breakers.GetMetrics().GetSuccessRate("journal-write")))
			return nil
		},
	})
}
