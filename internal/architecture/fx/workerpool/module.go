package workerpool

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the worker pool factory the router uses to run each
// pair's single-writer drain loop off the caller's goroutine.
var Module = fx.Options(
	fx.Provide(NewWorkerPoolFactory),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, logger *zap.Logger, pools *WorkerPoolFactory) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("releasing matcher pair worker pools")
			pools.Release()
			return nil
		},
	})
}
