// Package router is the command ingress for the matching engine: it owns
// one bounded queue and single-writer goroutine per pair (spec §4.D), and
// uses the teacher's ants-backed WorkerPoolFactory
// (internal/architecture/fx/workerpool) to run each pair's long-running
// drain loop, the single writer that calls the matcher; admission and
// rate shaping run on the caller's goroutine. Per-pair throughput is shaped with
// golang.org/x/time/rate, mirroring the teacher's per-tenant shaping
// pattern but keyed by pair instead of tenant.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/obmatch/matchcore/internal/architecture/fx/workerpool"
	"github.com/obmatch/matchcore/internal/matcher"
)

// ErrQueueFull is returned when a pair's bounded command queue is at
// capacity; the producer is expected to retry or surface backpressure to
// its own caller.
var ErrQueueFull = errors.New("router: pair command queue is full")

// ErrPairHalted is returned once a pair's matcher has halted after a fatal
// invariant violation (spec §7 JournalWriteFailure): no further commands
// are accepted for that pair; the Router has no operation that clears the
// halt, so it lasts for the life of the process.
var ErrPairHalted = errors.New("router: pair is halted")

type command struct {
	place  *matcher.PlaceOrderCommand
	cancel *matcher.CancelOrderCommand
	modify *matcher.ModifyOrderCommand
	done   chan error
}

// pairWorker is the single-writer loop for one pair: it owns the Matcher
// instance and drains its bounded queue strictly in arrival order.
type pairWorker struct {
	pair    string
	m       *matcher.Matcher
	queue   chan command
	limiter *rate.Limiter
	halted  bool
	mu      sync.RWMutex
}

// Router dispatches commands to the per-pair worker responsible for them.
type Router struct {
	logger *zap.Logger
	pools  *workerpool.WorkerPoolFactory

	mu      sync.RWMutex
	workers map[string]*pairWorker
}

// New builds a Router. pools is used to run each pair's drain loop off the
// caller goroutine; the loop itself still processes one command at a time
// per pair.
func New(logger *zap.Logger, pools *workerpool.WorkerPoolFactory) *Router {
	return &Router{
		logger:  logger,
		pools:   pools,
		workers: make(map[string]*pairWorker),
	}
}

// RegisterPair wires m as the matcher for pair, with a bounded command
// queue of depth queueDepth and a token-bucket limiter admitting
// commandsPerSecond commands/sec with the same burst.
func (r *Router) RegisterPair(pair string, m *matcher.Matcher, queueDepth int, commandsPerSecond float64) {
	w := &pairWorker{
		pair:    pair,
		m:       m,
		queue:   make(chan command, queueDepth),
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), int(commandsPerSecond)),
	}
	r.mu.Lock()
	r.workers[pair] = w
	r.mu.Unlock()

	if err := r.pools.SubmitTask("matcher-"+pair, func() error {
		r.drain(w)
		return nil
	}); err != nil {
		r.logger.Error("failed to start pair drain loop", zap.String("pair", pair), zap.Error(err))
	}
}

// drain is the single-writer loop: every command for this pair passes
// through here, one at a time, in FIFO arrival order.
func (r *Router) drain(w *pairWorker) {
	for cmd := range w.queue {
		var err error
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("router: pair %s matcher panicked: %v", w.pair, rec)
					r.haltPair(w, err)
				}
			}()
			switch {
			case cmd.place != nil:
				err = w.m.Place(*cmd.place)
			case cmd.cancel != nil:
				err = w.m.Cancel(*cmd.cancel)
			case cmd.modify != nil:
				err = w.m.Modify(*cmd.modify)
			}
			var inv *matcher.InvariantViolation
			if errors.As(err, &inv) {
				r.haltPair(w, err)
			}
		}()
		cmd.done <- err
	}
}

func (r *Router) haltPair(w *pairWorker, cause error) {
	w.mu.Lock()
	w.halted = true
	w.mu.Unlock()
	r.logger.Error("pair halted after invariant violation", zap.String("pair", w.pair), zap.Error(cause))
}

// Place submits a validated place command to the owning pair's worker,
// applying per-pair rate shaping before admission, and blocks until the
// matcher has processed it (not until any trade settles — only until the
// command has been accepted into the single-writer loop and run).
func (r *Router) Place(ctx context.Context, cmd matcher.PlaceOrderCommand) error {
	w, err := r.workerFor(cmd.Pair)
	if err != nil {
		return err
	}
	if err := w.checkAdmission(ctx); err != nil {
		return err
	}
	return r.submit(ctx, w, command{place: &cmd})
}

// Cancel submits a cancel command the same way Place does.
func (r *Router) Cancel(ctx context.Context, cmd matcher.CancelOrderCommand) error {
	w, err := r.workerFor(cmd.Pair)
	if err != nil {
		return err
	}
	if err := w.checkAdmission(ctx); err != nil {
		return err
	}
	return r.submit(ctx, w, command{cancel: &cmd})
}

// Modify submits an atomic cancel-and-resubmit the same way Place does.
func (r *Router) Modify(ctx context.Context, cmd matcher.ModifyOrderCommand) error {
	w, err := r.workerFor(cmd.Pair)
	if err != nil {
		return err
	}
	if err := w.checkAdmission(ctx); err != nil {
		return err
	}
	return r.submit(ctx, w, command{modify: &cmd})
}

func (w *pairWorker) checkAdmission(ctx context.Context) error {
	w.mu.RLock()
	halted := w.halted
	w.mu.RUnlock()
	if halted {
		return ErrPairHalted
	}
	return w.limiter.Wait(ctx)
}

func (r *Router) workerFor(pair string) (*pairWorker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[pair]
	if !ok {
		return nil, fmt.Errorf("router: unknown pair %q", pair)
	}
	return w, nil
}

func (r *Router) submit(ctx context.Context, w *pairWorker, cmd command) error {
	cmd.done = make(chan error, 1)
	select {
	case w.queue <- cmd:
	default:
		return ErrQueueFull
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
