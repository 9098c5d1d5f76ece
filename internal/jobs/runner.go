// Package jobs wraps engagement runs with single-flight protection, metrics and
// logging so every trigger (cron, CLI, HTTP) behaves the same.
package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"herald/internal/engage"
	"herald/internal/logging"
	"herald/internal/metrics"
)

// ErrRunInFlight is returned when a run is requested while one is active.
var ErrRunInFlight = errors.New("engagement run already in progress")

// RunFunc performs one engagement pass.
type RunFunc interface {
	Run(ctx context.Context) (engage.RunSummary, error)
}

// Runner allows at most one run at a time.
type Runner struct {
	sched   RunFunc
	running atomic.Bool

	mu      sync.Mutex
	last    LastRun
	hasLast bool
	bg      sync.WaitGroup
}

// LastRun is the outcome of the most recent finished run.
type LastRun struct {
	Summary engage.RunSummary
	Err     error
}

func NewRunner(sched RunFunc) *Runner {
	return &Runner{sched: sched}
}

// RunOnce executes one run unless another is in flight.
func (r *Runner) RunOnce(ctx context.Context, trigger string) (engage.RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		logging.Warn("engage_run_rejected", map[string]any{"trigger": trigger})
		return engage.RunSummary{}, ErrRunInFlight
	}
	defer r.running.Store(false)
	return r.run(ctx, trigger)
}

// Start launches a run in the background. It returns false when a run is
// already in flight.
func (r *Runner) Start(ctx context.Context, trigger string) bool {
	if !r.running.CompareAndSwap(false, true) {
		logging.Warn("engage_run_rejected", map[string]any{"trigger": trigger})
		return false
	}
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		defer r.running.Store(false)
		_, _ = r.run(ctx, trigger)
	}()
	return true
}

func (r *Runner) run(ctx context.Context, trigger string) (engage.RunSummary, error) {
	start := time.Now()
	metrics.EngageRuns.WithLabelValues(trigger).Inc()
	logging.Info("engage_run_start", map[string]any{"trigger": trigger})

	sum, err := r.sched.Run(ctx)
	metrics.ObserveRunDuration(start)

	r.mu.Lock()
	r.last, r.hasLast = LastRun{Summary: sum, Err: err}, true
	r.mu.Unlock()

	if err != nil {
		metrics.EngageRunErrors.Inc()
		logging.Error("engage_run_error", map[string]any{"trigger": trigger, "run_id": sum.RunID, "error": err})
		return sum, err
	}
	if sum.Skipped != "" {
		metrics.EngageRunsSkipped.WithLabelValues(sum.Skipped).Inc()
		logging.Info("engage_run_skipped", map[string]any{"trigger": trigger, "reason": sum.Skipped})
		return sum, nil
	}
	logging.Info("engage_run_done", map[string]any{
		"trigger": trigger, "run_id": sum.RunID, "decisions": sum.Decisions,
		"succeeded": sum.Succeeded, "failed": sum.Failed, "ignored": sum.Ignored,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return sum, nil
}

// Wait blocks until runs launched with Start have returned.
func (r *Runner) Wait() { r.bg.Wait() }

// Running reports whether a run is active.
func (r *Runner) Running() bool { return r.running.Load() }

// Last returns the most recent finished run.
func (r *Runner) Last() (LastRun, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}
