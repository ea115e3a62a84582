package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jihokoo/spotmission/internal/logger"
)

const defaultSweepInterval = 24 * time.Hour

type refreshStore interface {
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// Reaper purges expired refresh rows on a fixed schedule. It only removes
// rows that refresh already rejects, so it is safe next to live traffic.
// Failures are logged and never reach request serving paths.
type Reaper struct {
	interval time.Duration
	store    refreshStore
	logger   logger.Logger
	now      func() time.Time

	sweeping atomic.Bool
}

func NewReaper(interval time.Duration, store refreshStore, l logger.Logger) *Reaper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Reaper{
		interval: interval,
		store:    store,
		logger:   l,
		now:      time.Now,
	}
}

// Run fires sweeps until the context is cancelled. The returned channel is
// closed once the loop and any in-flight sweep have stopped.
// Firings never overlap: if a sweep is still running when the next trigger
// fires, that firing is skipped.
func (r *Reaper) Run(ctx context.Context) <-chan struct{} {
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		var inflight sync.WaitGroup
		defer inflight.Wait()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !r.sweeping.CompareAndSwap(false, true) {
					r.logger.Warn("previous sweep still running, skipping this firing")
					continue
				}

				inflight.Add(1)
				go func() {
					defer inflight.Done()
					defer r.sweeping.Store(false)
					r.sweep(ctx)
				}()
			}
		}
	}()

	return stopped
}

// SweepOnce runs a single sweep, useful for on-demand cleanup
func (r *Reaper) SweepOnce(ctx context.Context) (int64, error) {
	return r.store.DeleteExpiredBefore(ctx, r.now())
}

func (r *Reaper) sweep(ctx context.Context) {
	deleted, err := r.store.DeleteExpiredBefore(ctx, r.now())
	if err != nil {
		// Degrades storage hygiene only, next firing retries
		r.logger.Error("expired token sweep failed", "error", err.Error())
		return
	}

	r.logger.Info("expired token sweep done", "deleted", deleted)
}
