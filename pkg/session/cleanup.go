package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupInterval is the default sweep cadence.
const CleanupInterval = 10 * time.Minute

// CleanupRoutine periodically removes expired sessions from a store. Lazy
// deletion in Verify already keeps expired sessions unusable; the sweep only
// stops abandoned sessions from accumulating.
type CleanupRoutine struct {
	Log      *zap.SugaredLogger
	Store    Store
	Interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the background sweep goroutine.
func (cr *CleanupRoutine) Start() {
	interval := cr.Interval
	if interval <= 0 {
		interval = CleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	cr.cancel = cancel
	cr.done = make(chan struct{})

	go func() {
		defer close(cr.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cr.Log.Debug("Running session cleanup task")
				if err := cr.Store.Cleanup(ctx); err != nil {
					cr.Log.Errorw("session cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the sweep and waits for the goroutine to exit. Safe to call
// even if Start was never called.
func (cr *CleanupRoutine) Stop() {
	if cr.cancel != nil {
		cr.cancel()
		<-cr.done
	}
}
