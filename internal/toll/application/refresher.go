package application

import (
	"context"
	"log"
	"time"
)

// Refresher periodically forces a rule refresh so expiry is picked up
// without waiting for a calculation.
type Refresher struct {
	store    *RuleStore
	interval time.Duration
	logger   *log.Logger
}

// NewRefresher constructs a Refresher.
func NewRefresher(store *RuleStore, interval time.Duration, logger *log.Logger) *Refresher {
	if logger == nil {
		logger = log.Default()
	}
	return &Refresher{store: store, interval: interval, logger: logger}
}

// Start runs the refresh loop until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	if r == nil || r.store == nil || r.store.provider == nil || r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	if _, err := r.store.Refresh(ctx); err != nil {
		r.logger.Printf("toll rules scheduled refresh error: %v", err)
	}
}
