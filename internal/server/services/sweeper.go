package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/jonboulle/clockwork"
)

// TokenSweeper periodically purges expired activation tokens.
type TokenSweeper struct {
	sweep    func(context.Context) (int64, error)
	interval time.Duration
	clock    clockwork.Clock
	log      logging.Logger
}

// NewTokenSweeper creates a sweeper calling sweep every interval.
func NewTokenSweeper(sweep func(context.Context) (int64, error), interval time.Duration, clock clockwork.Clock, log logging.Logger) *TokenSweeper {
	return &TokenSweeper{sweep: sweep, interval: interval, clock: clock, log: log}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *TokenSweeper) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			n, err := w.sweep(ctx)
			if err != nil {
				w.log.Error(ctx, "sweep expired activation tokens", "error", err)
				continue
			}
			if n > 0 {
				w.log.Info(ctx, "expired activation tokens deleted", "count", n)
			}
		case <-ctx.Done():
			w.log.Info(ctx, "token sweeper stopped")
			return
		}
	}
}
