package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voltplan/voltplan/internal/store"
)

// DefaultHousekeepingInterval matches the hourly sweep of expired sessions
// and access codes.
const DefaultHousekeepingInterval = time.Hour

// Housekeeping periodically reaps expired refresh tokens and spent or
// expired access codes.
type Housekeeping struct {
	store    store.Store
	interval time.Duration
	log      *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewHousekeeping(st store.Store, interval time.Duration, log *slog.Logger) *Housekeeping {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	return &Housekeeping{
		store:    st,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. One sweep runs immediately so a restart
// doesn't wait a full interval to clear backlog.
func (h *Housekeeping) Start(ctx context.Context) {
	go func() {
		defer close(h.done)

		h.sweep(ctx)

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				h.sweep(ctx)
			case <-h.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (h *Housekeeping) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Housekeeping) sweep(ctx context.Context) {
	tokens, err := h.store.RefreshTokens().DeleteExpired(ctx)
	if err != nil {
		h.log.Error("sweep expired refresh tokens failed", "error", err)
	}

	codes, err := h.store.AccessCodes().DeleteExpired(ctx)
	if err != nil {
		h.log.Error("sweep access codes failed", "error", err)
	}

	if tokens > 0 || codes > 0 {
		h.log.Info("housekeeping sweep", "refresh_tokens", tokens, "access_codes", codes)
	}
}
