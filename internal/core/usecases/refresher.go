package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/samirrijal/stopgrid/internal/core/ports"
)

// Refresher drives snapshot rebuilds: one on startup, one per interval tick,
// and one shortly after each stop-change event. Change events are debounced
// so an ingest run touching many agencies triggers a single rebuild instead
// of one per message.
type Refresher struct {
	svc      *AccessibilityService
	sub      ports.EventSubscriber
	interval time.Duration
	debounce time.Duration
}

// NewRefresher creates a Refresher. sub may be nil, leaving only the periodic
// rebuild.
func NewRefresher(svc *AccessibilityService, sub ports.EventSubscriber, interval, debounce time.Duration) *Refresher {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Refresher{svc: svc, sub: sub, interval: interval, debounce: debounce}
}

// Run blocks until ctx is canceled. The initial rebuild happens inline so the
// caller knows whether the service came up with data.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.svc.Refresh(ctx); err != nil {
		return err
	}

	changed := make(chan struct{}, 1)
	if r.sub != nil {
		err := r.sub.SubscribeStopsChanged(ctx, func(ctx context.Context, agencySlug string) error {
			slog.Debug("stop change notification", "agency", agencySlug)
			select {
			case changed <- struct{}{}:
			default: // a rebuild is already pending
			}
			return nil
		})
		if err != nil {
			slog.Warn("stop-change subscription unavailable, periodic rebuilds only", "error", err)
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(r.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-changed:
			// Restart the quiet-period timer on every event.
			if pending && !debounce.Stop() {
				<-debounce.C
			}
			debounce.Reset(r.debounce)
			pending = true

		case <-debounce.C:
			pending = false
			r.rebuild(ctx, "stops changed")

		case <-ticker.C:
			r.rebuild(ctx, "interval")
		}
	}
}

func (r *Refresher) rebuild(ctx context.Context, reason string) {
	start := time.Now()
	if err := r.svc.Refresh(ctx); err != nil {
		slog.Error("snapshot rebuild failed", "reason", reason, "error", err)
		return
	}
	slog.Info("snapshot rebuilt", "reason", reason, "took", time.Since(start).String())
}
