package location

import (
	"context"
	"sync"
	"time"

	"ridelink/internal/domain/geo"
)

// PositionSource produces the current device or vehicle position.
type PositionSource interface {
	Current(ctx context.Context) (geo.Point, error)
}

// Watcher samples a position source at a fixed interval. A failed
// sample falls back to the last known position; cancellation stops
// emission with no trailing event.
type Watcher struct {
	source   PositionSource
	interval time.Duration

	mu        sync.Mutex
	lastKnown *geo.Point
}

func NewWatcher(source PositionSource, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Watcher{source: source, interval: interval}
}

// LastKnown returns the most recent successful fix, if any.
func (w *Watcher) LastKnown() (geo.Point, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastKnown == nil {
		return geo.Point{}, false
	}
	return *w.lastKnown, true
}

// Watch emits one position per tick until ctx is cancelled. When the
// source fails and a last-known fix exists, that fix is re-emitted;
// with no fallback the typed error is reported and sampling continues.
// The callback is never invoked after cancellation is observed.
func (w *Watcher) Watch(ctx context.Context, onPosition func(geo.Point), onError func(*PositioningError)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		point, err := w.sample(ctx)

		// Re-check after the (possibly slow) sample so a cancelled
		// watch never produces a trailing emission.
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err != nil {
			if last, ok := w.LastKnown(); ok {
				onPosition(last)
				continue
			}
			if onError != nil {
				onError(err)
			}
			continue
		}
		onPosition(point)
	}
}

func (w *Watcher) sample(ctx context.Context) (geo.Point, *PositioningError) {
	sampleCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	point, err := w.source.Current(sampleCtx)
	if err != nil {
		cause := CauseUnknown
		if sampleCtx.Err() == context.DeadlineExceeded {
			cause = CauseTimeout
		}
		return geo.Point{}, ClassifyPositioning(err, cause)
	}
	if err := point.Validate(); err != nil {
		return geo.Point{}, &PositioningError{Cause: CauseUnavailable, Err: err}
	}

	w.mu.Lock()
	w.lastKnown = &point
	w.mu.Unlock()
	return point, nil
}
