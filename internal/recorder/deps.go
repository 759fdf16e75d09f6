package recorder

import (
	"context"
	"log/slog"
	"time"

	"live-recorder/internal/platform/logger"
	"live-recorder/internal/platform/metrics"
)

// Dependencies are the collaborators shared by sessions, controllers and
// the monitor. Source is required; the rest may be nil.
type Dependencies struct {
	Source     LiveSource
	Transcoder Transcoder
	Uploader   Uploader
	Events     *Hub
	Metrics    *metrics.Metrics
	Log        *slog.Logger

	// Now overrides the clock used for file names and durations.
	Now func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
