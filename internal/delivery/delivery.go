// Package delivery forwards finished recordings to an external sink.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"live-recorder/internal/platform/config"
	"live-recorder/internal/recorder"
)

// New returns the uploader for kind, or nil when delivery is disabled.
func New(ctx context.Context, kind string, secrets *config.Secrets, log *slog.Logger) (recorder.Uploader, error) {
	switch strings.ToLower(kind) {
	case config.DeliveryNone:
		return nil, nil
	case config.DeliveryTelegram:
		tg, err := NewTelegram(secrets.Telegram, log)
		if err != nil {
			return nil, err
		}
		return tg, nil
	case config.DeliveryS3:
		up, err := NewS3(ctx, secrets.S3, log)
		if err != nil {
			return nil, err
		}
		return up, nil
	default:
		return nil, fmt.Errorf("unknown delivery %q", kind)
	}
}
