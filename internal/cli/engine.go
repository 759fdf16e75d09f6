package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"live-recorder/internal/delivery"
	"live-recorder/internal/media"
	"live-recorder/internal/recorder"
	"live-recorder/internal/tiktok"
)

// recordingFlags are shared by record and monitor. Defaults come from config.
type recordingFlags struct {
	interval time.Duration
	duration time.Duration
	output   string
	proxy    string
	delivery string
}

func (f *recordingFlags) register(cmd *cobra.Command, deps *Dependencies) {
	cfg := deps.Config
	cmd.Flags().DurationVar(&f.interval, "interval", cfg.AutomaticInterval, "Wait between liveness checks while the account is offline")
	cmd.Flags().DurationVarP(&f.duration, "duration", "d", cfg.MaxDuration, "Maximum length of one recording (0 = until the live ends)")
	cmd.Flags().StringVarP(&f.output, "output", "o", cfg.OutputDir, "Directory for recordings")
	cmd.Flags().StringVar(&f.proxy, "proxy", cfg.Proxy, "HTTP proxy for API calls, e.g. http://127.0.0.1:8080")
	cmd.Flags().StringVar(&f.delivery, "delivery", cfg.Delivery, "Deliver finished recordings to telegram or s3")
}

func (f *recordingFlags) spec(deps *Dependencies) recorder.RecordingSpec {
	return recorder.RecordingSpec{
		AutomaticInterval:  f.interval,
		ConnectionCooldown: deps.Config.ConnectionCooldown,
		MaxDuration:        f.duration,
		OutputDir:          f.output,
		FilePrefix:         deps.Config.FilePrefix,
		Deliver:            f.delivery != "",
	}
}

// engine wires the platform client, transcoder and delivery sink.
func (f *recordingFlags) engine(ctx context.Context, deps *Dependencies, events *recorder.Hub) (recorder.Dependencies, error) {
	src, err := tiktok.New(tiktok.Options{
		Proxy:       f.proxy,
		Cookies:     deps.Secrets.TikTok.Cookies,
		IdleTimeout: deps.Config.ChunkIdleTimeout,
		Log:         deps.Log,
	})
	if err != nil {
		return recorder.Dependencies{}, fmt.Errorf("creating tiktok client: %w", err)
	}
	up, err := delivery.New(ctx, f.delivery, deps.Secrets, deps.Log)
	if err != nil {
		return recorder.Dependencies{}, fmt.Errorf("configuring delivery: %w", err)
	}
	return recorder.Dependencies{
		Source:     src,
		Transcoder: media.NewFFmpeg(deps.Config.FFmpegPath, deps.Config.KeepRaw, deps.Log),
		Uploader:   up,
		Events:     events,
		Metrics:    deps.Metrics,
		Log:        deps.Log,
	}, nil
}
