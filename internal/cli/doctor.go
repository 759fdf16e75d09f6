package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"live-recorder/internal/delivery"
	"live-recorder/internal/media"
	"live-recorder/internal/tiktok"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd.OutOrStdout())
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			cfg := deps.Config
			ok := true

			if v, err := media.NewFFmpeg(cfg.FFmpegPath, cfg.KeepRaw, deps.Log).Check(ctx); err != nil {
				f.check("ffmpeg", false, err.Error())
				ok = false
			} else {
				f.check("ffmpeg", true, v)
			}

			if err := checkWritable(cfg.OutputDir); err != nil {
				f.check("Output directory", false, err.Error())
				ok = false
			} else {
				f.check("Output directory", true, cfg.OutputDir)
			}

			if cfg.Delivery == "" {
				f.check("Delivery", true, "disabled")
			} else if _, err := delivery.New(ctx, cfg.Delivery, deps.Secrets, deps.Log); err != nil {
				f.check("Delivery", false, err.Error())
				ok = false
			} else {
				f.check("Delivery", true, cfg.Delivery+" configured")
			}

			if len(deps.Secrets.TikTok.Cookies) == 0 {
				f.check("TikTok cookies", true, "none configured, age-restricted lives will fail")
			} else {
				f.check("TikTok cookies", true, fmt.Sprintf("%d configured", len(deps.Secrets.TikTok.Cookies)))
			}

			src, err := tiktok.New(tiktok.Options{Proxy: cfg.Proxy, Cookies: deps.Secrets.TikTok.Cookies, Log: deps.Log})
			if err != nil {
				f.check("TikTok", false, err.Error())
				ok = false
			} else if blocked, err := src.CountryBlocked(ctx); err != nil {
				f.check("TikTok", false, err.Error())
				ok = false
			} else if blocked {
				f.check("TikTok", false, "country is blacklisted, use --proxy")
				ok = false
			} else {
				f.check("TikTok", true, "reachable")
			}

			if ok {
				f.success("\nAll prerequisites met. Ready to record!")
			} else {
				f.warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}

type formatter struct {
	w io.Writer
}

func newFormatter(w io.Writer) *formatter {
	return &formatter{w: w}
}

func (f *formatter) check(name string, ok bool, detail string) {
	mark := "✅"
	if !ok {
		mark = "❌"
	}
	fmt.Fprintf(f.w, "%s %s: %s\n", mark, name, detail)
}

func (f *formatter) success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *formatter) warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}
