// Package media remuxes raw recordings with ffmpeg.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"live-recorder/internal/platform/logger"
	"live-recorder/internal/recorder"
)

// FFmpeg implements recorder.Transcoder by stream-copying into MP4.
type FFmpeg struct {
	binaryPath string
	keepRaw    bool
	log        *slog.Logger
}

var _ recorder.Transcoder = (*FFmpeg)(nil)

// NewFFmpeg returns a transcoder running binaryPath. With keepRaw the input
// file is left in place after a successful conversion.
func NewFFmpeg(binaryPath string, keepRaw bool, log *slog.Logger) *FFmpeg {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &FFmpeg{binaryPath: binaryPath, keepRaw: keepRaw, log: log.With(slog.String("component", "ffmpeg"))}
}

// Check verifies that the binary runs and reports its version line.
func (f *FFmpeg) Check(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, f.binaryPath, "-hide_banner", "-version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("running %s: %w", f.binaryPath, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	if !strings.HasPrefix(line, "ffmpeg version") {
		return "", fmt.Errorf("%s does not look like ffmpeg: %q", f.binaryPath, line)
	}
	return line, nil
}

// Convert remuxes inputPath without re-encoding and returns the new path.
func (f *FFmpeg) Convert(ctx context.Context, inputPath string) (string, error) {
	outputPath := recorder.ConvertedPath(inputPath)
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", inputPath, "-c", "copy", outputPath}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binaryPath, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	f.log.Info("converting recording", slog.String("input", inputPath), slog.String("output", outputPath))
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg %s: %w: %s", inputPath, err, strings.TrimSpace(output.String()))
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("ffmpeg produced no output for %s: %w", inputPath, err)
	}

	if !f.keepRaw {
		if err := os.Remove(inputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.log.Warn("removing raw recording failed", slog.String("path", inputPath), slog.String("error", err.Error()))
		}
	}
	return outputPath, nil
}
