package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// PumpPause separates consecutive chunk-pump iterations of one session.
const PumpPause = 100 * time.Millisecond

// Session is one recording attempt for one account. It is not reusable.
type Session struct {
	spec    RecordingSpec
	account Account
	deps    Dependencies
	handle  *SessionHandle
	log     *slog.Logger

	pumpPause time.Duration

	phase  Phase
	path   string
	writer *StreamWriter
}

// NewSession prepares an attempt for account. The account must carry a
// room id. handle may be nil.
func NewSession(spec RecordingSpec, account Account, deps Dependencies, handle *SessionHandle) *Session {
	deps = deps.withDefaults()
	log := deps.Log.With(slog.String("account", account.Name()), slog.String("room_id", account.RoomID))
	if handle != nil {
		log = log.With(slog.String("session_id", handle.ID))
	}
	return &Session{
		spec:      spec.withDefaults(),
		account:   account,
		deps:      deps,
		handle:    handle,
		log:       log,
		pumpPause: PumpPause,
	}
}

// Phase returns the last phase the session entered.
func (s *Session) Phase() Phase { return s.phase }

// Path returns the raw output file, empty before streaming starts.
func (s *Session) Path() string { return s.path }

// Stats returns the writer counters, zero before streaming starts.
func (s *Session) Stats() WriterStats {
	if s.writer == nil {
		return WriterStats{}
	}
	return s.writer.Stats()
}

// Run drives the session to done or failed. A cancelled ctx is a clean stop:
// buffered data is still persisted and post-processed, and Run returns nil.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		s.deps.Metrics.IncRecordings(Outcome(err))
	}()

	s.transition(PhaseCheckingLive, nil)
	url, err := s.checkLive(ctx)
	if err != nil {
		return s.fail(err)
	}

	s.writer, err = OpenStreamWriter(OutputPath(s.spec.OutputDir, s.spec.FilePrefix, s.account.Name(), s.deps.Now()))
	if err != nil {
		return s.fail(err)
	}
	s.path = s.writer.Path()
	s.handle.setPath(s.path)

	s.transition(PhaseStreaming, nil)
	s.log.Info("recording started",
		slog.String("path", s.path),
		slog.Duration("max_duration", s.spec.MaxDuration))
	streamErr := s.stream(ctx, url)

	s.transition(PhaseFinalizing, nil)
	s.finalize(context.WithoutCancel(ctx))

	if streamErr != nil {
		return s.fail(streamErr)
	}
	s.transition(PhaseDone, nil)
	return nil
}

func (s *Session) checkLive(ctx context.Context) (string, error) {
	live, err := s.deps.Source.IsLive(ctx, s.account.RoomID)
	if err != nil {
		return "", fmt.Errorf("checking liveness: %w", err)
	}
	if !live {
		return "", fmt.Errorf("@%s: %w", s.account.Name(), ErrNotLive)
	}
	url, err := s.deps.Source.LiveURL(ctx, s.account.RoomID)
	switch {
	case err != nil && (errors.Is(err, ErrConnection) || errors.Is(err, ErrLiveURLUnavailable)):
		return "", fmt.Errorf("resolving live url: %w", err)
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrLiveURLUnavailable, err)
	case url == "":
		return "", ErrLiveURLUnavailable
	}
	return url, nil
}

// stream pumps chunks until the broadcast ends, ctx is cancelled, the
// duration limit is hit, or the transport fails.
func (s *Session) stream(ctx context.Context, url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recording panicked: %v", r)
		}
	}()

	start := s.deps.Now()
	for {
		if ctx.Err() != nil {
			s.log.Info("stop signal received, ending recording")
			return nil
		}
		live, err := s.deps.Source.IsLive(ctx, s.account.RoomID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("re-checking liveness: %w", err)
		}
		if !live {
			s.log.Info("broadcast ended")
			return nil
		}

		stop, err := s.pump(ctx, url, start)
		if err != nil || stop {
			return err
		}
		if !sleepCtx(ctx, s.pumpPause) {
			s.log.Info("stop signal received, ending recording")
			return nil
		}
	}
}

// pump copies one chunk stream into the writer. stop reports that the
// session must not reconnect.
func (s *Session) pump(ctx context.Context, url string, start time.Time) (stop bool, err error) {
	chunks, err := s.deps.Source.Chunks(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return true, nil
		}
		return false, connectionError("opening media stream", err)
	}
	defer chunks.Close()

	for {
		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return false, connectionError("reading media stream", err)
		}

		if err := s.writer.Append(chunk); err != nil {
			// the chunk stays buffered; Finalize retries the write
			s.log.Warn("flush failed", slog.String("error", err.Error()))
		}
		s.handle.addBytes(len(chunk))
		s.deps.Metrics.AddBytesWritten(len(chunk))

		if ctx.Err() != nil {
			s.log.Info("stop signal received, ending recording")
			return true, nil
		}
		if s.spec.MaxDuration > 0 && s.deps.Now().Sub(start) >= s.spec.MaxDuration {
			s.log.Info("max duration reached", slog.Duration("max_duration", s.spec.MaxDuration))
			return true, nil
		}
	}
}

func connectionError(op string, err error) error {
	if errors.Is(err, ErrConnection) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
}

// finalize persists the buffer and hands the file to post-processing.
// Post-processing failures are logged and counted only.
func (s *Session) finalize(ctx context.Context) {
	if err := s.writer.Finalize(); err != nil {
		s.log.Error("finalizing recording failed", slog.String("path", s.path), slog.String("error", err.Error()))
	}
	stats := s.writer.Stats()
	if stats.BytesAccepted == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("removing empty recording failed", slog.String("error", err.Error()))
		}
		s.log.Info("empty recording discarded", slog.String("path", s.path))
		return
	}
	s.log.Info("recording finished",
		slog.String("path", s.path),
		slog.Int64("bytes", stats.BytesWritten),
		slog.Int("flushes", stats.Flushes))

	out := s.path
	if s.deps.Transcoder != nil {
		converted, err := s.deps.Transcoder.Convert(ctx, s.path)
		if err != nil {
			s.deps.Metrics.IncPostprocessErrors("transcode")
			s.log.Error("converting recording failed", slog.String("path", s.path), slog.String("error", err.Error()))
		} else {
			out = converted
			s.handle.setPath(out)
			s.log.Info("recording converted", slog.String("path", out))
		}
	}

	if s.spec.Deliver && s.deps.Uploader != nil {
		if err := s.deps.Uploader.Send(ctx, out); err != nil {
			s.deps.Metrics.IncPostprocessErrors("upload")
			s.log.Error("delivering recording failed", slog.String("path", out), slog.String("error", err.Error()))
			return
		}
		s.log.Info("recording delivered", slog.String("path", out))
	}
}

func (s *Session) transition(p Phase, err error) {
	s.phase = p
	s.handle.setPhase(p)
	s.log.Debug("session phase", slog.String("phase", string(p)))

	e := Event{
		Time:    s.deps.Now().UTC(),
		Account: s.account.Name(),
		Phase:   p,
		Path:    s.path,
	}
	if s.handle != nil {
		e.SessionID = s.handle.ID
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.deps.Events.Publish(e)
}

func (s *Session) fail(err error) error {
	s.handle.setError(err)
	s.transition(PhaseFailed, err)
	if errors.Is(err, ErrNotLive) {
		s.log.Info("account is not live")
	} else {
		s.log.Warn("recording failed", slog.String("error", err.Error()))
	}
	return err
}
