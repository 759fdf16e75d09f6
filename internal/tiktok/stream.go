package tiktok

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"live-recorder/internal/recorder"
)

// ErrChunkIdle is wrapped into the error returned when no media arrived
// within the idle timeout.
var ErrChunkIdle = errors.New("no media received within idle timeout")

const chunkSize = 64 * 1024

// chunkStream reads an HTTP body as chunks. Every read is guarded by an idle
// timer that closes the body when it fires.
type chunkStream struct {
	body     io.ReadCloser
	idle     time.Duration
	buf      []byte
	err      error
	timedOut atomic.Bool
}

func newChunkStream(body io.ReadCloser, idle time.Duration) *chunkStream {
	return &chunkStream{body: body, idle: idle, buf: make([]byte, chunkSize)}
}

// Next implements recorder.ChunkStream.
func (s *chunkStream) Next() ([]byte, error) {
	for {
		if s.err != nil {
			return nil, s.err
		}
		timer := time.AfterFunc(s.idle, func() {
			s.timedOut.Store(true)
			s.body.Close()
		})
		n, err := s.body.Read(s.buf)
		timer.Stop()

		if err != nil {
			s.err = s.classify(err)
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return chunk, nil
		}
	}
}

func (s *chunkStream) classify(err error) error {
	switch {
	case s.timedOut.Load():
		return fmt.Errorf("%w: %w", recorder.ErrConnection, ErrChunkIdle)
	case errors.Is(err, io.EOF):
		return io.EOF
	default:
		return fmt.Errorf("%w: %w", recorder.ErrConnection, err)
	}
}

// Close implements recorder.ChunkStream.
func (s *chunkStream) Close() error {
	return s.body.Close()
}
