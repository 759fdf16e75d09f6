package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FlushThreshold is the buffered size that triggers a write to disk.
// Flushes always move whole blocks of this size.
const FlushThreshold = 512 * 1024

// ErrWriterClosed is returned by Append after Finalize.
var ErrWriterClosed = errors.New("stream writer is finalized")

// WriterStats describes what a StreamWriter has accepted and persisted.
type WriterStats struct {
	BytesAccepted int64
	BytesWritten  int64
	Flushes       int
}

// StreamWriter buffers media chunks and persists them to a single file.
// It is owned by one session; the mutex only guards Stats readers.
type StreamWriter struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	buf       []byte
	accepted  int64
	written   int64
	flushes   int
	finalized bool
}

// maxPathAttempts bounds the numbered names tried for one recording.
const maxPathAttempts = 100

// OpenStreamWriter creates the parent directories and a new file at path.
// An existing file is never overwritten: the writer moves on to a numbered
// sibling (see NumberedPath) and Path reports the name actually used.
func OpenStreamWriter(path string) (*StreamWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	for n := 1; n <= maxPathAttempts; n++ {
		candidate := NumberedPath(path, n)
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", candidate, err)
		}
		return &StreamWriter{
			path: candidate,
			file: f,
			buf:  make([]byte, 0, 2*FlushThreshold),
		}, nil
	}
	return nil, fmt.Errorf("opening %s: %d numbered names already exist", path, maxPathAttempts)
}

// Path returns the output file.
func (w *StreamWriter) Path() string { return w.path }

// Append accepts a chunk and flushes when the buffer crosses the threshold.
// A chunk is accepted even when the flush fails; its bytes stay buffered.
func (w *StreamWriter) Append(chunk []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return ErrWriterClosed
	}
	w.buf = append(w.buf, chunk...)
	w.accepted += int64(len(chunk))
	return w.flushLocked()
}

// FlushIfThreshold writes whole threshold-sized blocks when enough is buffered.
func (w *StreamWriter) FlushIfThreshold() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return ErrWriterClosed
	}
	return w.flushLocked()
}

func (w *StreamWriter) flushLocked() error {
	if len(w.buf) < FlushThreshold {
		return nil
	}
	n := len(w.buf) - len(w.buf)%FlushThreshold
	written, err := w.file.Write(w.buf[:n])
	w.consume(written)
	if err != nil {
		return fmt.Errorf("flushing %s: %w", w.path, err)
	}
	w.flushes++
	return nil
}

// consume drops n persisted bytes from the front of the buffer.
func (w *StreamWriter) consume(n int) {
	if n <= 0 {
		return
	}
	w.written += int64(n)
	rest := copy(w.buf, w.buf[n:])
	w.buf = w.buf[:rest]
}

// Finalize persists whatever is still buffered and closes the file.
// The streaming handle is closed first and the tail is written through a
// fresh append-mode handle, so a broken streaming handle cannot lose it.
// Calls after the first are no-ops.
func (w *StreamWriter) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return nil
	}
	w.finalized = true

	var errs []error
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing stream handle: %w", err))
	}

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("reopening %s: %w", w.path, err))...)
	}
	if len(w.buf) > 0 {
		n, err := f.Write(w.buf)
		w.consume(n)
		if err != nil {
			errs = append(errs, fmt.Errorf("writing tail of %s: %w", w.path, err))
		}
	}
	if err := f.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("syncing %s: %w", w.path, err))
	}
	if err := f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing %s: %w", w.path, err))
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of the writer counters.
func (w *StreamWriter) Stats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriterStats{BytesAccepted: w.accepted, BytesWritten: w.written, Flushes: w.flushes}
}

// Buffered is the number of accepted bytes not yet on disk.
func (w *StreamWriter) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}
