package recorder

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionHandle is the shared, concurrently readable view of one account's
// recording work. The owning controller writes it; the status API reads it.
// All methods are safe on a nil receiver.
type SessionHandle struct {
	ID        string
	Account   string
	StartedAt time.Time

	bytes      atomic.Int64
	recordings atomic.Int64

	mu      sync.RWMutex
	phase   Phase
	path    string
	lastErr string
}

// NewSessionHandle returns a handle with a fresh id.
func NewSessionHandle(account string) *SessionHandle {
	return &SessionHandle{
		ID:        uuid.NewString(),
		Account:   account,
		StartedAt: time.Now().UTC(),
		phase:     PhaseCheckingLive,
	}
}

func (h *SessionHandle) setPhase(p Phase) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.phase = p
	h.mu.Unlock()
}

func (h *SessionHandle) setPath(path string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.path = path
	h.mu.Unlock()
}

func (h *SessionHandle) setError(err error) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if err == nil {
		h.lastErr = ""
	} else {
		h.lastErr = err.Error()
	}
	h.mu.Unlock()
}

func (h *SessionHandle) addBytes(n int) {
	if h == nil {
		return
	}
	h.bytes.Add(int64(n))
}

func (h *SessionHandle) recordingDone() {
	if h == nil {
		return
	}
	h.recordings.Add(1)
}

// Phase returns the most recent phase.
func (h *SessionHandle) Phase() Phase {
	if h == nil {
		return ""
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phase
}

// Info returns a consistent-enough snapshot for reporting.
func (h *SessionHandle) Info() SessionInfo {
	if h == nil {
		return SessionInfo{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return SessionInfo{
		ID:         h.ID,
		Account:    h.Account,
		Phase:      h.phase,
		StartedAt:  h.StartedAt,
		Path:       h.path,
		Bytes:      h.bytes.Load(),
		Recordings: h.recordings.Load(),
		LastError:  h.lastErr,
	}
}
