package recorder

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects between a single recording attempt and the poll-retry loop.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeAutomatic Mode = "automatic"
)

// ParseMode accepts "manual" or "automatic" in any case.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeManual:
		return ModeManual, nil
	case ModeAutomatic:
		return ModeAutomatic, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want manual or automatic)", s)
	}
}

// Phase is the lifecycle state of a recording session as seen from outside.
type Phase string

const (
	PhaseCheckingLive Phase = "checking_live"
	PhaseStreaming    Phase = "streaming"
	PhaseFinalizing   Phase = "finalizing"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
	// PhaseWaiting is reported by an automatic controller between attempts.
	PhaseWaiting Phase = "waiting"
)

// Terminal reports whether no further transitions follow p within a session.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Account identifies a broadcaster by username, room id, or both.
type Account struct {
	User   string `json:"user,omitempty"`
	RoomID string `json:"room_id,omitempty"`
}

// Name is the identifier used in logs, file names and the active set.
func (a Account) Name() string {
	if a.User != "" {
		return a.User
	}
	return a.RoomID
}

// Default timings, matching the original command line tool.
const (
	DefaultAutomaticInterval  = 5 * time.Minute
	DefaultConnectionCooldown = time.Minute
	DefaultFilePrefix         = "TK"
)

// RecordingSpec is the immutable per-invocation recording configuration.
// It is passed by value; nothing in this package mutates a caller's spec.
type RecordingSpec struct {
	Account Account
	Mode    Mode

	// AutomaticInterval is the wait between liveness checks while the
	// account is offline.
	AutomaticInterval time.Duration
	// ConnectionCooldown is the wait after a network failure. Zero selects
	// DefaultConnectionCooldown.
	ConnectionCooldown time.Duration
	// MaxDuration bounds one recording; zero means until the broadcast ends.
	MaxDuration time.Duration

	OutputDir  string
	FilePrefix string

	// Deliver forwards finished recordings to the configured Uploader.
	Deliver bool
}

func (s RecordingSpec) withDefaults() RecordingSpec {
	if s.Mode == "" {
		s.Mode = ModeManual
	}
	if s.AutomaticInterval <= 0 {
		s.AutomaticInterval = DefaultAutomaticInterval
	}
	if s.ConnectionCooldown <= 0 {
		s.ConnectionCooldown = DefaultConnectionCooldown
	}
	if s.FilePrefix == "" {
		s.FilePrefix = DefaultFilePrefix
	}
	return s
}

// Validate reports specs that can never record anything.
func (s RecordingSpec) Validate() error {
	if s.Account.User == "" && s.Account.RoomID == "" {
		return fmt.Errorf("account requires a user or a room id")
	}
	if s.Mode != ModeManual && s.Mode != ModeAutomatic {
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	if s.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative")
	}
	return nil
}

// SessionInfo is a point-in-time view of one active account.
type SessionInfo struct {
	ID         string    `json:"id"`
	Account    string    `json:"account"`
	Phase      Phase     `json:"phase"`
	StartedAt  time.Time `json:"started_at"`
	Path       string    `json:"path,omitempty"`
	Bytes      int64     `json:"bytes"`
	Recordings int64     `json:"recordings"`
	LastError  string    `json:"last_error,omitempty"`
}
