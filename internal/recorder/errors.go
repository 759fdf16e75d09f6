package recorder

import (
	"context"
	"errors"
)

var (
	// ErrNotLive means the account has no active broadcast right now.
	ErrNotLive = errors.New("user is not currently live")

	// ErrLiveURLUnavailable means the account is live but no pull URL could
	// be obtained for the broadcast.
	ErrLiveURLUnavailable = errors.New("unable to retrieve live streaming url")

	// ErrConnection marks network-level failures: refused or dropped
	// connections, malformed responses, stalled streams.
	ErrConnection = errors.New("connection error")

	// ErrCountryBlocked means the platform refuses service from the current
	// network location. Retrying cannot help.
	ErrCountryBlocked = errors.New("country is blacklisted by the platform")
)

// Outcome labels used for metrics and logs.
const (
	OutcomeDone           = "done"
	OutcomeNotLive        = "not_live"
	OutcomeURLUnavailable = "url_unavailable"
	OutcomeConnection     = "connection_error"
	OutcomeCountryBlocked = "country_blocked"
	OutcomeStopped        = "stopped"
	OutcomeFailed         = "failed"
)

// Outcome classifies the error returned by a session or controller.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeDone
	case errors.Is(err, ErrNotLive):
		return OutcomeNotLive
	case errors.Is(err, ErrLiveURLUnavailable):
		return OutcomeURLUnavailable
	case errors.Is(err, ErrCountryBlocked):
		return OutcomeCountryBlocked
	case errors.Is(err, context.Canceled):
		return OutcomeStopped
	case errors.Is(err, ErrConnection):
		return OutcomeConnection
	default:
		return OutcomeFailed
	}
}
