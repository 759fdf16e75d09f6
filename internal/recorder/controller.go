package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// UnexpectedErrorPause is the wait after an unclassified failure in
// automatic mode.
const UnexpectedErrorPause = time.Second

// Controller runs sessions for one account according to its Mode.
type Controller struct {
	spec    RecordingSpec
	account Account
	deps    Dependencies
	handle  *SessionHandle
	log     *slog.Logger

	errorPause time.Duration
}

// NewController resolves the account ids and checks the country block.
// A blocked network is fatal when no room id is known or in automatic mode.
func NewController(ctx context.Context, spec RecordingSpec, deps Dependencies, handle *SessionHandle) (*Controller, error) {
	spec = spec.withDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	if deps.Source == nil {
		return nil, errors.New("live source is required")
	}

	account := spec.Account
	blocked, err := deps.Source.CountryBlocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking country block: %w", err)
	}
	if blocked && (account.RoomID == "" || spec.Mode == ModeAutomatic) {
		return nil, ErrCountryBlocked
	}

	if account.User == "" {
		user, err := deps.Source.ResolveUser(ctx, account.RoomID)
		if err != nil {
			return nil, fmt.Errorf("resolving owner of room %s: %w", account.RoomID, err)
		}
		account.User = user
	}
	if account.RoomID == "" && spec.Mode == ModeManual {
		room, err := deps.Source.ResolveRoom(ctx, account.User)
		if err != nil {
			return nil, fmt.Errorf("resolving room of @%s: %w", account.User, err)
		}
		account.RoomID = room
	}

	log := deps.Log.With(slog.String("account", account.Name()), slog.String("mode", string(spec.Mode)))
	if handle != nil {
		log = log.With(slog.String("session_id", handle.ID))
	}
	return &Controller{
		spec:       spec,
		account:    account,
		deps:       deps,
		handle:     handle,
		log:        log,
		errorPause: UnexpectedErrorPause,
	}, nil
}

// Account returns the resolved account.
func (c *Controller) Account() Account { return c.account }

// Run records according to the mode. In manual mode it returns the session
// result. In automatic mode it returns nil once ctx is cancelled, or
// ErrCountryBlocked.
func (c *Controller) Run(ctx context.Context) error {
	if c.spec.Mode == ModeManual {
		return c.attempt(ctx)
	}
	c.log.Info("automatic mode started", slog.Duration("interval", c.spec.AutomaticInterval))
	for {
		if ctx.Err() != nil {
			break
		}
		err := c.attempt(ctx)
		if ctx.Err() != nil {
			break
		}

		var wait time.Duration
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrCountryBlocked):
			c.log.Error("country blocked, leaving automatic mode")
			return err
		case errors.Is(err, ErrNotLive):
			wait = c.spec.AutomaticInterval
			c.log.Info("waiting before next liveness check", slog.Duration("wait", wait))
		case errors.Is(err, ErrConnection):
			wait = c.spec.ConnectionCooldown
			c.log.Warn("connection failed, cooling down",
				slog.Duration("wait", wait), slog.String("error", err.Error()))
		default:
			wait = c.errorPause
			c.log.Error("unexpected error, retrying", slog.String("error", err.Error()))
		}

		c.handle.setPhase(PhaseWaiting)
		if !sleepCtx(ctx, wait) {
			break
		}
	}
	c.log.Info("stop signal received, leaving automatic mode")
	return nil
}

// attempt runs one session, re-resolving the room id in automatic mode.
func (c *Controller) attempt(ctx context.Context) error {
	account := c.account
	if c.spec.Mode == ModeAutomatic && account.User != "" {
		room, err := c.deps.Source.ResolveRoom(ctx, account.User)
		if err != nil {
			c.handle.setError(err)
			return fmt.Errorf("resolving room of @%s: %w", account.User, err)
		}
		account.RoomID = room
	}

	err := NewSession(c.spec, account, c.deps, c.handle).Run(ctx)
	if err == nil {
		c.handle.recordingDone()
		c.handle.setError(nil)
	}
	return err
}
