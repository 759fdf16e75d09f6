package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// DefaultPollInterval is the roster poll cycle.
const DefaultPollInterval = 30 * time.Second

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Roster Roster
	Active *ActiveSet
	// Spec is the template for every controller. Account and Mode are
	// filled in per roster entry.
	Spec         RecordingSpec
	PollInterval time.Duration
	// Wake triggers an immediate poll cycle. Optional.
	Wake <-chan struct{}
}

// Monitor polls a roster and runs one automatic controller per live account.
type Monitor struct {
	roster   Roster
	active   *ActiveSet
	spec     RecordingSpec
	interval time.Duration
	wake     <-chan struct{}
	deps     Dependencies
	log      *slog.Logger

	// fatal holds accounts whose recorder hit an unrecoverable error. They
	// are skipped until the process restarts.
	fatal cmap.ConcurrentMap[string, error]

	wg sync.WaitGroup
}

// NewMonitor returns a monitor. A nil Active set gets a fresh one.
func NewMonitor(cfg MonitorConfig, deps Dependencies) *Monitor {
	deps = deps.withDefaults()
	if cfg.Active == nil {
		cfg.Active = NewActiveSet()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Monitor{
		roster:   cfg.Roster,
		active:   cfg.Active,
		spec:     cfg.Spec,
		interval: cfg.PollInterval,
		wake:     cfg.Wake,
		deps:     deps,
		log:      deps.Log.With(slog.String("component", "monitor")),
		fatal:    cmap.New[error](),
	}
}

// Active exposes the set of accounts being recorded.
func (m *Monitor) Active() *ActiveSet { return m.active }

// Fatal returns the error that retired account, or nil.
func (m *Monitor) Fatal(account string) error {
	err, _ := m.fatal.Get(account)
	return err
}

// Run polls until ctx is cancelled, then waits for every controller.
func (m *Monitor) Run(ctx context.Context) error {
	if m.roster == nil {
		return errors.New("monitor requires a roster")
	}
	m.log.Info("monitor started", slog.Duration("poll_interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	wake := m.wake
	for {
		m.poll(ctx)
		select {
		case <-ctx.Done():
			m.log.Info("stop signal received, waiting for recordings to finish",
				slog.Int("active", m.active.Len()))
			m.wg.Wait()
			m.log.Info("monitor stopped")
			return nil
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
			}
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	accounts, err := m.roster.Accounts(ctx)
	if err != nil {
		m.log.Error("reading roster failed", slog.String("error", err.Error()))
		return
	}
	m.log.Debug("poll cycle", slog.Int("accounts", len(accounts)), slog.Int("active", m.active.Len()))

	for _, user := range accounts {
		if ctx.Err() != nil {
			return
		}
		if m.active.Has(user) || m.fatal.Has(user) {
			continue
		}
		if !m.probe(ctx, user) {
			continue
		}
		h, ok := m.active.Reserve(user)
		if !ok {
			continue
		}
		m.log.Info("account is live, starting recorder", slog.String("account", user), slog.String("session_id", h.ID))
		m.wg.Add(1)
		go m.record(ctx, h)
	}
}

// probe is a side-effect free liveness check. Errors count as offline.
func (m *Monitor) probe(ctx context.Context, user string) bool {
	room, err := m.deps.Source.ResolveRoom(ctx, user)
	if err != nil {
		if errors.Is(err, ErrNotLive) {
			m.deps.Metrics.IncLivenessProbes("offline")
			return false
		}
		m.deps.Metrics.IncLivenessProbes("error")
		m.log.Warn("liveness probe failed", slog.String("account", user), slog.String("error", err.Error()))
		return false
	}
	live, err := m.deps.Source.IsLive(ctx, room)
	if err != nil {
		m.deps.Metrics.IncLivenessProbes("error")
		m.log.Warn("liveness probe failed", slog.String("account", user), slog.String("error", err.Error()))
		return false
	}
	if !live {
		m.deps.Metrics.IncLivenessProbes("offline")
		return false
	}
	m.deps.Metrics.IncLivenessProbes("live")
	return true
}

func (m *Monitor) record(ctx context.Context, h *SessionHandle) {
	defer m.wg.Done()
	defer m.active.Release(h.Account, h)
	log := m.log.With(slog.String("account", h.Account), slog.String("session_id", h.ID))

	spec := m.spec
	spec.Account = Account{User: h.Account}
	spec.Mode = ModeAutomatic

	ctrl, err := NewController(ctx, spec, m.deps, h)
	if err != nil {
		h.setError(err)
		m.retireIfFatal(h.Account, err)
		log.Error("starting recorder failed", slog.String("error", err.Error()))
		return
	}
	defer m.notifyEnded(context.WithoutCancel(ctx), h)

	if err := ctrl.Run(ctx); err != nil {
		h.setError(err)
		m.retireIfFatal(h.Account, err)
		log.Error("recorder exited", slog.String("error", err.Error()))
		return
	}
	log.Info("recorder stopped")
}

func (m *Monitor) retireIfFatal(account string, err error) {
	if !errors.Is(err, ErrCountryBlocked) {
		return
	}
	m.fatal.Set(account, err)
	m.log.Error("account retired from monitoring", slog.String("account", account), slog.String("error", err.Error()))
}

func (m *Monitor) notifyEnded(ctx context.Context, h *SessionHandle) {
	if !m.spec.Deliver || m.deps.Uploader == nil {
		return
	}
	info := h.Info()
	msg := fmt.Sprintf("Live ended: @%s\nRecordings: %d\nBytes: %d\nEnded at: %s",
		info.Account, info.Recordings, info.Bytes, m.deps.Now().UTC().Format(time.RFC3339))
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := m.deps.Uploader.Notify(ctx, msg); err != nil {
		m.deps.Metrics.IncPostprocessErrors("notify")
		m.log.Warn("sending end notice failed", slog.String("account", info.Account), slog.String("error", err.Error()))
	}
}
