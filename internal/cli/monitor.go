package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"live-recorder/internal/platform/logger"
	"live-recorder/internal/platform/metrics"
	"live-recorder/internal/recorder"
)

const shutdownTimeout = 10 * time.Second

func NewMonitorCmd(deps *Dependencies) *cobra.Command {
	var (
		flags        recordingFlags
		rosterPath   string
		pollInterval time.Duration
		httpAddr     string
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch a roster and record every account that goes live",
		Long: "Reads one account per line from the roster file, re-reading it every cycle, and records\n" +
			"each account that goes live concurrently. Ctrl+C stops polling and finishes open recordings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := deps.Log

			hub := recorder.NewHub()
			engine, err := flags.engine(ctx, deps, hub)
			if err != nil {
				return err
			}

			wake, err := recorder.WatchRoster(ctx, rosterPath, log)
			if err != nil {
				log.Warn("roster watch disabled", slog.String("error", err.Error()))
			}

			active := recorder.NewActiveSet()
			mon := recorder.NewMonitor(recorder.MonitorConfig{
				Roster:       recorder.FileRoster{Path: rosterPath, Log: log},
				Active:       active,
				Spec:         flags.spec(deps),
				PollInterval: pollInterval,
				Wake:         wake,
			}, engine)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return mon.Run(gctx) })

			if httpAddr != "" {
				srv := &http.Server{
					Addr:              httpAddr,
					Handler:           statusRouter(active, hub, deps.Metrics, log),
					ReadHeaderTimeout: 10 * time.Second,
				}
				g.Go(func() error {
					log.Info("status server starting", slog.String("addr", httpAddr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("status server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
					defer cancel()
					return srv.Shutdown(sctx)
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&rosterPath, "roster", deps.Config.RosterFile, "File with one account per line")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", deps.Config.PollInterval, "Time between roster liveness checks")
	cmd.Flags().StringVar(&httpAddr, "http-addr", deps.Config.HTTPAddr, "Status server address (empty disables it)")
	flags.register(cmd, deps)

	return cmd
}

func statusRouter(active *recorder.ActiveSet, hub *recorder.Hub, met *metrics.Metrics, log *slog.Logger) http.Handler {
	h := recorder.NewHandler(active, hub, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log, "/metrics", "/healthz"))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(active.Len()) }).ServeHTTP(w, r)
	})
	h.Routes(r)
	return r
}
