package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/sitehealth/auth"
	"github.com/jonwraymond/sitehealth/health"
	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored reports over HTTP and run checks on a schedule",
	Long: `Serve liveness, readiness and the stored reports over HTTP:

  GET /healthz          liveness
  GET /readyz           ready once a report is stored
  GET /report/latest    latest report JSON
  GET /report/history   stored runs with trend (?limit=N)
  GET /report/{id}      stored report of one run
  GET /metrics          Prometheus metrics

The report endpoints require credentials when serve.auth is configured.
With a schedule, checks run periodically and each report is stored.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides serve.addr)")
	serveCmd.Flags().String("schedule", "", "cron schedule for checks (overrides serve.schedule)")
	serveCmd.Flags().Bool("run-now", false, "run a check at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	addr := a.cfg.Serve.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	schedule := a.cfg.Serve.Schedule
	if v, _ := cmd.Flags().GetString("schedule"); v != "" {
		schedule = v
	}
	runNow, _ := cmd.Flags().GetBool("run-now")

	authn, err := a.cfg.Authenticator()
	if err != nil {
		return err
	}
	var wrap func(http.Handler) http.Handler
	if authn != nil {
		wrap = auth.Middleware(authn, a.logger)
	}

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, a.store, wrap)
	mux.Handle("GET /metrics", promhttp.Handler())

	if schedule != "" {
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := c.AddFunc(schedule, func() { a.scheduled(ctx) }); err != nil {
			return fmt.Errorf("schedule %q: %w", schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		a.logger.Info(ctx, "checks scheduled", observe.F("schedule", schedule))
	}
	if runNow {
		go a.scheduled(ctx)
	}

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.logger.Info(ctx, "serving", observe.F("addr", addr), observe.F("auth", authn != nil))

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// scheduled runs one check and stores it. Failures are logged; the server
// keeps running.
func (a *app) scheduled(ctx context.Context) {
	target, err := a.cfg.Target()
	if err != nil {
		a.logger.Error(ctx, "scheduled check", observe.Err(err))
		return
	}
	prev := a.previous(ctx)
	rep, err := a.check(ctx, target)
	if err != nil {
		a.logger.Error(ctx, "scheduled check", observe.Err(err))
		return
	}
	if _, err := a.store.Save(ctx, rep); err != nil {
		a.logger.Error(ctx, "storing report", observe.F("run_id", rep.RunID), observe.Err(err))
		return
	}
	a.logger.Info(ctx, "scheduled check complete",
		observe.F("run_id", rep.RunID),
		observe.F("overall_score", rep.OverallScore),
		observe.F("trend", store.Compare(prev, rep.OverallScore)))
}
