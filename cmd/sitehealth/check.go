package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/sitehealth/health"
	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/probe"
	"github.com/jonwraymond/sitehealth/report"
	"github.com/jonwraymond/sitehealth/store"
	"github.com/jonwraymond/sitehealth/toolexec"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the probes and print the health score",
	Long: `Run the probes against the configured site, score the findings and
store the report.

The exit status is 0 whenever the run completes, whatever the score.

Examples:
  # Run every probe
  sitehealth check

  # Run a subset without storing the report
  sitehealth check --only availability,seo --no-save

  # Print the full report
  sitehealth check --json`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("only", "", "comma-separated probes to run (default all)")
	checkCmd.Flags().Bool("no-save", false, "do not store the report")
	checkCmd.Flags().Bool("json", false, "print the report as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	only, _ := cmd.Flags().GetString("only")
	noSave, _ := cmd.Flags().GetBool("no-save")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	target, err := a.cfg.Target()
	if err != nil {
		return err
	}
	if only != "" {
		if target.Enabled, err = probe.ParseSet(only); err != nil {
			return err
		}
	}

	prev := a.previous(ctx)
	rep, err := a.check(ctx, target)
	if err != nil {
		return err
	}

	var saveErr error
	if !noSave {
		_, saveErr = a.store.Save(ctx, rep)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		if err := report.Encode(out, rep); err != nil {
			return err
		}
	} else {
		printSummary(out, rep, a.cfg.Scoring, prev)
	}
	if saveErr != nil {
		return fmt.Errorf("saving report: %w", saveErr)
	}
	return nil
}

// check runs one pass. Collaborators are built per run so that cached
// responses never outlive it.
func (a *app) check(ctx context.Context, target probe.Target) (*report.Report, error) {
	mw, err := observe.MiddlewareFromObserver(a.obs)
	if err != nil {
		return nil, fmt.Errorf("setting up metrics: %w", err)
	}
	f := a.cfg.FetchClient(a.logger)
	probes := a.cfg.BuildProbes(f, toolexec.NewRunner(), a.logger)

	orch, err := health.NewOrchestrator(a.cfg.OrchestratorConfig(), probes,
		health.WithMiddleware(mw), health.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, target), nil
}

// previous returns the newest stored run, or nil.
func (a *app) previous(ctx context.Context) *store.Entry {
	e, err := a.store.Last()
	switch {
	case errors.Is(err, store.ErrNoLatest):
		return nil
	case err != nil:
		a.logger.Warn(ctx, "reading history", observe.Err(err))
		return nil
	}
	return &e
}
