package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonwraymond/sitehealth/config"
	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/store"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "sitehealth",
	Short: "Health checks and scoring for a static site",
	Long: `sitehealth checks a deployed site and its local sources (availability,
performance, SEO, content integrity, security, build) and reduces the
findings to a 0-100 health score. Reports are kept on disk with a
pointer to the latest one.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix("SITEHEALTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// app holds what every command needs after the config is loaded.
type app struct {
	cfg    *config.Config
	obs    observe.Observer
	logger observe.Logger
	store  *store.Store
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Resolve(ctx, viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Observe.Logging.Enabled = true
		cfg.Observe.Logging.Level = lvl
	}
	cfg.Observe.Version = version

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	logger := obs.Logger()

	storeCfg := cfg.Store
	storeCfg.Logger = logger
	st, err := store.Open(storeCfg)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	return &app{cfg: cfg, obs: obs, logger: logger, store: st}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.obs.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown", observe.Err(err))
	}
}
