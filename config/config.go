// Package config loads the sitehealth configuration file.
//
// A file is read, ${VAR} references are substituted from the environment,
// the YAML is decoded over Default(), the result is validated and finally
// secretref values in credential fields are resolved.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/robfig/cron/v3"

	"github.com/jonwraymond/sitehealth/auth"
	"github.com/jonwraymond/sitehealth/health"
	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/probe"
	"github.com/jonwraymond/sitehealth/score"
	"github.com/jonwraymond/sitehealth/secret"
	"github.com/jonwraymond/sitehealth/store"
)

var (
	// ErrNoConfig is returned by Resolve when no candidate path exists.
	ErrNoConfig = errors.New("config: no config file found")
	// ErrInvalid wraps every validation failure reported by Validate.
	ErrInvalid = errors.New("config: invalid")
)

// Config is the whole configuration file.
type Config struct {
	SiteURL     string        `yaml:"site_url" validate:"required,url"`
	ContentRoot string        `yaml:"content_root" validate:"required"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`

	// Probes names the probes to run; empty runs all of them.
	Probes []string `yaml:"probes"`

	Fetch       Fetch                   `yaml:"fetch"`
	Performance probe.PerformanceConfig `yaml:"performance"`
	SEO         probe.SEOConfig         `yaml:"seo"`
	Content     probe.ContentConfig     `yaml:"content"`
	Security    probe.SecurityConfig    `yaml:"security"`
	Build       probe.BuildConfig       `yaml:"build"`

	Scoring      score.Weights  `yaml:"scoring"`
	Orchestrator health.Config  `yaml:"orchestrator"`
	Store        store.Config   `yaml:"store"`
	Observe      observe.Config `yaml:"observe"`
	Serve        Serve          `yaml:"serve"`
}

// Fetch configures the shared HTTP client.
type Fetch struct {
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"gte=0"`
	// Attempts is how many times a transient failure is tried.
	Attempts int `yaml:"attempts" validate:"gte=0"`
}

// Serve configures "sitehealth serve".
type Serve struct {
	Addr string `yaml:"addr" validate:"required"`
	// Schedule is a standard cron expression; empty disables scheduled runs.
	Schedule string `yaml:"schedule"`
	Auth     Auth   `yaml:"auth"`
}

// Auth enables authenticators for the report endpoints. With neither set
// the endpoints are open.
type Auth struct {
	APIKeys *auth.APIKeyConfig `yaml:"api_keys"`
	JWT     *auth.JWTConfig    `yaml:"jwt"`
}

// Enabled reports whether any authenticator is configured.
func (a Auth) Enabled() bool {
	return a.APIKeys != nil || a.JWT != nil
}

// Default returns the configuration used for keys the file leaves out.
func Default() Config {
	return Config{
		ContentRoot: ".",
		Timeout:     60 * time.Second,
		Fetch: Fetch{
			Timeout:  10 * time.Second,
			Attempts: 2,
		},
		Performance: probe.PerformanceConfig{Audit: probe.DefaultAuditTool(), Threshold: 90, MaxStylesheets: 20},
		Security:    probe.SecurityConfig{Audit: probe.DefaultDependencyAudit()},
		Build:       probe.BuildConfig{Tool: probe.DefaultBuildTool()},
		Scoring:     score.DefaultWeights(),
		Orchestrator: health.Config{
			Parallelism:  6,
			RunBudget:    3 * time.Minute,
			ProbeTimeout: 60 * time.Second,
		},
		Store: store.Config{Dir: "health_reports"},
		Observe: observe.Config{
			ServiceName: "sitehealth",
			Tracing:     observe.TracingConfig{Exporter: "none"},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
		Serve: Serve{Addr: ":8080"},
	}
}

// Load reads, validates and resolves the file at path.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(ctx, data)
}

// Parse is Load for in-memory YAML.
func Parse(ctx context.Context, data []byte) (*Config, error) {
	data, err := envsubst.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("expanding env vars: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.SiteURL = strings.TrimSpace(cfg.SiteURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.resolveSecrets(ctx, secret.DefaultResolver()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report problems by their YAML key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the values that need parsing.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := probe.ParseSet(strings.Join(c.Probes, ",")); err != nil {
		return fmt.Errorf("%w: probes: %w", ErrInvalid, err)
	}
	if c.Serve.Schedule != "" {
		if _, err := cron.ParseStandard(c.Serve.Schedule); err != nil {
			return fmt.Errorf("%w: serve.schedule: %w", ErrInvalid, err)
		}
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) resolveSecrets(ctx context.Context, r *secret.Resolver) error {
	var refs []*string
	if k := c.Serve.Auth.APIKeys; k != nil {
		for i := range k.Keys {
			refs = append(refs, &k.Keys[i].Key)
		}
	}
	if j := c.Serve.Auth.JWT; j != nil {
		refs = append(refs, &j.Secret)
	}
	if err := r.ResolveAll(ctx, refs...); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	return nil
}
