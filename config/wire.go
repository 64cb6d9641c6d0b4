package config

import (
	"strings"

	"github.com/jonwraymond/sitehealth/auth"
	"github.com/jonwraymond/sitehealth/fetch"
	"github.com/jonwraymond/sitehealth/health"
	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/probe"
	"github.com/jonwraymond/sitehealth/resilience"
)

// Target returns the run target. The probe list was checked by Validate.
func (c *Config) Target() (probe.Target, error) {
	enabled, err := probe.ParseSet(strings.Join(c.Probes, ","))
	if err != nil {
		return probe.Target{}, err
	}
	return probe.Target{
		SiteURL:     c.SiteURL,
		ContentRoot: c.ContentRoot,
		Timeout:     c.Timeout,
		Enabled:     enabled,
	}, nil
}

// FetchClient builds the HTTP client shared by every probe in a run.
func (c *Config) FetchClient(logger observe.Logger) *fetch.Client {
	fc := fetch.Config{
		Timeout:      c.Fetch.Timeout,
		UserAgent:    c.Fetch.UserAgent,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		Logger:       logger,
	}
	if c.Fetch.Attempts > 0 {
		fc.Retry = resilience.NewRetry(resilience.RetryConfig{MaxAttempts: c.Fetch.Attempts, Jitter: true})
	}
	return fetch.New(fc)
}

// BuildProbes constructs the six probes from their sections.
func (c *Config) BuildProbes(f probe.Fetcher, tools probe.ToolRunner, logger observe.Logger) health.Probes {
	seo := c.SEO
	seo.PostsDir = c.Content.PostsDir
	return health.Probes{
		Availability: probe.NewAvailabilityProbe(f),
		Performance:  probe.NewPerformanceProbe(c.Performance, f, tools, logger),
		SEO:          probe.NewSEOProbe(seo, f, tools, logger),
		Content:      probe.NewContentProbe(c.Content, f, logger),
		Security:     probe.NewSecurityProbe(c.Security, f, tools, logger),
		Build:        probe.NewBuildProbe(c.Build, tools),
	}
}

// OrchestratorConfig returns the orchestrator section with the scoring
// weights attached.
func (c *Config) OrchestratorConfig() health.Config {
	oc := c.Orchestrator
	oc.Weights = c.Scoring
	return oc
}

// Authenticator returns the configured authenticators as a chain, or nil
// when the endpoints are open.
func (c *Config) Authenticator() (auth.Authenticator, error) {
	var chain auth.Chain
	if k := c.Serve.Auth.APIKeys; k != nil {
		a, err := auth.NewAPIKeyAuthenticator(*k)
		if err != nil {
			return nil, err
		}
		chain = append(chain, a)
	}
	if j := c.Serve.Auth.JWT; j != nil {
		a, err := auth.NewJWTAuthenticator(*j)
		if err != nil {
			return nil, err
		}
		chain = append(chain, a)
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}
