package health

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/probe"
	"github.com/jonwraymond/sitehealth/report"
	"github.com/jonwraymond/sitehealth/score"
)

// Probes holds one probe per dimension. A nil probe is reported as disabled.
type Probes struct {
	Availability probe.Probe[probe.Availability]
	Performance  probe.Probe[probe.Performance]
	SEO          probe.Probe[probe.SEO]
	Content      probe.Probe[probe.Content]
	Security     probe.Probe[probe.Security]
	Build        probe.Probe[probe.Build]
}

func (p Probes) empty() bool {
	return p.Availability == nil && p.Performance == nil && p.SEO == nil &&
		p.Content == nil && p.Security == nil && p.Build == nil
}

// Config configures an Orchestrator.
type Config struct {
	// Parallelism bounds how many probes run at once.
	// Default: 6
	Parallelism int `yaml:"parallelism" validate:"gte=0"`

	// RunBudget bounds the whole run.
	// Default: 3m
	RunBudget time.Duration `yaml:"run_budget" validate:"gte=0"`

	// ProbeTimeout is used when the target does not set one.
	// Default: 60s
	ProbeTimeout time.Duration `yaml:"probe_timeout" validate:"gte=0"`

	Weights score.Weights `yaml:"-"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMiddleware records every probe run through mw.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *Orchestrator) { o.mw = mw }
}

// WithLogger sets the run logger.
func WithLogger(l observe.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock replaces the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunID replaces the run id generator.
func WithRunID(next func() string) Option {
	return func(o *Orchestrator) { o.runID = next }
}

// Orchestrator runs the probes for a target and builds the report.
type Orchestrator struct {
	config Config
	probes Probes
	mw     *observe.Middleware
	logger observe.Logger
	now    func() time.Time
	runID  func() string
}

// NewOrchestrator creates an Orchestrator with defaults applied.
func NewOrchestrator(config Config, probes Probes, opts ...Option) (*Orchestrator, error) {
	if probes.empty() {
		return nil, ErrNoProbes
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 6
	}
	if config.RunBudget <= 0 {
		config.RunBudget = 3 * time.Minute
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 60 * time.Second
	}
	if config.Weights == (score.Weights{}) {
		config.Weights = score.DefaultWeights()
	}

	o := &Orchestrator{
		config: config,
		probes: probes,
		now:    time.Now,
		runID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		if o.mw != nil {
			o.logger = o.mw.Logger()
		} else {
			o.logger = observe.NopLogger()
		}
	}
	if o.mw == nil {
		o.mw = observe.NopMiddleware(o.logger)
	}
	return o, nil
}

// Run checks t and returns the scored report. It returns once every
// probe has finished or timed out, and never later than the run budget
// allows. A zero t.Enabled runs every probe.
func (o *Orchestrator) Run(ctx context.Context, t probe.Target) *report.Report {
	if t.Enabled == 0 {
		t.Enabled = probe.AllProbes()
	}
	if t.Timeout <= 0 {
		t.Timeout = o.config.ProbeTimeout
	}

	started := o.now()
	ctx, cancel := context.WithTimeout(ctx, o.config.RunBudget)
	defer cancel()

	runID := o.runID()
	log := o.logger.With(observe.F("run_id", runID), observe.F("site", t.SiteURL))
	log.Info(ctx, "health run started", observe.F("probes", fmt.Sprint(t.Enabled.Names())))

	var results report.Results
	g := new(errgroup.Group)
	g.SetLimit(o.config.Parallelism)
	g.Go(func() error {
		results.Availability = run(ctx, o, probe.NameAvailability, o.probes.Availability, t)
		return nil
	})
	g.Go(func() error {
		results.Performance = run(ctx, o, probe.NamePerformance, o.probes.Performance, t)
		return nil
	})
	g.Go(func() error {
		results.SEO = run(ctx, o, probe.NameSEO, o.probes.SEO, t)
		return nil
	})
	g.Go(func() error {
		results.Content = run(ctx, o, probe.NameContent, o.probes.Content, t)
		return nil
	})
	g.Go(func() error {
		results.Security = run(ctx, o, probe.NameSecurity, o.probes.Security, t)
		return nil
	})
	g.Go(func() error {
		results.Build = run(ctx, o, probe.NameBuild, o.probes.Build, t)
		return nil
	})
	_ = g.Wait()

	rep := &report.Report{
		RunID:     runID,
		Timestamp: started.UTC(),
		Target:    report.NewTarget(t),
		Results:   results,
	}
	rep.ScoreBreakdown, rep.OverallScore = score.Compute(rep, o.config.Weights)

	o.mw.RecordScore(ctx, t.SiteURL, rep.OverallScore)
	log.Info(ctx, "health run finished",
		observe.F("overall_score", rep.OverallScore),
		observe.F("failed_probes", len(rep.Failures())),
		observe.F("duration_ms", o.now().Sub(started).Milliseconds()))
	return rep
}

// run executes one probe under its timeout. The probe runs in its own
// goroutine so that a probe ignoring its context cannot hold up the run;
// whichever comes first, its result or the deadline, is recorded.
func run[T any](ctx context.Context, o *Orchestrator, name probe.Name, p probe.Probe[T], t probe.Target) probe.Result[T] {
	if p == nil || !t.Enabled.Has(name) {
		return probe.Fail[T](probe.KindDisabled, "probe %s is not enabled", name)
	}

	timeout := t.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	var result probe.Result[T]
	meta := observe.ProbeMeta{Name: string(name), Site: t.SiteURL}
	o.mw.Observe(ctx, meta, func(ctx context.Context) observe.Outcome {
		result = runWithTimeout(ctx, o.logger, name, p, t, timeout)
		f, failed := result.Failure()
		return observe.Outcome{Failed: failed, Kind: string(f.Kind), Message: f.Message}
	})
	return result
}

func runWithTimeout[T any](ctx context.Context, log observe.Logger, name probe.Name, p probe.Probe[T], t probe.Target, timeout time.Duration) probe.Result[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan probe.Result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error(ctx, "probe panicked",
					observe.F("probe", string(name)),
					observe.F("panic", fmt.Sprint(r)),
					observe.F("stack", string(debug.Stack())))
				resultCh <- probe.Fail[T](probe.KindInternal, "probe %s panicked: %v", name, r)
			}
		}()
		resultCh <- p.Run(ctx, t)
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return probe.Fail[T](probe.KindTimeout, "%v: %s did not finish within %s", ErrProbeTimeout, name, timeout.Round(time.Millisecond))
	}
}
