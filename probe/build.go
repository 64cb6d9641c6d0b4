package probe

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jonwraymond/sitehealth/toolexec"
)

// Build is the payload of the build probe.
type Build struct {
	Successful bool      `json:"successful"`
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	DurationMS int64     `json:"duration_ms"`
	BuiltAt    time.Time `json:"built_at"`
}

// BuildConfig configures the build probe.
type BuildConfig struct {
	// Tool builds the site without writing it.
	// Default: DefaultBuildTool()
	Tool Tool `yaml:"tool"`
}

// DefaultBuildTool runs a Jekyll dry-run build.
func DefaultBuildTool() Tool {
	return Tool{
		Command: "bundle",
		Args:    []string{"exec", "jekyll", "build", "--dry-run"},
		Timeout: 60 * time.Second,
	}
}

// BuildProbe checks that the site builds.
type BuildProbe struct {
	config BuildConfig
	tools  ToolRunner
	now    func() time.Time
}

// NewBuildProbe creates the probe with defaults applied.
func NewBuildProbe(config BuildConfig, tools ToolRunner) *BuildProbe {
	if !config.Tool.Enabled() {
		config.Tool = DefaultBuildTool()
	}
	return &BuildProbe{config: config, tools: tools, now: time.Now}
}

// Name implements Probe.
func (p *BuildProbe) Name() Name { return NameBuild }

// Run implements Probe. A build that ran and failed is an Ok result with
// Successful false.
func (p *BuildProbe) Run(ctx context.Context, t Target) Result[Build] {
	if fi, err := os.Stat(t.ContentRoot); err != nil || !fi.IsDir() {
		return Fail[Build](KindNotFound, "content root %q is not a directory", t.ContentRoot)
	}

	res, err := p.tools.Run(ctx, p.config.Tool.command(ctx, t.ContentRoot, nil))
	switch {
	case errors.Is(err, toolexec.ErrToolMissing):
		return Fail[Build](KindToolMissing, "%s is not installed", p.config.Tool.Command)
	case err != nil:
		return FailErr[Build](err)
	}

	return Ok(Build{
		Successful: res.Success(),
		ExitCode:   res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		DurationMS: res.Duration.Milliseconds(),
		BuiltAt:    p.now().UTC(),
	})
}
