// Package probe defines the contract shared by every site health probe and
// the six probes themselves: availability, performance, SEO, content
// integrity, security and build.
//
// A probe never returns an error and never panics on purpose. Everything
// that goes wrong inside it ends up as a failed Result or, for checks that
// are allowed to fail on their own, as an error field inside an Ok payload.
package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/sitehealth/fetch"
	"github.com/jonwraymond/sitehealth/toolexec"
)

// Name identifies a probe.
type Name string

// Probe names, in report order.
const (
	NameAvailability Name = "availability"
	NamePerformance  Name = "performance"
	NameSEO          Name = "seo"
	NameContent      Name = "content"
	NameSecurity     Name = "security"
	NameBuild        Name = "build"
)

// Names lists every probe in report order.
var Names = []Name{NameAvailability, NamePerformance, NameSEO, NameContent, NameSecurity, NameBuild}

// Set is a set of probe names.
type Set uint8

// AllProbes returns the set of every probe.
func AllProbes() Set {
	return NewSet(Names...)
}

// NewSet returns the set of the given names. Unknown names are ignored.
func NewSet(names ...Name) Set {
	var s Set
	for _, n := range names {
		for i, known := range Names {
			if n == known {
				s |= 1 << i
			}
		}
	}
	return s
}

// ParseSet reads a comma-separated list such as "availability,seo".
// An empty string selects every probe.
func ParseSet(list string) (Set, error) {
	if strings.TrimSpace(list) == "" {
		return AllProbes(), nil
	}
	var s Set
	for _, part := range strings.Split(list, ",") {
		n := NewSet(Name(strings.TrimSpace(strings.ToLower(part))))
		if n == 0 {
			return 0, fmt.Errorf("probe: unknown probe %q", strings.TrimSpace(part))
		}
		s |= n
	}
	return s, nil
}

// Has reports whether n is in the set.
func (s Set) Has(n Name) bool {
	return s&NewSet(n) != 0
}

// Names returns the members in report order.
func (s Set) Names() []Name {
	var out []Name
	for _, n := range Names {
		if s.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Target is what a run checks. It is built once per run and passed by value.
type Target struct {
	// SiteURL is the base URL of the deployed site.
	SiteURL string
	// ContentRoot is the local directory holding the site sources.
	ContentRoot string
	// Timeout bounds each probe.
	Timeout time.Duration
	// Enabled selects the probes to run.
	Enabled Set
}

// Base returns SiteURL parsed, with its path ending in "/".
func (t Target) Base() (*url.URL, error) {
	u, err := url.Parse(t.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("probe: parse site url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("probe: site url %q must be absolute", t.SiteURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Resolve returns ref resolved against the site URL. Relative refs such as
// "sitemap.xml" land under the site's base path; "/x" is host-absolute.
func (t Target) Resolve(ref string) (string, error) {
	base, err := t.Base()
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("probe: parse %q: %w", ref, err)
	}
	return base.ResolveReference(r).String(), nil
}

// HTTPS reports whether the site URL uses https.
func (t Target) HTTPS() bool {
	u, err := url.Parse(t.SiteURL)
	return err == nil && strings.EqualFold(u.Scheme, "https")
}

// Probe checks one dimension of a site.
//
// Contract:
// - Concurrency: Run may be called concurrently with other probes.
// - Context: Run must return promptly once ctx is done.
// - Errors: every failure is reported in the Result; Run must not panic.
type Probe[T any] interface {
	Name() Name
	Run(ctx context.Context, t Target) Result[T]
}

// Func adapts a function to a Probe.
type Func[T any] struct {
	name Name
	fn   func(context.Context, Target) Result[T]
}

// NewFunc creates a Probe from fn.
func NewFunc[T any](name Name, fn func(context.Context, Target) Result[T]) *Func[T] {
	return &Func[T]{name: name, fn: fn}
}

// Name implements Probe.
func (f *Func[T]) Name() Name { return f.name }

// Run implements Probe.
func (f *Func[T]) Run(ctx context.Context, t Target) Result[T] { return f.fn(ctx, t) }

// Fetcher is the HTTP side of a probe. *fetch.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
	Head(ctx context.Context, url string) (*fetch.Response, error)
}

// ToolRunner runs external programs. *toolexec.Runner implements it.
type ToolRunner interface {
	Run(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error)
}

var (
	_ Fetcher    = (*fetch.Client)(nil)
	_ ToolRunner = (*toolexec.Runner)(nil)
)

// Tool describes an external program invocation in configuration.
type Tool struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether a command is configured.
func (t Tool) Enabled() bool {
	return strings.TrimSpace(t.Command) != ""
}

// command builds the invocation, replacing {url} and {output} in arguments.
// When ctx has a deadline the timeout is capped short of it, so a tool that
// is cut off still leaves the probe time to report its other checks.
func (t Tool) command(ctx context.Context, dir string, vars map[string]string) toolexec.Command {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, "{"+k+"}", v)
		}
		args[i] = a
	}
	cmd := toolexec.Command{Name: t.Command, Args: args, Dir: dir, Timeout: t.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		margin := deadlineMargin(remaining)
		budget := max(remaining-margin, time.Millisecond)
		if cmd.Timeout <= 0 || cmd.Timeout > budget {
			cmd.Timeout = budget
		}
		cmd.WaitDelay = margin / 2
	}
	return cmd
}

// deadlineMargin is the time kept between a tool's end and the probe
// deadline: a tenth of what remains, within [20ms, 2s].
func deadlineMargin(remaining time.Duration) time.Duration {
	return min(max(remaining/10, 20*time.Millisecond), 2*time.Second)
}

func kib(n int) float64 {
	return round2(float64(n) / 1024)
}

func mib(n int64) float64 {
	return round2(float64(n) / (1024 * 1024))
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
