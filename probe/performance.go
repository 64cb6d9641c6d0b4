package probe

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/sitehealth/observe"
)

// OptimizeSuggestion is emitted when the audit score is below threshold.
const OptimizeSuggestion = "Consider optimizing images and CSS"

// Performance is the payload of the performance probe.
type Performance struct {
	// AuditScore is 0-100, or nil when the audit could not run.
	AuditScore  *float64  `json:"audit_score"`
	AuditError  string    `json:"audit_error,omitempty"`
	PageSize    *PageSize `json:"page_size"`
	PageError   string    `json:"page_size_error,omitempty"`
	Suggestions []string  `json:"suggestions"`
}

// PageSize is the transfer size of the homepage and its stylesheets.
type PageSize struct {
	HTMLBytes        int     `json:"html_bytes"`
	CSSBytes         int     `json:"css_bytes"`
	TotalBytes       int     `json:"total_bytes"`
	HTMLKB           float64 `json:"html_size_kb"`
	CSSKB            float64 `json:"css_size_kb"`
	TotalKB          float64 `json:"total_size_kb"`
	Stylesheets      int     `json:"stylesheets"`
	StylesheetErrors int     `json:"stylesheet_errors,omitempty"`
}

// PerformanceConfig configures the performance probe.
type PerformanceConfig struct {
	// Audit is the auditing program. {url} and {output} in its arguments
	// are replaced with the site URL and a temporary report path.
	// Default: DefaultAuditTool()
	Audit Tool `yaml:"audit"`

	// Threshold is the audit score below which a suggestion is emitted.
	// Default: 90
	Threshold float64 `yaml:"threshold" validate:"gte=0,lte=100"`

	// MaxStylesheets bounds how many stylesheets are fetched.
	// Default: 20
	MaxStylesheets int `yaml:"max_stylesheets" validate:"gte=0"`
}

// DefaultAuditTool runs Lighthouse in headless Chrome.
func DefaultAuditTool() Tool {
	return Tool{
		Command: "lighthouse",
		Args: []string{
			"{url}",
			"--output=json",
			"--output-path={output}",
			"--chrome-flags=--headless --no-sandbox",
			"--quiet",
		},
		Timeout: 60 * time.Second,
	}
}

// PerformanceProbe audits the homepage and measures its weight.
type PerformanceProbe struct {
	config  PerformanceConfig
	fetcher Fetcher
	tools   ToolRunner
	logger  observe.Logger
}

// NewPerformanceProbe creates the probe with defaults applied.
func NewPerformanceProbe(config PerformanceConfig, f Fetcher, tools ToolRunner, logger observe.Logger) *PerformanceProbe {
	if !config.Audit.Enabled() {
		config.Audit = DefaultAuditTool()
	}
	if config.Threshold <= 0 {
		config.Threshold = 90
	}
	if config.MaxStylesheets <= 0 {
		config.MaxStylesheets = 20
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &PerformanceProbe{config: config, fetcher: f, tools: tools, logger: logger}
}

// Name implements Probe.
func (p *PerformanceProbe) Name() Name { return NamePerformance }

// Run implements Probe. The audit and the page weight are measured
// concurrently; the result fails only if both are unavailable.
func (p *PerformanceProbe) Run(ctx context.Context, t Target) Result[Performance] {
	base, err := t.Base()
	if err != nil {
		return Fail[Performance](KindNotFound, "%s", err.Error())
	}

	var (
		wg       sync.WaitGroup
		score    *float64
		auditErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		score, auditErr = p.audit(ctx, base.String())
	}()
	size, sizeErr := p.pageSize(ctx, base)
	wg.Wait()

	if auditErr != nil && sizeErr != nil {
		return FailErr[Performance](sizeErr)
	}

	out := Performance{AuditScore: score, PageSize: size, Suggestions: []string{}}
	if auditErr != nil {
		out.AuditError = auditErr.Error()
		p.logger.Warn(ctx, "performance audit unavailable", observe.Err(auditErr))
	}
	if sizeErr != nil {
		out.PageError = sizeErr.Error()
	}
	if score != nil && *score < p.config.Threshold {
		out.Suggestions = append(out.Suggestions, OptimizeSuggestion)
	}
	return Ok(out)
}

func (p *PerformanceProbe) audit(ctx context.Context, site string) (*float64, error) {
	dir, err := os.MkdirTemp("", "sitehealth-audit-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	output := filepath.Join(dir, "report.json")

	cmd := p.config.Audit.command(ctx, "", map[string]string{"url": site, "output": output})
	res, err := p.tools.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("%s exited %d: %s", p.config.Audit.Command, res.ExitCode, firstLine(res.Stderr))
	}

	data, err := os.ReadFile(output)
	if err != nil || len(data) == 0 {
		data = []byte(res.Stdout)
	}
	return AuditScore(data)
}

// AuditScore extracts the performance score, scaled to 0-100, from a
// Lighthouse JSON report. Both the bare report and the {"lhr": ...}
// wrapper are accepted.
func AuditScore(report []byte) (*float64, error) {
	if !gjson.ValidBytes(report) {
		return nil, fmt.Errorf("%w: audit report is not valid JSON", ErrParse)
	}
	v := gjson.GetBytes(report, "categories.performance.score")
	if !v.Exists() {
		v = gjson.GetBytes(report, "lhr.categories.performance.score")
	}
	if !v.Exists() || v.Type != gjson.Number {
		return nil, fmt.Errorf("%w: audit report has no performance score", ErrParse)
	}
	score := math.Round(v.Float()*100*100) / 100
	return &score, nil
}

func (p *PerformanceProbe) pageSize(ctx context.Context, base *url.URL) (*PageSize, error) {
	home, err := p.fetcher.Get(ctx, base.String())
	if err != nil {
		return nil, err
	}
	if !home.OK() {
		return nil, fmt.Errorf("%w: homepage answered %d", ErrNotFound, home.StatusCode)
	}

	var hrefs []string
	for _, href := range stylesheets(string(home.Body)) {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if !strings.EqualFold(abs.Host, base.Host) {
			continue
		}
		hrefs = append(hrefs, abs.String())
		if len(hrefs) == p.config.MaxStylesheets {
			break
		}
	}

	var (
		mu       sync.Mutex
		cssBytes int
		failed   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, href := range hrefs {
		g.Go(func() error {
			resp, err := p.fetcher.Get(gctx, href)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || !resp.OK() {
				failed++
				return nil
			}
			cssBytes += len(resp.Body)
			return nil
		})
	}
	_ = g.Wait()

	htmlBytes := len(home.Body)
	return &PageSize{
		HTMLBytes:        htmlBytes,
		CSSBytes:         cssBytes,
		TotalBytes:       htmlBytes + cssBytes,
		HTMLKB:           kib(htmlBytes),
		CSSKB:            kib(cssBytes),
		TotalKB:          kib(htmlBytes + cssBytes),
		Stylesheets:      len(hrefs) - failed,
		StylesheetErrors: failed,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
