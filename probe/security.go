package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/sitehealth/observe"
)

// SecurityHeaders are the response headers the security probe looks for.
var SecurityHeaders = []string{
	"content-security-policy",
	"x-frame-options",
	"x-content-type-options",
	"strict-transport-security",
	"referrer-policy",
}

// Security is the payload of the security probe.
type Security struct {
	HTTPSEnabled bool            `json:"https_enabled"`
	Headers      map[string]bool `json:"security_headers"`
	HeadersError string          `json:"headers_error,omitempty"`
	// VulnerabilitiesFound is nil when the audit could not run.
	VulnerabilitiesFound *bool    `json:"vulnerabilities_found"`
	AuditOutput          string   `json:"audit_output,omitempty"`
	AuditError           string   `json:"audit_error,omitempty"`
	SensitiveFiles       []string `json:"sensitive_files"`
	SensitiveFilesError  string   `json:"sensitive_files_error,omitempty"`
}

// SecurityConfig configures the security probe.
type SecurityConfig struct {
	// Audit checks dependencies for known vulnerabilities.
	// Default: DefaultDependencyAudit()
	Audit Tool `yaml:"dependency_audit"`

	// SensitivePatterns are path.Match patterns matched against file base
	// names, or against the relative path when they contain a slash.
	// Default: DefaultSensitivePatterns
	SensitivePatterns []string `yaml:"sensitive_patterns"`
}

// DefaultSensitivePatterns are files that should never be published.
var DefaultSensitivePatterns = []string{
	"*.key",
	"*.pem",
	"*.p12",
	".env",
	"config/database.yml",
	"config/secrets.yml",
}

// DefaultDependencyAudit runs bundler-audit.
func DefaultDependencyAudit() Tool {
	return Tool{Command: "bundle", Args: []string{"audit", "check"}, Timeout: 60 * time.Second}
}

// SecurityProbe checks transport, headers, dependencies and the source tree.
type SecurityProbe struct {
	config  SecurityConfig
	fetcher Fetcher
	tools   ToolRunner
	logger  observe.Logger
}

// NewSecurityProbe creates the probe with defaults applied.
func NewSecurityProbe(config SecurityConfig, f Fetcher, tools ToolRunner, logger observe.Logger) *SecurityProbe {
	if !config.Audit.Enabled() {
		config.Audit = DefaultDependencyAudit()
	}
	if config.SensitivePatterns == nil {
		config.SensitivePatterns = DefaultSensitivePatterns
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &SecurityProbe{config: config, fetcher: f, tools: tools, logger: logger}
}

// Name implements Probe.
func (p *SecurityProbe) Name() Name { return NameSecurity }

// Run implements Probe. https_enabled is always knowable, so the probe
// itself never fails; every other section records its own error.
func (p *SecurityProbe) Run(ctx context.Context, t Target) Result[Security] {
	out := Security{
		HTTPSEnabled:   t.HTTPS(),
		Headers:        map[string]bool{},
		SensitiveFiles: []string{},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		found, output, err := p.audit(ctx, t)
		out.VulnerabilitiesFound = found
		out.AuditOutput = output
		if err != nil {
			out.AuditError = err.Error()
			p.logger.Warn(ctx, "dependency audit unavailable", observe.Err(err))
		}
	}()

	if headers, err := p.headers(ctx, t); err != nil {
		out.HeadersError = err.Error()
	} else {
		out.Headers = headers
	}

	if files, err := SensitiveFiles(ctx, os.DirFS(t.ContentRoot), p.config.SensitivePatterns); err != nil {
		out.SensitiveFilesError = err.Error()
	} else {
		out.SensitiveFiles = files
	}

	<-done
	return Ok(out)
}

func (p *SecurityProbe) headers(ctx context.Context, t Target) (map[string]bool, error) {
	base, err := t.Base()
	if err != nil {
		return nil, err
	}
	resp, err := p.fetcher.Get(ctx, base.String())
	if err != nil {
		return nil, err
	}
	headers := make(map[string]bool, len(SecurityHeaders))
	for _, h := range SecurityHeaders {
		headers[h] = resp.Header.Get(h) != ""
	}
	return headers, nil
}

func (p *SecurityProbe) audit(ctx context.Context, t Target) (*bool, string, error) {
	res, err := p.tools.Run(ctx, p.config.Audit.command(ctx, t.ContentRoot, nil))
	if err != nil {
		return nil, "", err
	}
	found := !res.Success()
	return &found, strings.TrimSpace(res.Stdout + res.Stderr), nil
}

// SensitiveFiles walks fsys, skipping .git, and returns the sorted paths
// matching any of patterns.
func SensitiveFiles(ctx context.Context, fsys fs.FS, patterns []string) ([]string, error) {
	found := []string{}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if sensitive(p, patterns) {
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: content root", ErrNotFound)
		}
		return nil, err
	}
	slices.Sort(found)
	return found, nil
}

func sensitive(p string, patterns []string) bool {
	for _, pat := range patterns {
		if strings.Contains(pat, "/") {
			if p == pat || strings.HasSuffix(p, "/"+pat) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pat, path.Base(p)); ok {
			return true
		}
	}
	return false
}
