// Package report defines the health report produced by one run: the six
// probe results, when and against what they ran, and the score they earned.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jonwraymond/sitehealth/probe"
)

// Keys of the probe results in the encoded report, in report order.
const (
	KeyAvailability = "site_availability"
	KeyPerformance  = "performance"
	KeySEO          = "seo_health"
	KeyContent      = "content_integrity"
	KeySecurity     = "security_scan"
	KeyBuild        = "build_status"
)

// Key returns the report key for a probe name.
func Key(n probe.Name) string {
	switch n {
	case probe.NameAvailability:
		return KeyAvailability
	case probe.NamePerformance:
		return KeyPerformance
	case probe.NameSEO:
		return KeySEO
	case probe.NameContent:
		return KeyContent
	case probe.NameSecurity:
		return KeySecurity
	case probe.NameBuild:
		return KeyBuild
	}
	return string(n)
}

// Target summarizes what the run checked.
type Target struct {
	SiteURL     string       `json:"site_url"`
	ContentRoot string       `json:"content_root"`
	Probes      []probe.Name `json:"probes"`
}

// NewTarget summarizes t.
func NewTarget(t probe.Target) Target {
	names := t.Enabled.Names()
	if names == nil {
		names = []probe.Name{}
	}
	return Target{SiteURL: t.SiteURL, ContentRoot: t.ContentRoot, Probes: names}
}

// Results holds one result per probe.
type Results struct {
	Availability probe.Result[probe.Availability] `json:"site_availability"`
	Performance  probe.Result[probe.Performance]  `json:"performance"`
	SEO          probe.Result[probe.SEO]          `json:"seo_health"`
	Content      probe.Result[probe.Content]      `json:"content_integrity"`
	Security     probe.Result[probe.Security]     `json:"security_scan"`
	Build        probe.Result[probe.Build]        `json:"build_status"`
}

// Failures returns the failure of every failed probe, keyed by probe name.
func (r Results) Failures() map[probe.Name]probe.Failure {
	out := make(map[probe.Name]probe.Failure)
	add := func(n probe.Name, f probe.Failure, failed bool) {
		if failed {
			out[n] = f
		}
	}
	f, ok := r.Availability.Failure()
	add(probe.NameAvailability, f, ok)
	f, ok = r.Performance.Failure()
	add(probe.NamePerformance, f, ok)
	f, ok = r.SEO.Failure()
	add(probe.NameSEO, f, ok)
	f, ok = r.Content.Failure()
	add(probe.NameContent, f, ok)
	f, ok = r.Security.Failure()
	add(probe.NameSecurity, f, ok)
	f, ok = r.Build.Failure()
	add(probe.NameBuild, f, ok)
	return out
}

// Breakdown is the points earned per dimension.
type Breakdown struct {
	Availability int `json:"availability"`
	Performance  int `json:"performance"`
	SEO          int `json:"seo"`
	Content      int `json:"content"`
	Security     int `json:"security"`
	Build        int `json:"build"`
}

// Sum adds the dimensions without clamping.
func (b Breakdown) Sum() int {
	return b.Availability + b.Performance + b.SEO + b.Content + b.Security + b.Build
}

// Report is the outcome of one run. It is built once and not modified
// afterwards.
type Report struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Target    Target    `json:"target"`
	Results
	OverallScore   int       `json:"overall_score"`
	ScoreBreakdown Breakdown `json:"score_breakdown"`
}

// Marshal encodes r as indented JSON with a trailing newline.
func Marshal(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes r to w as indented JSON.
func Encode(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

// Decode reads one report from r.
func Decode(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	return &rep, nil
}

// Unmarshal decodes data.
func Unmarshal(data []byte) (*Report, error) {
	return Decode(bytes.NewReader(data))
}
