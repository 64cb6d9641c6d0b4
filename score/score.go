// Package score reduces a health report to a 0-100 score.
//
// Compute is pure: the same report and weights always give the same
// breakdown. A failed probe earns nothing for its dimension, and a signal a
// probe could not measure (an audit that did not run) earns nothing either
// instead of counting against the site.
package score

import (
	"math"
	"time"

	"github.com/jonwraymond/sitehealth/probe"
	"github.com/jonwraymond/sitehealth/report"
)

// Max is the highest score; the sum of the weights may exceed it.
const Max = 100

// Weights are the points awarded per finding.
type Weights struct {
	Reachable    int           `yaml:"reachable" validate:"gte=0"`
	FastResponse int           `yaml:"fast_response" validate:"gte=0"`
	FastUnder    time.Duration `yaml:"fast_under" validate:"gte=0"`

	// PerformanceFactor scales the 0-100 audit score.
	PerformanceFactor float64 `yaml:"performance_factor" validate:"gte=0"`

	Sitemap     int `yaml:"sitemap" validate:"gte=0"`
	Robots      int `yaml:"robots" validate:"gte=0"`
	Title       int `yaml:"title" validate:"gte=0"`
	Description int `yaml:"description" validate:"gte=0"`

	Published     int `yaml:"published" validate:"gte=0"`
	NoBrokenLinks int `yaml:"no_broken_links" validate:"gte=0"`

	HTTPS             int `yaml:"https" validate:"gte=0"`
	NoVulnerabilities int `yaml:"no_vulnerabilities" validate:"gte=0"`

	Build int `yaml:"build" validate:"gte=0"`
}

// DefaultWeights returns the standard table.
func DefaultWeights() Weights {
	return Weights{
		Reachable:         20,
		FastResponse:      5,
		FastUnder:         time.Second,
		PerformanceFactor: 0.2,
		Sitemap:           5,
		Robots:            5,
		Title:             5,
		Description:       5,
		Published:         10,
		NoBrokenLinks:     10,
		HTTPS:             5,
		NoVulnerabilities: 5,
		Build:             10,
	}
}

// Compute returns the points per dimension and the clamped total.
func Compute(r *report.Report, w Weights) (report.Breakdown, int) {
	b := report.Breakdown{
		Availability: availability(r.Availability, w),
		Performance:  performance(r.Performance, w),
		SEO:          seo(r.SEO, w),
		Content:      contentPoints(r.Content, w),
		Security:     security(r.Security, r.Target.SiteURL, w),
		Build:        build(r.Build, w),
	}
	return b, Clamp(b.Sum())
}

// Clamp limits n to [0, Max].
func Clamp(n int) int {
	return min(max(n, 0), Max)
}

// Ceiling returns the most each dimension can earn under w.
func Ceiling(w Weights) report.Breakdown {
	return report.Breakdown{
		Availability: w.Reachable + w.FastResponse,
		Performance:  int(math.Round(100 * w.PerformanceFactor)),
		SEO:          w.Sitemap + w.Robots + w.Title + w.Description,
		Content:      w.Published + w.NoBrokenLinks,
		Security:     w.HTTPS + w.NoVulnerabilities,
		Build:        w.Build,
	}
}

func availability(r probe.Result[probe.Availability], w Weights) int {
	a, ok := r.Value()
	if !ok || !a.Reachable {
		return 0
	}
	points := w.Reachable
	if time.Duration(a.LatencyMS)*time.Millisecond < w.FastUnder {
		points += w.FastResponse
	}
	return points
}

func performance(r probe.Result[probe.Performance], w Weights) int {
	p, ok := r.Value()
	if !ok || p.AuditScore == nil {
		return 0
	}
	return int(math.Round(*p.AuditScore * w.PerformanceFactor))
}

func seo(r probe.Result[probe.SEO], w Weights) int {
	s, ok := r.Value()
	if !ok {
		return 0
	}
	points := 0
	if s.Sitemap.Exists {
		points += w.Sitemap
	}
	if s.Robots.Exists {
		points += w.Robots
	}
	if s.Meta.Title {
		points += w.Title
	}
	if s.Meta.Description {
		points += w.Description
	}
	return points
}

func contentPoints(r probe.Result[probe.Content], w Weights) int {
	c, ok := r.Value()
	if !ok {
		return 0
	}
	points := 0
	if c.Posts.Published > 0 {
		points += w.Published
	}
	// An incomplete scan has not shown the links are fine.
	if len(c.BrokenLinks) == 0 && c.BrokenLinksError == "" {
		points += w.NoBrokenLinks
	}
	return points
}

func security(r probe.Result[probe.Security], siteURL string, w Weights) int {
	s, ok := r.Value()
	if !ok {
		// https is knowable without the probe.
		if (probe.Target{SiteURL: siteURL}).HTTPS() {
			return w.HTTPS
		}
		return 0
	}
	points := 0
	if s.HTTPSEnabled {
		points += w.HTTPS
	}
	if s.VulnerabilitiesFound != nil && !*s.VulnerabilitiesFound {
		points += w.NoVulnerabilities
	}
	return points
}

func build(r probe.Result[probe.Build], w Weights) int {
	b, ok := r.Value()
	if !ok || !b.Successful {
		return 0
	}
	return w.Build
}
