package probe

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/sitehealth/content"
	"github.com/jonwraymond/sitehealth/observe"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// SEO is the payload of the SEO probe. Each section carries its own error
// field; a failed section does not fail the probe.
type SEO struct {
	Sitemap        Sitemap        `json:"sitemap"`
	Robots         Robots         `json:"robots_txt"`
	Meta           MetaTags       `json:"meta_tags"`
	StructuredData StructuredData `json:"structured_data"`
	Titles         Titles         `json:"titles"`
	InternalLinks  *LinkCheck     `json:"internal_links,omitempty"`
}

// Sitemap describes /sitemap.xml.
type Sitemap struct {
	Exists       bool    `json:"exists"`
	URLCount     int     `json:"url_count"`
	LastModified string  `json:"last_modified,omitempty"`
	SizeKB       float64 `json:"size_kb"`
	StatusCode   int     `json:"status_code,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Robots describes /robots.txt.
type Robots struct {
	Exists     bool   `json:"exists"`
	Size       int    `json:"size"`
	Content    string `json:"content,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// MetaTags records which head tags the homepage carries.
type MetaTags struct {
	Title       bool   `json:"has_title"`
	Description bool   `json:"has_description"`
	Keywords    bool   `json:"has_keywords"`
	OpenGraph   bool   `json:"has_og_tags"`
	TwitterCard bool   `json:"has_twitter_cards"`
	Canonical   bool   `json:"has_canonical"`
	Error       string `json:"error,omitempty"`
}

// StructuredData records which structured data formats the homepage uses.
type StructuredData struct {
	JSONLD    bool   `json:"has_json_ld"`
	Microdata bool   `json:"has_microdata"`
	RDFa      bool   `json:"has_rdfa"`
	Error     string `json:"error,omitempty"`
}

// Titles summarizes entry titles.
type Titles struct {
	Total      int      `json:"total"`
	Missing    []string `json:"missing_titles"`
	Duplicates []string `json:"duplicate_titles"`
	Error      string   `json:"error,omitempty"`
}

// LinkCheck is the outcome of the internal link checker.
type LinkCheck struct {
	CheckPassed bool   `json:"check_passed"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SEOConfig configures the SEO probe.
type SEOConfig struct {
	// LinkChecker checks the built site's internal links. Disabled when
	// Command is empty.
	LinkChecker Tool `yaml:"link_checker"`

	// PostsDir holds the entries whose titles are checked. It follows
	// ContentConfig.PostsDir. Default: "_posts"
	PostsDir string `yaml:"-"`
}

// DefaultLinkChecker runs html-proofer over the built site. It is not
// enabled unless configured.
func DefaultLinkChecker() Tool {
	return Tool{
		Command: "bundle",
		Args:    []string{"exec", "htmlproofer", "./_site", "--disable-external", "--check-html"},
		Timeout: 120 * time.Second,
	}
}

// SEOProbe checks search-engine hygiene.
type SEOProbe struct {
	config  SEOConfig
	fetcher Fetcher
	tools   ToolRunner
	logger  observe.Logger
}

// NewSEOProbe creates the probe.
func NewSEOProbe(config SEOConfig, f Fetcher, tools ToolRunner, logger observe.Logger) *SEOProbe {
	if config.PostsDir == "" {
		config.PostsDir = "_posts"
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &SEOProbe{config: config, fetcher: f, tools: tools, logger: logger}
}

// Name implements Probe.
func (p *SEOProbe) Name() Name { return NameSEO }

// Run implements Probe. The sections run concurrently; the result fails
// only when every section failed.
func (p *SEOProbe) Run(ctx context.Context, t Target) Result[SEO] {
	if _, err := t.Base(); err != nil {
		return Fail[SEO](KindNotFound, "%s", err.Error())
	}

	var (
		out     SEO
		homeErr error
		wg      sync.WaitGroup
	)
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	run(func() { out.Sitemap = p.sitemap(ctx, t) })
	run(func() { out.Robots = p.robots(ctx, t) })
	run(func() { out.Meta, out.StructuredData, homeErr = p.homepage(ctx, t) })
	run(func() { out.Titles = p.titles(ctx, t) })
	if p.config.LinkChecker.Enabled() {
		run(func() { out.InternalLinks = p.internalLinks(ctx, t) })
	}
	wg.Wait()

	if out.Sitemap.Error != "" && out.Robots.Error != "" && homeErr != nil && out.Titles.Error != "" &&
		(out.InternalLinks == nil || out.InternalLinks.Error != "") {
		return FailErr[SEO](homeErr)
	}
	return Ok(out)
}

func (p *SEOProbe) sitemap(ctx context.Context, t Target) Sitemap {
	u, err := t.Resolve("sitemap.xml")
	if err != nil {
		return Sitemap{Error: err.Error()}
	}
	resp, err := p.fetcher.Get(ctx, u)
	if err != nil {
		return Sitemap{Error: err.Error()}
	}
	if resp.StatusCode != 200 {
		return Sitemap{StatusCode: resp.StatusCode}
	}
	n, err := CountSitemapURLs(resp.Body)
	if err != nil {
		return Sitemap{StatusCode: resp.StatusCode, Error: err.Error()}
	}
	return Sitemap{
		Exists:       true,
		URLCount:     n,
		LastModified: resp.Header.Get("Last-Modified"),
		SizeKB:       kib(len(resp.Body)),
		StatusCode:   resp.StatusCode,
	}
}

// CountSitemapURLs counts <url> elements in the sitemap 0.9 namespace.
func CountSitemapURLs(data []byte) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	count, elements := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: sitemap: %w", ErrParse, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			elements++
			if se.Name.Space == sitemapNamespace && se.Name.Local == "url" {
				count++
			}
		}
	}
	if elements == 0 {
		return 0, fmt.Errorf("%w: sitemap has no elements", ErrParse)
	}
	return count, nil
}

func (p *SEOProbe) robots(ctx context.Context, t Target) Robots {
	u, err := t.Resolve("robots.txt")
	if err != nil {
		return Robots{Error: err.Error()}
	}
	resp, err := p.fetcher.Get(ctx, u)
	if err != nil {
		return Robots{Error: err.Error()}
	}
	if resp.StatusCode != 200 {
		return Robots{StatusCode: resp.StatusCode}
	}
	return Robots{Exists: true, Size: len(resp.Body), Content: string(resp.Body), StatusCode: resp.StatusCode}
}

func (p *SEOProbe) homepage(ctx context.Context, t Target) (MetaTags, StructuredData, error) {
	base, _ := t.Base()
	resp, err := p.fetcher.Get(ctx, base.String())
	if err == nil && !resp.OK() {
		err = fmt.Errorf("%w: homepage answered %d", ErrNotFound, resp.StatusCode)
	}
	if err != nil {
		return MetaTags{Error: err.Error()}, StructuredData{Error: err.Error()}, err
	}
	html := string(resp.Body)
	meta := MetaTags{
		Title:       strings.Contains(html, "<title>"),
		Description: strings.Contains(html, `name="description"`),
		Keywords:    strings.Contains(html, `name="keywords"`),
		OpenGraph:   strings.Contains(html, `property="og:`),
		TwitterCard: strings.Contains(html, `name="twitter:`),
		Canonical:   strings.Contains(html, `rel="canonical"`),
	}
	data := StructuredData{
		JSONLD:    strings.Contains(html, "application/ld+json"),
		Microdata: strings.Contains(html, "itemscope"),
		RDFa:      strings.Contains(html, "typeof="),
	}
	return meta, data, nil
}

func (p *SEOProbe) titles(ctx context.Context, t Target) Titles {
	out := Titles{Missing: []string{}, Duplicates: []string{}}
	tree := &content.Tree{FS: os.DirFS(t.ContentRoot), Dir: p.config.PostsDir}
	seen := make(map[string]int)
	for e, err := range tree.Entries(ctx) {
		if err != nil {
			if e.Path == "" {
				out.Error = err.Error()
				return out
			}
			p.logger.Warn(ctx, "skipping unreadable entry", observe.F("path", e.Path), observe.Err(err))
			continue
		}
		out.Total++
		title := e.Header.Title()
		if title == "" {
			out.Missing = append(out.Missing, e.Path)
			continue
		}
		seen[title]++
	}
	for title, n := range seen {
		if n > 1 {
			out.Duplicates = append(out.Duplicates, title)
		}
	}
	slices.Sort(out.Duplicates)
	return out
}

func (p *SEOProbe) internalLinks(ctx context.Context, t Target) *LinkCheck {
	res, err := p.tools.Run(ctx, p.config.LinkChecker.command(ctx, t.ContentRoot, nil))
	if err != nil {
		return &LinkCheck{Error: err.Error()}
	}
	return &LinkCheck{CheckPassed: res.Success(), Output: strings.TrimSpace(res.Stdout + res.Stderr)}
}
