package probe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/sitehealth/content"
	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/resilience"
)

// Content is the payload of the content-integrity probe.
type Content struct {
	Posts            PostCounts   `json:"posts"`
	Images           Images       `json:"images"`
	BrokenLinks      []BrokenLink `json:"broken_links"`
	BrokenLinksError string       `json:"broken_links_error,omitempty"`
	MissingAssets    []string     `json:"missing_assets"`
	Quality          Quality      `json:"content_quality"`
}

// PostCounts counts content entries.
type PostCounts struct {
	Total     int    `json:"total_posts"`
	Published int    `json:"published_posts"`
	Drafts    int    `json:"draft_posts"`
	Recent    int    `json:"recent_posts"`
	Error     string `json:"error,omitempty"`
}

// BrokenLink is a link target that does not resolve.
type BrokenLink struct {
	File string `json:"file"`
	Link string `json:"link"`
}

// String renders the link as "file: link".
func (b BrokenLink) String() string {
	return b.File + ": " + b.Link
}

// Quality summarizes entry bodies and headers.
type Quality struct {
	AverageWordCount   int      `json:"average_word_count"`
	MissingTags        []string `json:"posts_without_tags"`
	MissingDescription []string `json:"posts_without_description"`
}

// LinkScanConfig bounds the requests made to verify site-absolute links.
type LinkScanConfig struct {
	// Rate is requests per second. Default: 10
	Rate float64 `yaml:"rate" validate:"gte=0"`
	// MaxConcurrent is requests in flight. Default: 4
	MaxConcurrent int `yaml:"max_concurrent" validate:"gte=0"`
	// MaxFailures is consecutive failures before a host is skipped. Default: 5
	MaxFailures int `yaml:"max_failures" validate:"gte=0"`
}

// ContentConfig configures the content-integrity probe.
type ContentConfig struct {
	// PostsDir holds the entries. Default: "_posts"
	PostsDir string `yaml:"posts_dir"`
	// ImagesDir is scanned for images. Default: "assets/images"
	ImagesDir string `yaml:"images_dir"`
	// LargeImageBytes is the size above which an image is large. Default: 1 MiB
	LargeImageBytes int64 `yaml:"large_image_bytes" validate:"gte=0"`
	// RecentWindow is how far back an entry counts as recent. Default: 30 days
	RecentWindow time.Duration `yaml:"recent_window"`
	// RequiredAssets must exist under the content root.
	// Default: DefaultRequiredAssets
	RequiredAssets []string `yaml:"required_assets"`
	Links          LinkScanConfig `yaml:"links"`
}

// DefaultRequiredAssets are the files every deployed site is expected to have.
var DefaultRequiredAssets = []string{
	"favicon.ico",
	"assets/images/og-default.png",
	"assets/images/logo.png",
	"assets/manifest.json",
}

// ContentProbe checks the local content tree.
type ContentProbe struct {
	config  ContentConfig
	fetcher Fetcher
	links   *resilience.Executor
	logger  observe.Logger
	now     func() time.Time
}

// NewContentProbe creates the probe with defaults applied.
func NewContentProbe(config ContentConfig, f Fetcher, logger observe.Logger) *ContentProbe {
	if config.PostsDir == "" {
		config.PostsDir = "_posts"
	}
	if config.ImagesDir == "" {
		config.ImagesDir = "assets/images"
	}
	if config.LargeImageBytes <= 0 {
		config.LargeImageBytes = 1 << 20
	}
	if config.RecentWindow <= 0 {
		config.RecentWindow = 30 * 24 * time.Hour
	}
	if config.RequiredAssets == nil {
		config.RequiredAssets = DefaultRequiredAssets
	}
	if config.Links.MaxConcurrent <= 0 {
		config.Links.MaxConcurrent = 4
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	links := resilience.NewExecutor(
		resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  config.Links.Rate,
			Burst: config.Links.MaxConcurrent,
		})),
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: config.Links.MaxConcurrent,
		})),
		resilience.WithBreakers(resilience.NewBreakers(resilience.CircuitBreakerConfig{
			MaxFailures:  config.Links.MaxFailures,
			ResetTimeout: time.Minute,
			// Only an unreachable host counts against it; 404s are answers.
			IsFailure: func(err error) bool {
				var se *linkStatusError
				return err != nil && !errors.As(err, &se)
			},
		})),
	)

	return &ContentProbe{config: config, fetcher: f, links: links, logger: logger, now: time.Now}
}

// Name implements Probe.
func (p *ContentProbe) Name() Name { return NameContent }

// Run implements Probe. It fails only when the content root is missing or
// neither the entries nor the images can be read.
func (p *ContentProbe) Run(ctx context.Context, t Target) Result[Content] {
	if fi, err := os.Stat(t.ContentRoot); err != nil || !fi.IsDir() {
		return Fail[Content](KindNotFound, "content root %q is not a directory", t.ContentRoot)
	}
	fsys := os.DirFS(t.ContentRoot)

	var entries []content.Entry
	out := Content{BrokenLinks: []BrokenLink{}, MissingAssets: []string{}}
	out.Quality = Quality{MissingTags: []string{}, MissingDescription: []string{}}

	tree := &content.Tree{FS: fsys, Dir: p.config.PostsDir}
	var treeErr error
	for e, err := range tree.Entries(ctx) {
		if err != nil {
			if e.Path == "" {
				treeErr = err
				break
			}
			out.Posts.Total++
			p.logger.Warn(ctx, "skipping unreadable entry", observe.F("path", e.Path), observe.Err(err))
			continue
		}
		entries = append(entries, e)
	}
	if treeErr != nil {
		out.Posts.Error = treeErr.Error()
	}

	images, imgErr := scanImages(ctx, fsys, p.config.ImagesDir, p.config.LargeImageBytes)
	if imgErr != nil {
		images = Images{Large: []LargeImage{}, Unoptimized: []string{}, Error: imgErr.Error()}
	}
	if treeErr != nil && imgErr != nil {
		return Fail[Content](KindNotFound, "no entries (%v) and no images (%v)", treeErr, imgErr)
	}
	out.Images = images

	p.countPosts(&out.Posts, entries)
	out.Quality = quality(entries)
	out.MissingAssets = missingAssets(fsys, p.config.RequiredAssets)

	broken, err := p.brokenLinks(ctx, t, fsys)
	out.BrokenLinks = broken
	if err != nil {
		out.BrokenLinksError = err.Error()
	}
	return Ok(out)
}

func (p *ContentProbe) countPosts(c *PostCounts, entries []content.Entry) {
	cutoff := p.now().Add(-p.config.RecentWindow)
	for _, e := range entries {
		c.Total++
		if e.Header.Draft() {
			c.Drafts++
		} else {
			c.Published++
		}
		if d, ok := e.Header.Date(); ok && d.After(cutoff) {
			c.Recent++
		}
	}
}

func quality(entries []content.Entry) Quality {
	q := Quality{MissingTags: []string{}, MissingDescription: []string{}}
	if len(entries) == 0 {
		return q
	}
	words := 0
	for _, e := range entries {
		words += content.WordCount(e.Body)
		if !e.Header.Has("tags") {
			q.MissingTags = append(q.MissingTags, e.Path)
		}
		if !e.Header.Has("description") {
			q.MissingDescription = append(q.MissingDescription, e.Path)
		}
	}
	q.AverageWordCount = int(math.Round(float64(words) / float64(len(entries))))
	return q
}

func missingAssets(fsys fs.FS, assets []string) []string {
	missing := []string{}
	for _, a := range assets {
		if _, err := fs.Stat(fsys, path.Clean(a)); err != nil {
			missing = append(missing, a)
		}
	}
	return missing
}

type linkStatusError struct{ code int }

func (e *linkStatusError) Error() string { return fmt.Sprintf("status %d", e.code) }

// brokenLinks checks every link of every Markdown page under the content
// root. Relative links resolve against the page's own directory. The
// returned order is path order, then link order within the page, regardless
// of which checks finish first.
func (p *ContentProbe) brokenLinks(ctx context.Context, t Target, fsys fs.FS) ([]BrokenLink, error) {
	type check struct {
		file   string
		link   content.Link
		broken bool
	}
	var checks []*check
	for e, err := range content.NewSiteTree(fsys).Entries(ctx) {
		if err != nil {
			if e.Path == "" {
				return []BrokenLink{}, fmt.Errorf("link scan: %w", err)
			}
			p.logger.Debug(ctx, "skipping page in link scan", observe.F("path", e.Path), observe.Err(err))
			continue
		}
		for _, l := range content.Links(e.Body) {
			switch l.Kind() {
			case content.LinkSiteAbsolute, content.LinkRelative:
				checks = append(checks, &check{file: e.Path, link: l})
			}
		}
	}

	base, baseErr := t.Base()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Links.MaxConcurrent)
	for _, c := range checks {
		if c.link.Kind() == content.LinkRelative {
			c.broken = !localExists(fsys, path.Dir(c.file), c.link.Path())
			continue
		}
		if baseErr != nil {
			c.broken = true
			continue
		}
		g.Go(func() error {
			c.broken = !p.remoteExists(gctx, base, c.link.Path())
			return nil
		})
	}
	_ = g.Wait()

	broken := []BrokenLink{}
	for _, c := range checks {
		if c.broken {
			broken = append(broken, BrokenLink{File: c.file, Link: c.link.Target})
		}
	}
	if err := ctx.Err(); err != nil {
		return broken, fmt.Errorf("link scan incomplete: %w", err)
	}
	return broken, nil
}

func localExists(fsys fs.FS, dir, target string) bool {
	if target == "" {
		return true
	}
	if decoded, err := url.PathUnescape(target); err == nil {
		target = decoded
	}
	p := path.Join(dir, target)
	if !fs.ValidPath(p) {
		return false
	}
	_, err := fs.Stat(fsys, p)
	return err == nil
}

func (p *ContentProbe) remoteExists(ctx context.Context, base *url.URL, target string) bool {
	ref, err := url.Parse(target)
	if err != nil {
		return false
	}
	u := base.ResolveReference(ref).String()
	err = p.links.ExecuteKey(ctx, base.Host, func(ctx context.Context) error {
		resp, err := p.fetcher.Head(ctx, u)
		if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
			resp, err = p.fetcher.Get(ctx, u)
		}
		if err != nil {
			return err
		}
		if resp.StatusCode >= 400 {
			return &linkStatusError{code: resp.StatusCode}
		}
		return nil
	})
	if err != nil {
		p.logger.Debug(ctx, "broken link", observe.F("url", u), observe.Err(err))
	}
	return err == nil
}
