package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/sitehealth/fetch"
	"github.com/jonwraymond/sitehealth/probe"
	"github.com/jonwraymond/sitehealth/toolexec"
)

// slowTool outlives any deadline used below.
var slowTool = probe.Tool{Command: "sleep", Args: []string{"5"}, Timeout: 2 * time.Second}

func healthySite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Blog</title><meta name="description" content="x"></head><body></body></html>`))
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>/</loc></url></urlset>`))
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func slowToolTarget(t *testing.T, site string, enabled ...probe.Name) probe.Target {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "_posts"), 0o755); err != nil {
		t.Fatal(err)
	}
	post := "---\ntitle: Hello\n---\nbody\n"
	if err := os.WriteFile(filepath.Join(root, "_posts", "2024-01-01-hello.md"), []byte(post), 0o644); err != nil {
		t.Fatal(err)
	}
	return probe.Target{
		SiteURL:     site,
		ContentRoot: root,
		Timeout:     500 * time.Millisecond,
		Enabled:     probe.NewSet(enabled...),
	}
}

func TestOrchestrator_SlowLinkCheckerKeepsSEO(t *testing.T) {
	srv := healthySite(t)
	f := fetch.New(fetch.Config{Timeout: time.Second})
	set := Probes{
		SEO: probe.NewSEOProbe(probe.SEOConfig{LinkChecker: slowTool}, f, toolexec.NewRunner(), nil),
	}
	o, err := NewOrchestrator(Config{}, set)
	if err != nil {
		t.Fatal(err)
	}

	rep := o.Run(context.Background(), slowToolTarget(t, srv.URL, probe.NameSEO))

	seo, ok := rep.SEO.Value()
	if !ok {
		f, _ := rep.SEO.Failure()
		t.Fatalf("SEO failed: %v", f)
	}
	if seo.InternalLinks == nil || seo.InternalLinks.Error == "" {
		t.Errorf("InternalLinks = %+v, want its own error", seo.InternalLinks)
	}
	if !seo.Sitemap.Exists || !seo.Robots.Exists || !seo.Meta.Title || !seo.Meta.Description {
		t.Errorf("SEO = %+v, want the other sections intact", seo)
	}
	if rep.ScoreBreakdown.SEO != 20 {
		t.Errorf("SEO points = %d, want 20", rep.ScoreBreakdown.SEO)
	}
}

func TestOrchestrator_SlowAuditIsSoft(t *testing.T) {
	srv := healthySite(t)
	f := fetch.New(fetch.Config{Timeout: time.Second})
	tools := toolexec.NewRunner()
	set := Probes{
		Performance: probe.NewPerformanceProbe(probe.PerformanceConfig{Audit: slowTool}, f, tools, nil),
		Security:    probe.NewSecurityProbe(probe.SecurityConfig{Audit: slowTool}, f, tools, nil),
	}
	o, err := NewOrchestrator(Config{}, set)
	if err != nil {
		t.Fatal(err)
	}

	rep := o.Run(context.Background(), slowToolTarget(t, srv.URL, probe.NamePerformance, probe.NameSecurity))

	perf, ok := rep.Performance.Value()
	if !ok {
		f, _ := rep.Performance.Failure()
		t.Fatalf("performance failed: %v", f)
	}
	if perf.AuditScore != nil || perf.AuditError == "" {
		t.Errorf("audit = %v / %q, want null score with an error", perf.AuditScore, perf.AuditError)
	}
	if perf.PageSize == nil {
		t.Error("PageSize = nil, want the homepage weight")
	}

	sec, ok := rep.Security.Value()
	if !ok {
		f, _ := rep.Security.Failure()
		t.Fatalf("security failed: %v", f)
	}
	if sec.VulnerabilitiesFound != nil || sec.AuditError == "" {
		t.Errorf("audit = %v / %q, want unknown with an error", sec.VulnerabilitiesFound, sec.AuditError)
	}
	if sec.HeadersError != "" || len(sec.Headers) == 0 {
		t.Errorf("headers = %v / %q, want checked", sec.Headers, sec.HeadersError)
	}
}
