package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/sitehealth/toolexec"
)

func TestAuditScore(t *testing.T) {
	tests := []struct {
		name    string
		report  string
		want    float64
		wantErr bool
	}{
		{"bare", `{"categories":{"performance":{"score":0.87}}}`, 87, false},
		{"wrapped", `{"lhr":{"categories":{"performance":{"score":1}}}}`, 100, false},
		{"rounded", `{"categories":{"performance":{"score":0.91234}}}`, 91.23, false},
		{"null score", `{"categories":{"performance":{"score":null}}}`, 0, true},
		{"missing", `{"categories":{}}`, 0, true},
		{"invalid", `not json`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AuditScore([]byte(tt.report))
			if (err != nil) != tt.wantErr {
				t.Fatalf("AuditScore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if Classify(err) != KindParseFailure {
					t.Errorf("Classify() = %q, want parse_failure", Classify(err))
				}
				return
			}
			if *got != tt.want {
				t.Errorf("AuditScore() = %v, want %v", *got, tt.want)
			}
		})
	}
}

func siteWithCSS(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
<link rel="stylesheet" href="/main.css">
<link href="broken.css" rel="stylesheet">
<link rel="stylesheet" href="https://cdn.example.invalid/x.css">
<link rel="icon" href="/favicon.ico">
</head></html>`))
	})
	mux.HandleFunc("/main.css", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writesReport pretends to be the audit tool, writing report to the
// --output-path argument.
func writesReport(t *testing.T, report string) ToolRunner {
	return toolFunc(func(_ context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
		for _, a := range cmd.Args {
			if out, ok := strings.CutPrefix(a, "--output-path="); ok {
				if err := os.WriteFile(out, []byte(report), 0o644); err != nil {
					t.Errorf("write report: %v", err)
				}
			}
		}
		return &toolexec.Result{}, nil
	})
}

func TestPerformanceProbe(t *testing.T) {
	srv := siteWithCSS(t)
	p := NewPerformanceProbe(PerformanceConfig{}, newFetcher(time.Second),
		writesReport(t, `{"categories":{"performance":{"score":0.5}}}`), nil)

	perf, ok := p.Run(context.Background(), Target{SiteURL: srv.URL}).Value()
	if !ok {
		t.Fatal("Run() failed")
	}
	if perf.AuditScore == nil || *perf.AuditScore != 50 {
		t.Errorf("AuditScore = %v, want 50", perf.AuditScore)
	}
	if len(perf.Suggestions) != 1 || perf.Suggestions[0] != OptimizeSuggestion {
		t.Errorf("Suggestions = %v", perf.Suggestions)
	}
	if perf.PageSize == nil {
		t.Fatal("PageSize = nil")
	}
	if perf.PageSize.CSSBytes != 2048 || perf.PageSize.CSSKB != 2 {
		t.Errorf("CSS = %d bytes, %v KiB, want 2048, 2", perf.PageSize.CSSBytes, perf.PageSize.CSSKB)
	}
	if perf.PageSize.Stylesheets != 1 || perf.PageSize.StylesheetErrors != 1 {
		t.Errorf("Stylesheets = %d, errors = %d, want 1, 1", perf.PageSize.Stylesheets, perf.PageSize.StylesheetErrors)
	}
	if perf.PageSize.TotalBytes != perf.PageSize.HTMLBytes+2048 {
		t.Errorf("TotalBytes = %d", perf.PageSize.TotalBytes)
	}
}

func TestPerformanceProbe_AuditFromStdout(t *testing.T) {
	srv := siteWithCSS(t)
	p := NewPerformanceProbe(PerformanceConfig{}, newFetcher(time.Second),
		exitWith(0, `{"categories":{"performance":{"score":0.95}}}`), nil)

	perf, _ := p.Run(context.Background(), Target{SiteURL: srv.URL}).Value()
	if perf.AuditScore == nil || *perf.AuditScore != 95 {
		t.Errorf("AuditScore = %v, want 95", perf.AuditScore)
	}
	if len(perf.Suggestions) != 0 {
		t.Errorf("Suggestions = %v, want none", perf.Suggestions)
	}
}

func TestPerformanceProbe_AuditUnavailable(t *testing.T) {
	srv := siteWithCSS(t)
	p := NewPerformanceProbe(PerformanceConfig{}, newFetcher(time.Second), toolMissing(), nil)

	r := p.Run(context.Background(), Target{SiteURL: srv.URL})
	perf, ok := r.Value()
	if !ok {
		t.Fatal("a missing audit tool should not fail the probe")
	}
	if perf.AuditScore != nil || perf.AuditError == "" {
		t.Errorf("AuditScore = %v, AuditError = %q", perf.AuditScore, perf.AuditError)
	}
	if len(perf.Suggestions) != 0 {
		t.Errorf("Suggestions = %v, want none without a score", perf.Suggestions)
	}
}

func TestPerformanceProbe_AuditNonZeroExit(t *testing.T) {
	srv := siteWithCSS(t)
	p := NewPerformanceProbe(PerformanceConfig{}, newFetcher(time.Second), exitWith(1, ""), nil)

	perf, _ := p.Run(context.Background(), Target{SiteURL: srv.URL}).Value()
	if perf.AuditScore != nil || perf.AuditError == "" {
		t.Errorf("AuditScore = %v, AuditError = %q", perf.AuditScore, perf.AuditError)
	}
}

func TestPerformanceProbe_BothFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewPerformanceProbe(PerformanceConfig{}, newFetcher(time.Second), toolMissing(), nil)
	f, failed := p.Run(context.Background(), Target{SiteURL: url}).Failure()
	if !failed {
		t.Fatal("Run() = Ok, want failure")
	}
	if f.Kind != KindNetworkUnavailable {
		t.Errorf("Kind = %q", f.Kind)
	}
}
