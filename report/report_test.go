package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/sitehealth/probe"
)

func sample() *Report {
	score := 87.5
	vulns := false
	return &Report{
		RunID:     "4b1c1e8e-2f3a-4d7e-9d1f-0c9b9d6f2a10",
		Timestamp: time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC),
		Target:    NewTarget(probe.Target{SiteURL: "https://example.com", ContentRoot: "/srv/site", Enabled: probe.AllProbes()}),
		Results: Results{
			Availability: probe.Ok(probe.Availability{Reachable: true, HTTPStatus: 200, LatencyMS: 120, TLS: true, FinalURL: "https://example.com/"}),
			Performance:  probe.Ok(probe.Performance{AuditScore: &score, Suggestions: []string{probe.OptimizeSuggestion}}),
			SEO:          probe.Fail[probe.SEO](probe.KindTimeout, "deadline exceeded"),
			Content: probe.Ok(probe.Content{
				BrokenLinks:   []probe.BrokenLink{{File: "_posts/a.md", Link: "/gone/"}},
				MissingAssets: []string{},
			}),
			Security: probe.Ok(probe.Security{HTTPSEnabled: true, Headers: map[string]bool{"x-frame-options": true}, VulnerabilitiesFound: &vulns}),
			Build:    probe.Fail[probe.Build](probe.KindToolMissing, "bundle is not installed"),
		},
		OverallScore:   62,
		ScoreBreakdown: Breakdown{Availability: 25, Performance: 18, Content: 10, Security: 10},
	}
}

func TestMarshal_RoundTripIsByteIdentical(t *testing.T) {
	first, err := Marshal(sample())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	back, err := Unmarshal(first)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	second, err := Marshal(back)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("round trip changed the document:\n%s\n---\n%s", first, second)
	}
}

func TestMarshal_Keys(t *testing.T) {
	data, err := Marshal(sample())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{
		KeyAvailability, KeyPerformance, KeySEO, KeyContent, KeySecurity, KeyBuild,
		"overall_score", "score_breakdown", "timestamp", "run_id",
	} {
		if !strings.Contains(string(data), `"`+key+`":`) {
			t.Errorf("encoded report has no %q key", key)
		}
	}
	if !strings.Contains(string(data), `"timestamp": "2024-03-01T09:30:00.123456789Z"`) {
		t.Errorf("timestamp is not ISO-8601 UTC:\n%s", data)
	}
}

func TestMarshal_AllFailed(t *testing.T) {
	r := &Report{
		Results: Results{
			Availability: probe.Fail[probe.Availability](probe.KindNetworkUnavailable, "refused"),
			Performance:  probe.Fail[probe.Performance](probe.KindTimeout, "x"),
			SEO:          probe.Fail[probe.SEO](probe.KindTimeout, "x"),
			Content:      probe.Fail[probe.Content](probe.KindNotFound, "x"),
			Security:     probe.Fail[probe.Security](probe.KindInternal, "panic"),
			Build:        probe.Fail[probe.Build](probe.KindToolMissing, "x"),
		},
	}
	data, err := Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got := strings.Count(string(data), `"status": "failed"`); got != 6 {
		t.Errorf("failed results = %d, want 6", got)
	}
	if strings.Contains(string(data), `"data"`) {
		t.Error("a failed result carries data")
	}
	if got := len(r.Failures()); got != 6 {
		t.Errorf("Failures() = %d entries, want 6", got)
	}
}

func TestResults_Failures(t *testing.T) {
	f := sample().Failures()
	if len(f) != 2 {
		t.Fatalf("Failures() = %v, want 2 entries", f)
	}
	if f[probe.NameBuild].Kind != probe.KindToolMissing || f[probe.NameSEO].Kind != probe.KindTimeout {
		t.Errorf("Failures() = %v", f)
	}
}

func TestKey(t *testing.T) {
	seen := map[string]bool{}
	for _, n := range probe.Names {
		k := Key(n)
		if seen[k] {
			t.Errorf("Key(%s) = %q is not unique", n, k)
		}
		seen[k] = true
	}
	if Key(probe.NameSEO) != "seo_health" {
		t.Errorf("Key(seo) = %q", Key(probe.NameSEO))
	}
}

func TestNewTarget_NoProbes(t *testing.T) {
	tgt := NewTarget(probe.Target{SiteURL: "https://x"})
	if tgt.Probes == nil {
		t.Error("Probes = nil, want empty")
	}
}
