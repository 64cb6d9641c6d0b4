package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/jonwraymond/sitehealth/probe"
	"github.com/jonwraymond/sitehealth/report"
	"github.com/jonwraymond/sitehealth/score"
	"github.com/jonwraymond/sitehealth/store"
)

func scoreColor(n int) func(a ...any) string {
	switch {
	case n >= 80:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	case n >= 60:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func printSummary(w io.Writer, r *report.Report, weights score.Weights, prev *store.Entry) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	paint := scoreColor(r.OverallScore)
	fmt.Fprintf(w, "Health Score: %s/%d\n", paint(r.OverallScore), score.Max)

	trend := store.Compare(prev, r.OverallScore)
	if prev == nil {
		fmt.Fprintf(w, "Trend: %s\n", trend)
	} else {
		fmt.Fprintf(w, "Trend: %s (%+d since %s)\n", trend, store.Delta(prev, r.OverallScore),
			prev.Timestamp.Local().Format(time.DateTime))
	}

	ceil := score.Ceiling(weights)
	b := r.ScoreBreakdown
	rows := []struct {
		name      string
		got, most int
	}{
		{"availability", b.Availability, ceil.Availability},
		{"performance", b.Performance, ceil.Performance},
		{"seo", b.SEO, ceil.SEO},
		{"content", b.Content, ceil.Content},
		{"security", b.Security, ceil.Security},
		{"build", b.Build, ceil.Build},
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		fmt.Fprintf(w, "  %-13s %3d %s\n", row.name, row.got, gray(fmt.Sprintf("/ %d", row.most)))
	}

	failures := r.Failures()
	if len(failures) == 0 {
		return
	}
	names := make([]string, 0, len(failures))
	for n := range failures {
		names = append(names, string(n))
	}
	sort.Strings(names)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Failed probes:")
	for _, n := range names {
		f := failures[probe.Name(n)]
		fmt.Fprintf(w, "  %-13s %s %s\n", n, red(f.Kind), f.Message)
	}
}

func printHistory(w io.Writer, h store.History) {
	if len(h.Entries) == 0 {
		fmt.Fprintln(w, "No reports stored.")
		return
	}
	fmt.Fprintf(w, "%-20s %5s  %s\n", "TIMESTAMP", "SCORE", "RUN")
	for _, e := range h.Entries {
		fmt.Fprintf(w, "%-20s %5s  %s\n", e.Timestamp.Local().Format(time.DateTime),
			scoreColor(e.Score)(fmt.Sprintf("%5d", e.Score)), e.RunID)
	}
	fmt.Fprintf(w, "\nTrend: %s  average %.1f  best %d  worst %d\n", h.Trend, h.Average, h.Best, h.Worst)
}
