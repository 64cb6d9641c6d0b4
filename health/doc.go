// Package health runs the site probes and turns their results into a
// scored report.
//
// An Orchestrator runs every enabled probe concurrently. Each probe gets
// its own timeout, bounded by what is left of the run budget; a probe that
// has not answered by then is recorded as timed out and its late result is
// discarded. A panicking probe is recorded as an internal failure. The run
// always produces a complete report.
//
//	orch, err := health.NewOrchestrator(health.Config{}, probes)
//	if err != nil {
//	    return err
//	}
//	rep := orch.Run(ctx, target)
//	fmt.Printf("Health Score: %d/100\n", rep.OverallScore)
//
// The package also provides HTTP handlers exposing liveness, readiness and
// the stored reports.
package health
