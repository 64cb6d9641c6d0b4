package health

import "errors"

var (
	// ErrNoProbes is returned when an orchestrator is built without probes.
	ErrNoProbes = errors.New("health: no probes configured")

	// ErrProbeTimeout is the failure recorded for a probe that did not
	// finish in time.
	ErrProbeTimeout = errors.New("health: probe timed out")
)
