package probe

import (
	"context"
	"net/url"
	"strings"
)

// Availability is the payload of the availability probe.
type Availability struct {
	Reachable  bool              `json:"reachable"`
	HTTPStatus int               `json:"http_status"`
	LatencyMS  int64             `json:"latency_ms"`
	TLS        bool              `json:"tls"`
	FinalURL   string            `json:"final_url"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// AvailabilityProbe fetches the site's base URL once.
type AvailabilityProbe struct {
	fetcher Fetcher
}

// NewAvailabilityProbe creates the probe.
func NewAvailabilityProbe(f Fetcher) *AvailabilityProbe {
	return &AvailabilityProbe{fetcher: f}
}

// Name implements Probe.
func (p *AvailabilityProbe) Name() Name { return NameAvailability }

// Run implements Probe. Any HTTP answer is an Ok result; only a request
// that got no answer fails.
func (p *AvailabilityProbe) Run(ctx context.Context, t Target) Result[Availability] {
	base, err := t.Base()
	if err != nil {
		return Fail[Availability](KindNotFound, "%s", err.Error())
	}

	resp, err := p.fetcher.Get(ctx, base.String())
	if err != nil {
		return FailErr[Availability](err)
	}

	final, err := url.Parse(resp.FinalURL)
	tls := err == nil && strings.EqualFold(final.Scheme, "https")

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}

	return Ok(Availability{
		Reachable:  resp.OK(),
		HTTPStatus: resp.StatusCode,
		LatencyMS:  resp.Latency.Milliseconds(),
		TLS:        tls,
		FinalURL:   resp.FinalURL,
		Headers:    headers,
	})
}
