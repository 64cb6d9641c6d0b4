// Package fetch is the HTTP client shared by every probe in a run.
//
// Concurrent requests for the same method and URL are collapsed into one,
// and finished responses are kept in a cache for the rest of the run, so
// the homepage is downloaded once no matter how many probes read it.
// Transient network failures and 502/503/504 answers are retried.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/sitehealth/cache"
	"github.com/jonwraymond/sitehealth/observe"
	"github.com/jonwraymond/sitehealth/resilience"
)

// ErrBodyTooLarge is returned when a body exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("fetch: response body too large")

// Response is a fully read HTTP response. Responses may be shared between
// callers and must be treated as read-only.
type Response struct {
	Method     string        `json:"method"`
	URL        string        `json:"url"`
	FinalURL   string        `json:"final_url"`
	StatusCode int           `json:"status_code"`
	Header     http.Header   `json:"header"`
	Body       []byte        `json:"body"`
	Latency    time.Duration `json:"latency"`
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError reports a gateway failure that outlasted every retry.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s answered %d", e.URL, e.Code)
}

// Retryable implements resilience.Retryable.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusBadGateway || e.Code == http.StatusServiceUnavailable || e.Code == http.StatusGatewayTimeout
}

// Config configures a Client.
type Config struct {
	// Timeout bounds each attempt.
	// Default: 10s
	Timeout time.Duration

	// UserAgent is sent with every request.
	// Default: "sitehealth"
	UserAgent string

	// MaxBodyBytes caps how much of a body is read.
	// Default: 10 MiB
	MaxBodyBytes int64

	// MaxRedirects bounds redirect chains.
	// Default: 10
	MaxRedirects int

	// Retry re-issues transient failures. Nil uses two attempts.
	Retry *resilience.Retry

	// Cache stores responses; Policy decides what is stored.
	// Default: an in-memory cache with cache.DefaultPolicy.
	Cache  cache.Cache
	Policy *cache.Policy

	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper

	Logger observe.Logger
}

// Client performs GET and HEAD requests. It is safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client
	group  singleflight.Group
	policy cache.Policy
}

// New creates a Client with defaults applied.
func New(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "sitehealth"
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 10 << 20
	}
	if config.MaxRedirects <= 0 {
		config.MaxRedirects = 10
	}
	if config.Retry == nil {
		config.Retry = resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2, Jitter: true})
	}
	if config.Cache == nil {
		config.Cache = cache.NewMemoryCache(256)
	}
	policy := cache.DefaultPolicy()
	if config.Policy != nil {
		policy = *config.Policy
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	maxRedirects := config.MaxRedirects
	return &Client{
		config: config,
		policy: policy,
		http: &http.Client{
			Transport: config.Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("fetch: stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Get fetches url and reads its body.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url)
}

// Head fetches url's headers only.
func (c *Client) Head(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodHead, url)
}

// Do performs a GET or HEAD. Any status code is a successful fetch; the
// error return is reserved for requests that produced no usable answer.
func (c *Client) Do(ctx context.Context, method, url string) (*Response, error) {
	key, err := cache.RequestKey(method, url)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	if data, ok := c.config.Cache.Get(ctx, key); ok {
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil {
			return &resp, nil
		}
		_ = c.config.Cache.Delete(ctx, key)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Detached from the first caller so that its cancellation does not
		// fail every caller sharing this flight; each attempt still has
		// its own timeout.
		resp, err := c.fetch(context.WithoutCancel(ctx), method, url)
		if err != nil {
			return nil, err
		}
		if c.policy.ShouldCache(method, resp.StatusCode) {
			if data, err := json.Marshal(resp); err == nil {
				_ = c.config.Cache.Set(ctx, key, data, c.policy.EffectiveTTL(0))
			}
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Response), nil
	}
}

func (c *Client) fetch(ctx context.Context, method, url string) (*Response, error) {
	var last *Response
	attempt := 0
	err := c.config.Retry.Execute(ctx, func(ctx context.Context) error {
		attempt++
		resp, err := c.once(ctx, method, url)
		if err != nil {
			c.config.Logger.Debug(ctx, "fetch attempt failed",
				observe.F("method", method), observe.F("url", url),
				observe.F("attempt", attempt), observe.Err(err))
			return err
		}
		last = resp
		if se := (&StatusError{Code: resp.StatusCode, URL: url}); se.Retryable() {
			return se
		}
		return nil
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && last != nil {
			return last, nil
		}
		return nil, err
	}
	return last, nil
}

func (c *Client) once(ctx context.Context, method, url string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body []byte
	if method != http.MethodHead {
		body, err = io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
		if err != nil {
			return nil, fmt.Errorf("fetch: read body of %s: %w", url, err)
		}
		if int64(len(body)) > c.config.MaxBodyBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, url, c.config.MaxBodyBytes)
		}
	}

	latency := time.Since(start)

	return &Response{
		Method:     method,
		URL:        url,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		Latency:    latency,
	}, nil
}
