package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

// DefaultBaseURL is the production packages API.
const DefaultBaseURL = "https://packages.ecosyste.ms/api/v1"

// TransportError is returned for any transport-level fault: a
// non-success status, or a network failure (StatusCode 0, with the
// underlying error in Err).
type TransportError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error represents a 404 response.
func (e *TransportError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Client talks to the packages API. It never retries on its own;
// callers decide what a failure means.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string

	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex

	stop      chan struct{}
	closeOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithUserAgent sets the identifying User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client with a DNS-cached transport. Close stops
// the background cache refresh.
func NewClient(opts ...Option) *Client {
	resolver := &dnscache.Resolver{}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP")
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:   DefaultBaseURL,
		userAgent: "critdb/1.0",
		breakers:  make(map[string]*circuit.Breaker),
		stop:      stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops the DNS refresh goroutine. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
}

// FetchJSON issues a GET against rawURL and decodes the JSON response
// into v. Non-success statuses and network failures both yield a
// *TransportError.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// CriticalPackages fetches one page of the critical-package list.
// An empty slice signals the end of pagination.
func (c *Client) CriticalPackages(ctx context.Context, page, perPage int) ([]Package, error) {
	u := fmt.Sprintf("%s/packages/critical?per_page=%d&page=%d", c.baseURL, perPage, page)
	var pkgs []Package
	if err := c.FetchJSON(ctx, u, &pkgs); err != nil {
		return nil, err
	}
	return pkgs, nil
}

// VersionNumbers fetches the known version numbers for a package.
// Ecosystems without a registry mapping return (nil, nil) without a
// request. Calls are guarded by a per-registry circuit breaker so a
// dead registry endpoint fails fast; the breaker never retries.
func (c *Client) VersionNumbers(ctx context.Context, ecosystem, name string) ([]string, error) {
	registry, ok := RegistryFor(ecosystem)
	if !ok {
		return nil, nil
	}

	u := fmt.Sprintf("%s/registries/%s/packages/%s/version_numbers",
		c.baseURL, url.PathEscape(registry), url.PathEscape(name))

	breaker := c.breaker(registry)
	if !breaker.Ready() {
		return nil, fmt.Errorf("circuit breaker open for registry %s", registry)
	}

	var numbers []string
	err := breaker.Call(func() error {
		return c.FetchJSON(ctx, u, &numbers)
	}, 0)
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

// breaker returns or creates the circuit breaker for a registry.
func (c *Client) breaker(registry string) *circuit.Breaker {
	c.mu.RLock()
	breaker, exists := c.breakers[registry]
	c.mu.RUnlock()
	if exists {
		return breaker
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if breaker, exists := c.breakers[registry]; exists {
		return breaker
	}

	// Trips after 5 consecutive failures, recovers on exponential backoff.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	c.breakers[registry] = breaker
	return breaker
}
