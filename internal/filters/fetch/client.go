// Package fetch performs the network side of filter updates: bounded full
// downloads, incremental patch application, and directive resolution.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"sieve/internal/platform/config"
)

// Client downloads filter lists with shared hygiene: a per-request timeout,
// a response size cap, and one rate limiter across all outbound requests.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	maxBody   int64
	userAgent string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient creates a download client from configuration.
func NewClient(cfg config.FetchConfig, opts ...Option) *Client {
	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 128 << 20
	}

	c := &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1),
		maxBody:   maxBody,
		userAgent: cfg.UserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SplitLines normalizes line endings and splits content into lines. A single
// trailing newline does not produce an empty final line.
func SplitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return []string{}
	}
	return strings.Split(content, "\n")
}

// ResolveRelative resolves ref (possibly relative, e.g. "../patches/x.patch")
// against the base list URL.
func ResolveRelative(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse relative url: %w", err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// get performs one rate-limited request. found is false on 404, which
// callers in the patch path treat as "nothing published".
func (c *Client) get(ctx context.Context, rawURL string) (body string, found bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", false, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	if int64(len(data)) > c.maxBody {
		return "", false, fmt.Errorf("fetch %s: body exceeds %d bytes", rawURL, c.maxBody)
	}
	return string(data), true, nil
}

// FetchBody fetches a single document (the catalog index, for example) under
// the same hygiene as list downloads. A 404 is an error here.
func (c *Client) FetchBody(ctx context.Context, rawURL string) (string, error) {
	body, found, err := c.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("fetch %s: not found", rawURL)
	}
	return body, nil
}

// DownloadFull fetches the complete list at url.
func (c *Client) DownloadFull(ctx context.Context, rawURL string) ([]string, error) {
	body, err := c.FetchBody(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return SplitLines(body), nil
}
