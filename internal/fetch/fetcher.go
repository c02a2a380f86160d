// Package fetch retrieves page content for the evidence stages. It carries
// the politeness machinery (per-domain rate limiting, optional robots.txt
// compliance, proxy support) so stages never talk raw HTTP themselves.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/safelens/safelens/internal/model"
	"github.com/safelens/safelens/internal/worker"
)

// Page is a fetched document plus the response metadata the feature
// extractors care about.
type Page struct {
	HTML          string
	FinalURL      string
	StatusCode    int
	ContentType   string
	Server        string
	ContentLength int64
}

// Fetcher fetches pages with a body cap and politeness controls.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *worker.Limiter
	robots    *RobotsChecker // nil when robots compliance is off
}

// NewFetcher builds a fetcher from HTTP config.
func NewFetcher(cfg model.HTTPConfig) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		limiter:   worker.NewLimiter(cfg.RatePerDomain, cfg.RateBurst),
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(cfg.UserAgent, cfg.Timeout)
	}
	return f
}

// Fetch retrieves the document at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := f.politeWait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{
		HTML:          string(body),
		FinalURL:      resp.Request.URL.String(),
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		Server:        resp.Header.Get("Server"),
		ContentLength: resp.ContentLength,
	}, nil
}

// Head issues a HEAD request and returns the response headers. Used by the
// hosting feature extractor, which only needs metadata.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (http.Header, error) {
	if err := f.politeWait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	header := resp.Header.Clone()
	if header.Get("Content-Length") == "" && resp.ContentLength >= 0 {
		header.Set("Content-Length", fmt.Sprintf("%d", resp.ContentLength))
	}
	return header, nil
}

func (f *Fetcher) politeWait(ctx context.Context, rawURL string) error {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err == nil && !allowed {
			return fmt.Errorf("disallowed by robots.txt: %s", rawURL)
		}
		if delay > 0 && delay < 10*time.Second {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}
