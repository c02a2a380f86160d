package redirect

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/safelens/safelens/internal/model"
)

var metaRefreshRe = regexp.MustCompile(`(?i)<meta[^>]*http-equiv\s*=\s*["']refresh["'][^>]*content\s*=\s*["']\d+;\s*url=([^"'>]+)`)

// Tracer follows redirects with a plain HTTP client. It is the last-resort
// fallback when browser navigation cannot reach the target; its view of the
// final URL and hop count is accepted as-is.
type Tracer struct {
	client    *http.Client
	userAgent string
}

// NewTracer creates a tracer with manual redirect handling so every hop is
// observed and counted.
func NewTracer(timeout time.Duration, userAgent string) *Tracer {
	return &Tracer{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
	}
}

// Trace follows the redirect chain from rawURL up to maxHops, counting 3xx
// responses and meta-refresh redirects as hops.
func (t *Tracer) Trace(ctx context.Context, rawURL string, maxHops int) (model.RedirectChain, error) {
	chain := model.RedirectChain{URLs: []string{rawURL}, FinalURL: rawURL}
	current := rawURL
	seen := map[string]struct{}{rawURL: {}}

	for chain.Count < maxHops {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return chain, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", t.userAgent)

		resp, err := t.client.Do(req)
		if err != nil {
			return chain, fmt.Errorf("fetch %s: %w", current, err)
		}

		next := ""
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			next = resp.Header.Get("Location")
			_ = resp.Body.Close()
		} else if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
			_ = resp.Body.Close()
			if m := metaRefreshRe.FindSubmatch(body); m != nil {
				next = string(m[1])
			}
		} else {
			_ = resp.Body.Close()
		}

		if next == "" {
			chain.FinalURL = current
			return chain, nil
		}

		resolved, err := resolveRef(current, next)
		if err != nil {
			chain.FinalURL = current
			return chain, nil
		}

		chain.Count++
		if _, loop := seen[resolved]; loop {
			// A chain loop terminates resolution; the hop count keeps
			// growing toward the ceiling if the loop is re-entered.
			chain.FinalURL = resolved
			return chain, nil
		}
		seen[resolved] = struct{}{}
		chain.URLs = append(chain.URLs, resolved)
		current = resolved
	}

	chain.FinalURL = current
	return chain, nil
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
