// Package redirect resolves a URL's redirect chain to its terminal page.
// Resolution prefers a real browser engine so client-side and meta redirects
// are observed, with a plain HTTP tracer as the last-resort fallback.
package redirect

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/safelens/safelens/internal/model"
)

// Resolution is the resolver's view of a target after following redirects.
type Resolution struct {
	Chain model.RedirectChain
	HTML  string // rendered markup of the terminal page, when available
	Title string
}

// Resolver follows a URL to its terminal page, bounding chain length at the
// configured hop ceiling.
type Resolver struct {
	nav    Navigator
	tracer *Tracer
	cfg    model.RedirectConfig
}

// NewResolver creates a resolver. nav may be nil, in which case every
// resolution uses the plain tracer directly.
func NewResolver(nav Navigator, tracer *Tracer, cfg model.RedirectConfig) *Resolver {
	return &Resolver{nav: nav, tracer: tracer, cfg: cfg}
}

// Resolve follows the redirect chain from rawURL. It never returns an error
// for unreachable targets: the zero-hop view of the original URL is the
// degraded answer. An error is returned only for unusable input.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Resolution, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("empty url")
	}

	res := &Resolution{
		Chain: model.RedirectChain{URLs: []string{rawURL}, FinalURL: rawURL},
	}

	if r.nav == nil {
		chain, err := r.tracer.Trace(ctx, rawURL, r.cfg.HopCeiling)
		if err == nil {
			res.Chain = chain
		}
		return r.applyOverride(rawURL, res), nil
	}

	nav, err := r.nav.Navigate(ctx, rawURL, r.cfg.HopCeiling)
	if err == nil || nav != nil && nav.Hops >= r.cfg.HopCeiling {
		r.absorb(rawURL, nav, res)
		return r.applyOverride(rawURL, res), nil
	}

	if !protocolError(err) {
		fmt.Fprintf(os.Stderr, "Warning: navigation failed: %v\n", err)
		return r.applyOverride(rawURL, res), nil
	}

	// Protocol/TLS failure: retry once over plain HTTP from the same start.
	httpURL := downgrade(rawURL)
	nav, retryErr := r.nav.Navigate(ctx, httpURL, r.cfg.HopCeiling)
	if retryErr == nil {
		r.absorb(httpURL, nav, res)
		return r.applyOverride(rawURL, res), nil
	}

	// Last resort: plain HTTP client. Its view of the final URL and hop
	// count is accepted as-is.
	chain, traceErr := r.tracer.Trace(ctx, httpURL, r.cfg.HopCeiling)
	if traceErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: fallback trace failed: %v\n", traceErr)
		return r.applyOverride(rawURL, res), nil
	}
	res.Chain = chain
	return r.applyOverride(rawURL, res), nil
}

// Score maps an observed hop count to the redirect stage's penalty and
// status. Reaching the ceiling is the full penalty and a terminal DANGER.
func (r *Resolver) Score(count int) (penalty int, status model.StageStatus) {
	switch {
	case count >= r.cfg.HopCeiling:
		return 100, model.StatusDanger
	case count >= 3:
		return r.cfg.BasePenalty + (count-3)*r.cfg.ExtraPenalty, model.StatusSuspicious
	default:
		return 0, model.StatusSafe
	}
}

// absorb folds a navigation result into the resolution.
func (r *Resolver) absorb(startURL string, nav *NavResult, res *Resolution) {
	res.HTML = nav.HTML
	res.Title = nav.Title
	res.Chain.Count = nav.Hops

	if nav.FinalURL != "" && nav.FinalURL != startURL {
		res.Chain.URLs = append(res.Chain.URLs, nav.FinalURL)
		res.Chain.FinalURL = nav.FinalURL
		// A changed terminal URL with no counted 3xx means a client-side
		// redirect happened; that is one hop.
		if res.Chain.Count == 0 {
			res.Chain.Count = 1
		}
	}
}

// applyOverride discards the chain when the terminal URL is an internal
// network-diagnostic/block page. An infrastructure proxy rewriting the
// navigation must not masquerade as evidence about the target.
func (r *Resolver) applyOverride(rawURL string, res *Resolution) *Resolution {
	for _, host := range r.cfg.BlockPageHosts {
		if host != "" && strings.Contains(res.Chain.FinalURL, host) {
			res.Chain = model.RedirectChain{URLs: []string{rawURL}, FinalURL: rawURL}
			res.HTML = ""
			res.Title = ""
			return res
		}
	}
	return res
}

// protocolError reports whether a navigation failure looks like a TLS or
// connection-level problem worth retrying over plain HTTP.
func protocolError(err error) bool {
	msg := err.Error()
	for _, needle := range []string{
		"ERR_CERT", "ERR_SSL", "ERR_CONNECTION_REFUSED", "chrome-error",
		"tls:", "certificate", "connection refused",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// downgrade rewrites an https URL to http, leaving other schemes untouched.
func downgrade(rawURL string) string {
	if strings.HasPrefix(rawURL, "https://") {
		return "http://" + strings.TrimPrefix(rawURL, "https://")
	}
	return rawURL
}
