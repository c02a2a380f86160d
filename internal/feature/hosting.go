// Package feature turns a URL and its landing page into the tabular records
// the classifier models consume. Extraction never fails: signals that cannot
// be gathered fall back to unknown sentinels (-1 for numerics, "Unknown" for
// categoricals) so a dead endpoint still yields a scorable record.
package feature

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/safelens/safelens/internal/classify"
	"github.com/safelens/safelens/internal/fetch"
	"github.com/safelens/safelens/internal/whois"
)

// registrar is the WHOIS surface the extractors need.
type registrar interface {
	Lookup(ctx context.Context, domain string) whois.Registration
	DNSLatency(ctx context.Context, domain string) float64
}

var _ registrar = (*whois.Client)(nil)

// HostingFeatures describes where and how a URL is served: response
// metadata, registration data and DNS timing.
type HostingFeatures struct {
	URLLength     int
	SpecialChars  int
	Charset       string
	Server        string
	ContentLength int64
	Country       string
	State         string
	AgeDays       int
	DNSLatencyMS  float64
}

// HostingExtractor gathers hosting features via HEAD requests and WHOIS.
type HostingExtractor struct {
	fetcher *fetch.Fetcher
	whois   registrar
}

// NewHostingExtractor creates a hosting feature extractor.
func NewHostingExtractor(fetcher *fetch.Fetcher, whoisClient registrar) *HostingExtractor {
	return &HostingExtractor{fetcher: fetcher, whois: whoisClient}
}

// Extract computes hosting features. Length counts use the original URL;
// network-derived signals use the post-redirect URL when one is given.
func (x *HostingExtractor) Extract(ctx context.Context, rawURL, finalURL string) HostingFeatures {
	target := finalURL
	if target == "" {
		target = rawURL
	}

	f := HostingFeatures{
		URLLength:     len(rawURL),
		SpecialChars:  countSpecialChars(rawURL),
		Charset:       "Unknown",
		Server:        "Unknown",
		ContentLength: -1,
		Country:       "Unknown",
		State:         "Unknown",
		AgeDays:       -1,
		DNSLatencyMS:  -1,
	}

	if header, err := x.fetcher.Head(ctx, target); err == nil {
		if cs := charsetOf(header.Get("Content-Type")); cs != "" {
			f.Charset = cs
		}
		if s := header.Get("Server"); s != "" {
			f.Server = s
		}
		if cl := header.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				f.ContentLength = n
			}
		}
	}

	if domain := domainOf(target); domain != "" {
		reg := x.whois.Lookup(ctx, domain)
		if reg.Country != "" {
			f.Country = reg.Country
		}
		if reg.State != "" {
			f.State = reg.State
		}
		f.AgeDays = reg.AgeDays(time.Now())
		f.DNSLatencyMS = x.whois.DNSLatency(ctx, domain)
	}

	return f
}

// Record encodes the features for the hosting model.
func (f HostingFeatures) Record() classify.Record {
	return classify.Record{
		Numeric: map[string]float64{
			"url_length":      float64(f.URLLength),
			"special_chars":   float64(f.SpecialChars),
			"content_length":  float64(f.ContentLength),
			"domain_age_days": float64(f.AgeDays),
			"dns_latency_ms":  f.DNSLatencyMS,
		},
		Categorical: map[string]string{
			"charset": f.Charset,
			"server":  f.Server,
			"country": f.Country,
			"state":   f.State,
		},
	}
}

func countSpecialChars(s string) int {
	n := 0
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			n++
		}
	}
	return n
}

// charsetOf pulls the charset parameter out of a Content-Type header.
func charsetOf(contentType string) string {
	i := strings.Index(strings.ToLower(contentType), "charset=")
	if i < 0 {
		return ""
	}
	cs := contentType[i+len("charset="):]
	if j := strings.Index(cs, ";"); j >= 0 {
		cs = cs[:j]
	}
	return strings.TrimSpace(cs)
}

// domainOf returns the bare hostname of a URL: no scheme, port or www.
func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
