// Package whois provides registration metadata and DNS timing for a domain.
// Lookups degrade to an explicit "unavailable" outcome instead of failing;
// feature extraction treats that as an unknown sentinel, never as an error.
package whois

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Registration is the subset of WHOIS data the feature extractors consume.
type Registration struct {
	Country     string
	State       string
	CreatedAt   time.Time
	Unavailable bool
}

// AgeDays returns the domain age in days, or -1 when unknown.
func (r Registration) AgeDays(now time.Time) int {
	if r.Unavailable || r.CreatedAt.IsZero() {
		return -1
	}
	return int(now.Sub(r.CreatedAt).Hours() / 24)
}

var (
	countryRe = regexp.MustCompile(`(?i)(?:Registrant |Admin |Tech )?Country:\s*([A-Za-z]+)`)
	stateRe   = regexp.MustCompile(`(?i)(?:Registrant |Admin |Tech )?State/Province:\s*(.+)`)
	createdRe = regexp.MustCompile(`(?i)(?:Creation Date|Registered on|Created on|created):\s*(\S+)`)
)

// Client performs WHOIS lookups over port 43 and DNS timing queries.
// Responses are memoized; WHOIS data moves slowly and registrars rate-limit.
type Client struct {
	timeout  time.Duration
	resolver *net.Resolver
	cache    *gocache.Cache

	// dial is swappable for tests.
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewClient creates a WHOIS/DNS client.
func NewClient(timeout time.Duration) *Client {
	var d net.Dialer
	return &Client{
		timeout:  timeout,
		resolver: net.DefaultResolver,
		cache:    gocache.New(time.Hour, 10*time.Minute),
		dial:     d.DialContext,
	}
}

// Lookup fetches registration metadata for a bare domain (no scheme, no
// leading www.). It never returns an error for unreachable registries; the
// Unavailable outcome is the degraded answer.
func (c *Client) Lookup(ctx context.Context, domain string) Registration {
	if cached, found := c.cache.Get(domain); found {
		return cached.(Registration)
	}

	reg := c.query(ctx, domain)
	c.cache.Set(domain, reg, gocache.DefaultExpiration)
	return reg
}

// DNSLatency resolves the domain and returns the elapsed time in
// milliseconds, or -1 when resolution fails.
func (c *Client) DNSLatency(ctx context.Context, domain string) float64 {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if _, err := c.resolver.LookupHost(ctx, domain); err != nil {
		return -1
	}
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func (c *Client) query(ctx context.Context, domain string) Registration {
	server := serverFor(domain)
	if server == "" {
		return Registration{Unavailable: true}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx, "tcp", server)
	if err != nil {
		return Registration{Unavailable: true}
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "%s\r\n", domain); err != nil {
		return Registration{Unavailable: true}
	}

	raw, err := io.ReadAll(io.LimitReader(conn, 64<<10))
	if err != nil || len(raw) == 0 {
		return Registration{Unavailable: true}
	}

	return ParseResponse(string(raw))
}

// ParseResponse extracts country, state and creation date from a raw WHOIS
// response. Fields the registry does not publish stay empty.
func ParseResponse(text string) Registration {
	var reg Registration

	if m := countryRe.FindStringSubmatch(text); m != nil {
		reg.Country = strings.TrimSpace(m[1])
	}
	if m := stateRe.FindStringSubmatch(text); m != nil {
		reg.State = strings.TrimSpace(m[1])
	}
	if m := createdRe.FindStringSubmatch(text); m != nil {
		reg.CreatedAt = parseDate(m[1])
	}

	if reg.Country == "" && reg.State == "" && reg.CreatedAt.IsZero() {
		reg.Unavailable = true
	}
	return reg
}

// parseDate handles the date shapes registries actually emit.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "T"); i > 0 {
		s = s[:i]
	}
	for _, layout := range []string{"2006-01-02", "02-Jan-2006", "2006.01.02.", "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// serverFor maps a domain to its TLD registry via the whois-servers.net
// aliases. Unknown or malformed domains get no server.
func serverFor(domain string) string {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	i := strings.LastIndex(domain, ".")
	if i < 0 || i == len(domain)-1 {
		return ""
	}
	tld := domain[i+1:]
	return tld + ".whois-servers.net:43"
}
