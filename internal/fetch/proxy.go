package fetch

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// NewProxyFunc builds a proxy selector from explicit config, falling back to
// the standard environment variables when nothing is configured. noProxy is
// a comma-separated exclusion list: exact hosts, domain suffixes (with or
// without a leading dot), or "*" for everything.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	exclusions := parseNoProxy(noProxy)

	return func(req *http.Request) (*url.URL, error) {
		if excluded(req.URL.Host, exclusions) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func parseNoProxy(noProxy string) []string {
	var entries []string
	for _, part := range strings.Split(noProxy, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			entries = append(entries, part)
		}
	}
	return entries
}

// excluded reports whether host (which may carry a port) matches any
// noProxy entry.
func excluded(host string, exclusions []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	for _, entry := range exclusions {
		if entry == "*" {
			return true
		}
		if e, _, err := net.SplitHostPort(entry); err == nil {
			entry = e
		}
		if host == strings.TrimPrefix(entry, ".") {
			return true
		}
		if strings.HasSuffix(host, "."+strings.TrimPrefix(entry, ".")) {
			return true
		}
	}
	return false
}
