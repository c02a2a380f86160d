package feature

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/safelens/safelens/internal/whois"
)

const phishyPage = `<html>
<head>
<meta http-equiv="refresh" content="0;url=http://elsewhere.invalid/">
<link rel="icon" href="http://cdn.invalid/favicon.ico">
<script src="http://evil.invalid/a.js"></script>
<script src="http://evil.invalid/b.js"></script>
<script>document.onmousedown = function(e){ if(event.button==2) return false; }</script>
</head>
<body>
<iframe src="http://frames.invalid/"></iframe>
<script>window.open('http://pop.invalid/');</script>
</body>
</html>`

const benignPage = `<html>
<head><link rel="icon" href="/favicon.ico"></head>
<body>
<img src="/logo.png">
<p>Contact us at support@example.com</p>
</body>
</html>`

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newMarkupExtractor(reg registrar) *MarkupExtractor {
	return NewMarkupExtractor(testFetcher(), reg, builtinShorteners)
}

func TestMarkupExtractPhishySignals(t *testing.T) {
	srv := servePage(t, phishyPage)

	x := newMarkupExtractor(fakeRegistrar{reg: whois.Registration{Unavailable: true}, latency: -1})
	f := x.Extract(context.Background(), srv.URL+"/", "")

	wantOne := []string{
		"favicon", "meta_refresh", "disable_right_click",
		"popup_window", "iframe", "request_url",
		"domain_reg_len", "domain_age", "https_scheme", "non_std_port",
	}
	for _, k := range wantOne {
		if f[k] != 1 {
			t.Errorf("%s = %v, want 1", k, f[k])
		}
	}
	// No emails on the page
	if f["info_email"] != 1 {
		t.Errorf("info_email = %v, want 1", f["info_email"])
	}
}

func TestMarkupExtractBenignSignals(t *testing.T) {
	srv := servePage(t, benignPage)

	created := whois.Registration{CreatedAt: time.Now().AddDate(-3, 0, 0)}
	x := newMarkupExtractor(fakeRegistrar{reg: created, latency: 1})
	f := x.Extract(context.Background(), srv.URL+"/", "")

	wantMinusOne := []string{
		"favicon", "meta_refresh", "disable_right_click",
		"popup_window", "iframe", "request_url",
		"domain_reg_len", "domain_age",
		"long_url", "symbol_at", "prefix_suffix", "short_url",
	}
	for _, k := range wantMinusOne {
		if f[k] != -1 {
			t.Errorf("%s = %v, want -1", k, f[k])
		}
	}
	// Page shows a contact email
	if f["info_email"] != -1 {
		t.Errorf("info_email = %v, want -1", f["info_email"])
	}
	// Loopback host is an IP literal
	if f["using_ip"] != 1 {
		t.Errorf("using_ip = %v, want 1", f["using_ip"])
	}
}

func TestMarkupExtractURLShape(t *testing.T) {
	srv := servePage(t, benignPage)
	x := newMarkupExtractor(fakeRegistrar{reg: whois.Registration{Unavailable: true}, latency: -1})

	long := srv.URL + "/@login//verify-account?session=aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	if len(long) < 75 {
		t.Fatalf("test URL too short: %d", len(long))
	}

	f := x.Extract(context.Background(), long, "")

	if f["long_url"] != 1 {
		t.Errorf("long_url = %v", f["long_url"])
	}
	if f["symbol_at"] != 1 {
		t.Errorf("symbol_at = %v", f["symbol_at"])
	}
	if f["double_slash"] != 1 {
		t.Errorf("double_slash = %v", f["double_slash"])
	}
}

func TestMarkupExtractShortener(t *testing.T) {
	srv := servePage(t, benignPage)
	x := NewMarkupExtractor(testFetcher(), fakeRegistrar{latency: -1}, []string{"127.0.0.1"})

	f := x.Extract(context.Background(), srv.URL+"/abc", "")
	if f["short_url"] != 1 {
		t.Errorf("short_url = %v, want 1", f["short_url"])
	}
}

func TestMarkupExtractFetchFailureDefaults(t *testing.T) {
	x := newMarkupExtractor(fakeRegistrar{reg: whois.Registration{Unavailable: true}, latency: -1})
	f := x.Extract(context.Background(), "http://127.0.0.1:1/", "")

	defaults := map[string]float64{
		"favicon":             1,
		"non_std_port":        -1,
		"https_domain_url":    -1,
		"request_url":         -1,
		"info_email":          1,
		"meta_refresh":        -1,
		"disable_right_click": -1,
		"popup_window":        -1,
		"iframe":              -1,
		"domain_age":          1,
	}
	for k, want := range defaults {
		if f[k] != want {
			t.Errorf("%s = %v, want %v", k, f[k], want)
		}
	}
	// URL-shape features are still computed
	if f["using_ip"] != 1 {
		t.Errorf("using_ip = %v, want 1", f["using_ip"])
	}
}

func TestMarkupRecord(t *testing.T) {
	f := MarkupFeatures{"using_ip": 1, "long_url": -1}
	rec := f.Record()
	if rec.Numeric["using_ip"] != 1 || rec.Numeric["long_url"] != -1 {
		t.Errorf("Record numeric = %v", rec.Numeric)
	}
}

func TestLoadShortenersFallback(t *testing.T) {
	domains := LoadShorteners("no/such/list.txt")
	if len(domains) != len(builtinShorteners) {
		t.Errorf("expected builtin list, got %d entries", len(domains))
	}
}

func TestNonStandardPort(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/", false},
		{"http://example.com:80/", false},
		{"https://example.com:443/", false},
		{"http://example.com:8080/", true},
	}
	for _, tt := range tests {
		if got := nonStandardPort(tt.url); got != tt.want {
			t.Errorf("nonStandardPort(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
