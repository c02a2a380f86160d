package feature

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/safelens/safelens/internal/fetch"
	"github.com/safelens/safelens/internal/model"
	"github.com/safelens/safelens/internal/whois"
)

type fakeRegistrar struct {
	reg     whois.Registration
	latency float64
}

func (f fakeRegistrar) Lookup(ctx context.Context, domain string) whois.Registration {
	return f.reg
}

func (f fakeRegistrar) DNSLatency(ctx context.Context, domain string) float64 {
	return f.latency
}

func testFetcher() *fetch.Fetcher {
	cfg := model.DefaultConfig().HTTP
	cfg.Timeout = 5 * time.Second
	cfg.RatePerDomain = 1000
	cfg.RateBurst = 1000
	return fetch.NewFetcher(cfg)
}

func TestHostingExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		w.Header().Set("Server", "nginx")
		w.Header().Set("Content-Length", "1234")
	}))
	defer srv.Close()

	reg := fakeRegistrar{
		reg: whois.Registration{
			Country:   "US",
			State:     "CA",
			CreatedAt: time.Now().AddDate(-2, 0, 0),
		},
		latency: 12.5,
	}

	x := NewHostingExtractor(testFetcher(), reg)
	f := x.Extract(context.Background(), srv.URL+"/login?user=a", "")

	if f.Charset != "euc-kr" {
		t.Errorf("Charset = %q", f.Charset)
	}
	if f.Server != "nginx" {
		t.Errorf("Server = %q", f.Server)
	}
	if f.ContentLength != 1234 {
		t.Errorf("ContentLength = %d", f.ContentLength)
	}
	if f.Country != "US" || f.State != "CA" {
		t.Errorf("Country/State = %q/%q", f.Country, f.State)
	}
	if f.AgeDays < 700 {
		t.Errorf("AgeDays = %d", f.AgeDays)
	}
	if f.DNSLatencyMS != 12.5 {
		t.Errorf("DNSLatencyMS = %v", f.DNSLatencyMS)
	}
	if f.URLLength != len(srv.URL+"/login?user=a") {
		t.Errorf("URLLength = %d", f.URLLength)
	}
}

func TestHostingExtractUnreachable(t *testing.T) {
	reg := fakeRegistrar{reg: whois.Registration{Unavailable: true}, latency: -1}

	x := NewHostingExtractor(testFetcher(), reg)
	f := x.Extract(context.Background(), "http://127.0.0.1:1/", "")

	if f.Charset != "Unknown" || f.Server != "Unknown" {
		t.Errorf("Charset/Server = %q/%q", f.Charset, f.Server)
	}
	if f.ContentLength != -1 {
		t.Errorf("ContentLength = %d", f.ContentLength)
	}
	if f.Country != "Unknown" || f.State != "Unknown" {
		t.Errorf("Country/State = %q/%q", f.Country, f.State)
	}
	if f.AgeDays != -1 {
		t.Errorf("AgeDays = %d", f.AgeDays)
	}
	if f.DNSLatencyMS != -1 {
		t.Errorf("DNSLatencyMS = %v", f.DNSLatencyMS)
	}
}

func TestHostingRecord(t *testing.T) {
	f := HostingFeatures{
		URLLength:     42,
		SpecialChars:  7,
		Charset:       "utf-8",
		Server:        "Apache",
		ContentLength: -1,
		Country:       "KR",
		State:         "Unknown",
		AgeDays:       100,
		DNSLatencyMS:  3.5,
	}

	rec := f.Record()
	if rec.Numeric["url_length"] != 42 {
		t.Errorf("url_length = %v", rec.Numeric["url_length"])
	}
	if rec.Numeric["content_length"] != -1 {
		t.Errorf("content_length = %v", rec.Numeric["content_length"])
	}
	if rec.Categorical["country"] != "KR" {
		t.Errorf("country = %q", rec.Categorical["country"])
	}
}

func TestCountSpecialChars(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"abc123", 0},
		{"http://a.b", 4},
		{"", 0},
	}
	for _, tt := range tests {
		if got := countSpecialChars(tt.in); got != tt.want {
			t.Errorf("countSpecialChars(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCharsetOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"text/html; charset=utf-8", "utf-8"},
		{"text/html; charset=EUC-KR; boundary=x", "EUC-KR"},
		{"text/html", ""},
	}
	for _, tt := range tests {
		if got := charsetOf(tt.in); got != tt.want {
			t.Errorf("charsetOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/path", "example.com"},
		{"http://sub.example.co.kr:8080/", "sub.example.co.kr"},
		{"http://192.168.0.1:81/x", "192.168.0.1"},
	}
	for _, tt := range tests {
		if got := domainOf(tt.in); got != tt.want {
			t.Errorf("domainOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostingExtractUsesFinalURL(t *testing.T) {
	var sawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawPath = r.URL.Path
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	x := NewHostingExtractor(testFetcher(), fakeRegistrar{latency: -1})
	x.Extract(context.Background(), "http://original.invalid/start", srv.URL+"/landed")

	if sawPath != "/landed" {
		t.Errorf("HEAD path = %q, want /landed", sawPath)
	}
}
