package feature

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/safelens/safelens/internal/classify"
	"github.com/safelens/safelens/internal/fetch"
)

// MarkupFeatures is the binary feature set over URL shape and page markup.
// Every value is 1 (phishing-leaning) or -1 (benign-leaning); the encoding
// direction varies per feature and matches the training data.
type MarkupFeatures map[string]float64

// Record encodes the features for the markup model.
func (f MarkupFeatures) Record() classify.Record {
	numeric := make(map[string]float64, len(f))
	for k, v := range f {
		numeric[k] = v
	}
	return classify.Record{
		Numeric:     numeric,
		Categorical: map[string]string{},
	}
}

var (
	ipRe    = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// MarkupExtractor gathers URL-shape and page-markup features.
type MarkupExtractor struct {
	fetcher    *fetch.Fetcher
	whois      registrar
	shorteners []string
}

// NewMarkupExtractor creates a markup feature extractor.
func NewMarkupExtractor(fetcher *fetch.Fetcher, whoisClient registrar, shorteners []string) *MarkupExtractor {
	return &MarkupExtractor{fetcher: fetcher, whois: whoisClient, shorteners: shorteners}
}

// Extract computes markup features. URL-shape signals come from the original
// URL; registration and page signals come from the post-redirect URL. When
// the page cannot be fetched, the page-dependent features take the neutral
// defaults the model was trained with.
func (x *MarkupExtractor) Extract(ctx context.Context, rawURL, finalURL string) MarkupFeatures {
	target := finalURL
	if target == "" {
		target = rawURL
	}

	domain := domainOf(rawURL)
	targetDomain := domainOf(target)

	f := MarkupFeatures{}

	f["using_ip"] = encode(ipRe.MatchString(domain))
	f["long_url"] = encode(len(rawURL) >= 75)
	f["short_url"] = encode(x.isShortened(domain))
	f["symbol_at"] = encode(strings.Contains(rawURL, "@"))
	f["double_slash"] = encode(strings.Contains(stripScheme(rawURL), "//"))
	f["prefix_suffix"] = encode(strings.Contains(domain, "-"))
	f["sub_domains"] = encode(strings.Count(domain, ".") >= 3)

	// Plain HTTP is the phishing-leaning outcome here.
	f["https_scheme"] = encode(!strings.HasPrefix(strings.ToLower(rawURL), "https://"))

	ageDays := -1
	if targetDomain != "" {
		ageDays = x.whois.Lookup(ctx, targetDomain).AgeDays(time.Now())
	}
	// Unknown registration dates lean phishing for both age features.
	f["domain_reg_len"] = encode(!(ageDays >= 365))

	page, err := x.fetcher.Fetch(ctx, target)
	if err != nil {
		f["favicon"] = 1
		f["non_std_port"] = -1
		f["https_domain_url"] = -1
		f["request_url"] = -1
		f["info_email"] = 1
		f["meta_refresh"] = -1
		f["disable_right_click"] = -1
		f["popup_window"] = -1
		f["iframe"] = -1
		f["domain_age"] = 1
		return f
	}

	sig := inspectMarkup(page.HTML, targetDomain)

	f["favicon"] = encode(faviconCrossOrigin(sig.faviconHref, targetDomain))
	f["non_std_port"] = encode(nonStandardPort(target))
	f["https_domain_url"] = encode(strings.Contains(strings.ToLower(targetDomain), "https"))
	f["request_url"] = encode(sig.total > 0 && float64(sig.external)/float64(sig.total) > 0.22)
	f["info_email"] = encodeInverted(emailRe.MatchString(page.HTML))
	f["meta_refresh"] = encode(sig.hasMetaRefresh)
	f["disable_right_click"] = encode(strings.Contains(page.HTML, "event.button==2") ||
		strings.Contains(page.HTML, "event.button == 2"))

	lower := strings.ToLower(page.HTML)
	f["popup_window"] = encode(strings.Contains(lower, "window.open") || strings.Contains(lower, "popup"))
	f["iframe"] = encode(sig.hasIframe)

	f["domain_age"] = encode(!(ageDays >= 183))

	return f
}

func (x *MarkupExtractor) isShortened(domain string) bool {
	for _, s := range x.shorteners {
		if strings.Contains(domain, s) {
			return true
		}
	}
	return false
}

func encode(phishy bool) float64 {
	if phishy {
		return 1
	}
	return -1
}

// encodeInverted covers features whose training encoding marks the benign
// outcome with -1 on presence (contact emails).
func encodeInverted(present bool) float64 {
	if present {
		return -1
	}
	return 1
}

func stripScheme(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		return rawURL[i+3:]
	}
	return rawURL
}

func faviconCrossOrigin(href, targetDomain string) bool {
	if href == "" || !strings.HasPrefix(href, "http") {
		return false
	}
	return domainOf(href) != targetDomain
}

func nonStandardPort(rawURL string) bool {
	port := portOf(rawURL)
	return port != "" && port != "80" && port != "443"
}

func portOf(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rawURL = rawURL[i+3:]
	}
	host := rawURL
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		return host[i+1:]
	}
	return ""
}

// markupSignals is what one walk over the parse tree yields.
type markupSignals struct {
	faviconHref    string
	total          int
	external       int
	hasMetaRefresh bool
	hasIframe      bool
}

// inspectMarkup tolerates broken markup; the html parser never fails on
// real-world tag soup.
func inspectMarkup(rawHTML, targetDomain string) markupSignals {
	var sig markupSignals

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return sig
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "link":
				rel := strings.ToLower(attr(n, "rel"))
				if strings.Contains(rel, "icon") && sig.faviconHref == "" {
					sig.faviconHref = attr(n, "href")
				}
				countResource(&sig, attr(n, "href"), targetDomain)
			case "img", "script":
				countResource(&sig, attr(n, "src"), targetDomain)
			case "meta":
				if strings.EqualFold(attr(n, "http-equiv"), "refresh") {
					sig.hasMetaRefresh = true
				}
			case "iframe":
				sig.hasIframe = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return sig
}

func countResource(sig *markupSignals, src, targetDomain string) {
	if src == "" {
		return
	}
	sig.total++
	if strings.HasPrefix(src, "http") && targetDomain != "" && !strings.Contains(src, targetDomain) {
		sig.external++
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
