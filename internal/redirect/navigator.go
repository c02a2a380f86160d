package redirect

import "context"

// NavResult is one browser navigation's view of a target.
type NavResult struct {
	FinalURL string
	HTML     string
	Title    string
	Hops     int // document-class redirect responses plus client-side redirects
}

// Navigator is a browser-engine navigation capability. Navigations observe
// redirect-class responses as they happen, which lets the resolver catch
// client-side and meta redirects a plain HTTP client would miss.
type Navigator interface {
	// Navigate drives the browser to rawURL and returns the terminal view.
	// maxHops bounds the number of redirect responses counted before the
	// navigation is cut off; the returned NavResult still carries the
	// observed hop count in that case.
	Navigate(ctx context.Context, rawURL string, maxHops int) (*NavResult, error)

	// Screenshot captures a full-page screenshot of rawURL.
	Screenshot(ctx context.Context, rawURL string) ([]byte, error)
}
