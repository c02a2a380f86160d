package model

// RedirectChain records the URLs visited while resolving a target to its
// terminal page. Insertion order is significant. Count holds the number of
// observed hops (HTTP 3xx or client-side), which can exceed len(URLs) when
// navigation was aborted mid-chain.
type RedirectChain struct {
	URLs     []string `json:"urls"`
	FinalURL string   `json:"final_url"`
	Count    int      `json:"count"`
}

// Bombed reports whether the chain hit the hard hop ceiling. A bombed chain
// is terminal and authoritative; no later stage may run.
func (c RedirectChain) Bombed(ceiling int) bool {
	return c.Count >= ceiling
}
