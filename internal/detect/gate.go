package detect

import (
	"strings"

	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/extract"
)

// Gate reasons reported by Explain.
const (
	GateExcludedHost = "excluded-host"
	GatePath         = "commerce-path"
	GatePlatform     = "known-platform"
	GateCartMarkup   = "cart-markup"
	GatePriceText    = "price-text"
	GateNoSignal     = "no-commerce-signal"
)

// DefaultExcludedHosts are sites where a "Submit" or "Continue" control is
// never a purchase. Subdomains are excluded too.
var DefaultExcludedHosts = []string{
	"github.com",
	"gitlab.com",
	"bitbucket.org",
	"stackoverflow.com",
	"stackexchange.com",
	"docs.google.com",
	"mail.google.com",
	"drive.google.com",
	"wikipedia.org",
	"youtube.com",
	"linkedin.com",
	"reddit.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"notion.so",
	"slack.com",
	"atlassian.net",
	"medium.com",
	"news.ycombinator.com",
}

var commercePathSegments = []string{
	"checkout", "cart", "basket", "buy", "order", "payment", "product",
}

var cartMarkupSelectors = []string{
	"[class*=cart]",
	"[id*=cart]",
	"[class*=basket]",
	"[id*=basket]",
	"[data-cart]",
	"form[action*=checkout]",
}

// Gate is the page-level plausibility check.
type Gate struct {
	excludedHosts []string
	priceCeiling  float64
}

// NewGate returns a Gate excluding hosts.
func NewGate(hosts []string, priceCeiling float64) *Gate {
	return &Gate{excludedHosts: hosts, priceCeiling: priceCeiling}
}

// Check reports whether doc looks like a commerce page and why.
func (g *Gate) Check(doc dom.Document) (bool, string) {
	host := dom.Hostname(doc.URL())
	if g.Excluded(host) {
		return false, GateExcludedHost
	}

	for _, seg := range strings.Split(dom.Path(doc.URL()), "/") {
		for _, word := range commercePathSegments {
			if strings.HasPrefix(seg, word) {
				return true, GatePath
			}
		}
	}

	if extract.KnownPlatform(host) {
		return true, GatePlatform
	}

	for _, sel := range cartMarkupSelectors {
		if len(doc.QueryAll(sel)) > 0 {
			return true, GateCartMarkup
		}
	}

	if _, ok := extract.ParsePrice(doc.Text(), g.priceCeiling); ok {
		return true, GatePriceText
	}

	return false, GateNoSignal
}

// Excluded reports whether host is on the exclusion list.
func (g *Gate) Excluded(host string) bool {
	host = strings.ToLower(host)
	for _, h := range g.excludedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
