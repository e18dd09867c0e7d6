package extract

import (
	"strings"

	"github.com/Veraticus/spendguard/internal/dom"
)

var platforms = []struct {
	match string
	name  string
}{
	{"amazon.", "Amazon"},
	{"ebay.", "eBay"},
	{"walmart.", "Walmart"},
	{"target.com", "Target"},
	{"etsy.", "Etsy"},
	{"myshopify.com", "Shopify"},
	{"shopify.", "Shopify"},
	{"bestbuy.", "Best Buy"},
	{"aliexpress.", "AliExpress"},
	{"alibaba.", "Alibaba"},
	{"temu.", "Temu"},
	{"shein.", "SHEIN"},
	{"wayfair.", "Wayfair"},
	{"zalando.", "Zalando"},
	{"asos.", "ASOS"},
	{"ikea.", "IKEA"},
	{"costco.", "Costco"},
	{"homedepot.", "Home Depot"},
	{"newegg.", "Newegg"},
	{"apple.com", "Apple"},
}

// Platform names the commerce platform behind pageURL, falling back to the
// hostname without its www prefix.
func Platform(pageURL string) string {
	host := dom.Hostname(pageURL)
	if host == "" {
		return ""
	}
	for _, p := range platforms {
		if strings.Contains(host, p.match) {
			return p.name
		}
	}
	return strings.TrimPrefix(host, "www.")
}

// KnownPlatform reports whether host belongs to a known commerce platform.
func KnownPlatform(host string) bool {
	host = strings.ToLower(host)
	for _, p := range platforms {
		if strings.Contains(host, p.match) {
			return true
		}
	}
	return false
}
