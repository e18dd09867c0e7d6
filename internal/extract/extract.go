// Package extract derives a best-effort purchase context from arbitrary
// product and checkout markup. Every lookup degrades to an empty field.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/model"
)

const maxProductNameLength = 120

// strategy is one step of a cascade. The first strategy that succeeds wins.
type strategy struct {
	name string
	run  func(dom.Document) (string, bool)
}

// Extractor reads purchase context from a document.
type Extractor struct {
	productCascade []strategy
	priceSelectors []string
	priceCeiling   float64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPriceCeiling sets the largest amount accepted as a price.
func WithPriceCeiling(ceiling float64) Option {
	return func(x *Extractor) {
		if ceiling > 0 {
			x.priceCeiling = ceiling
		}
	}
}

var productSelectors = []string{
	"[itemprop=name]",
	"#productTitle",
	".product-title",
	".product_title",
	".product-name",
	"[data-testid=product-title]",
	"h1",
}

var priceSelectors = []string{
	"[itemprop=price]",
	".a-price .a-offscreen",
	"#priceblock_ourprice",
	".price",
	".product-price",
	".total",
	".order-total",
	"[data-price]",
	"[class*=price]",
	"[class*=total]",
}

// New returns an Extractor with the default cascades.
func New(opts ...Option) *Extractor {
	x := &Extractor{
		priceSelectors: priceSelectors,
		priceCeiling:   DefaultPriceCeiling,
	}
	for _, sel := range productSelectors {
		x.productCascade = append(x.productCascade, strategy{name: sel, run: firstText(sel)})
	}
	x.productCascade = append(x.productCascade,
		strategy{name: "og:title", run: metaContent("meta[property='og:title']")},
		strategy{name: "title", run: cleanedTitle},
	)
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Extract returns the purchase context of doc. It never panics; a failure
// anywhere yields an empty context.
func (x *Extractor) Extract(doc dom.Document) (pc model.PurchaseContext) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Context extraction failed", "error", r)
			pc = model.PurchaseContext{}
		}
	}()
	if doc == nil {
		return pc
	}

	pc.ProductName = x.ProductName(doc)
	if price, ok := x.Price(doc); ok {
		pc.Price = model.Float(price.Amount)
		pc.PriceText = price.Text
		pc.Currency = price.Currency
	}
	pc.Category = Category(doc)
	pc.Platform = Platform(doc.URL())
	return pc
}

// ProductName runs the product-name cascade.
func (x *Extractor) ProductName(doc dom.Document) string {
	for _, s := range x.productCascade {
		if name, ok := s.run(doc); ok {
			return truncate(name, maxProductNameLength)
		}
	}
	return ""
}

// Price runs the price cascade. Within the first selector that yields a
// parseable candidate the largest value wins.
func (x *Extractor) Price(doc dom.Document) (Price, bool) {
	for _, sel := range x.priceSelectors {
		var best Price
		found := false
		for _, el := range doc.QueryAll(sel) {
			p, ok := x.parseCandidate(doc, el)
			if !ok {
				continue
			}
			if !found || p.Amount > best.Amount {
				best = p
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	return Price{}, false
}

func (x *Extractor) parseCandidate(doc dom.Document, el dom.Element) (Price, bool) {
	text := dom.NormalizeSpace(el.Text())
	if p, ok := ParsePrice(text, x.priceCeiling); ok {
		return p, true
	}
	for _, name := range []string{"content", "data-price"} {
		if p, ok := ParsePrice(el.Attr(name), x.priceCeiling); ok {
			return p, true
		}
	}

	// Structured data carries the amount and currency separately.
	if el.Attr("itemprop") != "price" {
		return Price{}, false
	}
	raw := el.Attr("content")
	if raw == "" {
		raw = text
	}
	amount, ok := ParseAmount(raw)
	if !ok || amount <= 0 || amount > x.priceCeiling {
		return Price{}, false
	}
	currency := ""
	if cur, ok := dom.First(doc, "[itemprop=priceCurrency]"); ok {
		currency = strings.ToUpper(strings.TrimSpace(cur.Attr("content")))
		if currency == "" {
			currency = strings.ToUpper(dom.NormalizeSpace(cur.Text()))
		}
	}
	if currency == "" {
		return Price{}, false
	}
	return Price{Text: strings.TrimSpace(raw + " " + currency), Currency: currency, Amount: amount}, true
}

func firstText(selector string) func(dom.Document) (string, bool) {
	return func(doc dom.Document) (string, bool) {
		for _, el := range doc.QueryAll(selector) {
			if text := dom.NormalizeSpace(el.Text()); text != "" {
				return text, true
			}
		}
		return "", false
	}
}

func metaContent(selector string) func(dom.Document) (string, bool) {
	return func(doc dom.Document) (string, bool) {
		el, ok := dom.First(doc, selector)
		if !ok {
			return "", false
		}
		content := dom.NormalizeSpace(el.Attr("content"))
		return content, content != ""
	}
}

var (
	titleSeparators = regexp.MustCompile(`\s+[|\-–—:]\s+`)
	cartWords       = regexp.MustCompile(`(?i)\b(shopping (cart|bag)|your (cart|bag|basket)|cart|checkout|basket)\b`)
)

// cleanedTitle returns the first title segment that is not cart or
// checkout chrome.
func cleanedTitle(doc dom.Document) (string, bool) {
	for _, seg := range titleSeparators.Split(dom.NormalizeSpace(doc.Title()), -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" || cartWords.MatchString(seg) {
			continue
		}
		return seg, true
	}
	return "", false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
