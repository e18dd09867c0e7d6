// Package dom describes the host page the engine observes. Implementations
// wrap a live browser tab or an in-memory parsed document.
package dom

import (
	"context"
	"net/url"
	"strings"
)

// Element is a node on the page. Implementations must return the same Key
// for the same underlying node for as long as it stays attached.
type Element interface {
	Key() string
	TagName() string
	Text() string
	Attr(name string) string
	Form() (Element, bool)
}

// Document is the read-only view of a page.
type Document interface {
	URL() string
	Title() string
	Text() string
	QueryAll(selector string) []Element
}

// MutationBatch reports structural page changes. Added holds every element
// that appeared since the previous batch, descendants of inserted subtrees
// included. Navigated is set when the page moved to a different document and
// everything previously seen is gone.
type MutationBatch struct {
	Added     []Element
	URL       string
	Navigated bool
}

// Page is a Document the engine can act on.
type Page interface {
	Document

	// Intercept suppresses the default action of el and calls fn instead.
	// The returned release restores normal behavior.
	Intercept(el Element, fn func(Element)) (release func(), err error)

	// Observe registers fn for mutation batches until stop is called.
	Observe(fn func(MutationBatch)) (stop func())

	// Activate dispatches a synthetic activation at el. accepted is false
	// when the page ignored the event.
	Activate(ctx context.Context, el Element) (accepted bool, err error)

	// SubmitForm submits form through the native submission path.
	SubmitForm(ctx context.Context, form Element) error

	// SetInteractionLocked blocks or restores scrolling and pointer
	// interaction beneath an overlay. It is visual only.
	SetInteractionLocked(locked bool) error
}

// Hostname returns the lower-cased host of a page URL without port.
func Hostname(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Path returns the lower-cased path of a page URL.
func Path(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Path)
}

// First returns the first element matching selector.
func First(doc Document, selector string) (Element, bool) {
	els := doc.QueryAll(selector)
	if len(els) == 0 {
		return nil, false
	}
	return els[0], true
}

// NormalizeSpace collapses runs of whitespace and trims the result.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
