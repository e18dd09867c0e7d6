// Package htmldoc implements dom.Page over a parsed HTML tree. It backs
// offline scans and simulations and lets tests drive the engine with real
// markup, mutations and clicks.
package htmldoc

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/dom"
)

// Document is an in-memory page.
type Document struct {
	root        *html.Node
	keys        map[*html.Node]string
	intercepts  map[*html.Node]func(dom.Element)
	observers   map[int]func(dom.MutationBatch)
	activations map[*html.Node]int
	submissions map[*html.Node]int
	selectors   map[string]cascadia.Selector
	url         string
	nextKey     int
	nextObs     int
	locked      bool

	// IgnoreSynthetic makes Activate report that the page did not accept
	// the event, as some frameworks do for untrusted clicks.
	IgnoreSynthetic bool

	mu sync.Mutex
}

// Parse reads an HTML document served at pageURL.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{
		root:        root,
		url:         pageURL,
		keys:        make(map[*html.Node]string),
		intercepts:  make(map[*html.Node]func(dom.Element)),
		observers:   make(map[int]func(dom.MutationBatch)),
		activations: make(map[*html.Node]int),
		submissions: make(map[*html.Node]int),
		selectors:   make(map[string]cascadia.Selector),
	}, nil
}

// ParseString is Parse for inline markup.
func ParseString(markup, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(markup), pageURL)
}

// URL implements dom.Document.
func (d *Document) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url
}

// Title implements dom.Document.
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var title string
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			title = textOf(n)
			return false
		}
		return true
	})
	return title
}

// Text implements dom.Document. It returns the visible text of the body.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := d.root
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	return textOf(body)
}

// QueryAll implements dom.Document. Invalid selectors match nothing.
func (d *Document) QueryAll(selector string) []dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel, ok := d.selectors[selector]
	if !ok {
		compiled, err := cascadia.Compile(selector)
		if err != nil {
			common.LogDebug("Ignoring invalid selector", common.Fields{"selector": selector, "error": err.Error()})
			compiled = nil
		}
		d.selectors[selector] = compiled
		sel = compiled
	}
	if sel == nil {
		return nil
	}

	nodes := sel.MatchAll(d.root)
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrapLocked(n))
	}
	return out
}

// Lookup returns the element with the given key, if it is still attached.
func (d *Document) Lookup(key string) (dom.Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for n, k := range d.keys {
		if k == key && attached(d.root, n) {
			return d.wrapLocked(n), true
		}
	}
	return nil, false
}

func (d *Document) wrapLocked(n *html.Node) *Element {
	key, ok := d.keys[n]
	if !ok {
		d.nextKey++
		key = fmt.Sprintf("el-%d", d.nextKey)
		d.keys[n] = key
	}
	return &Element{node: n, doc: d, key: key}
}

// Element is a node inside a Document.
type Element struct {
	node *html.Node
	doc  *Document
	key  string
}

// Key implements dom.Element.
func (e *Element) Key() string { return e.key }

// TagName implements dom.Element.
func (e *Element) TagName() string { return strings.ToLower(e.node.Data) }

// Text implements dom.Element.
func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return textOf(e.node)
}

// Attr implements dom.Element.
func (e *Element) Attr(name string) string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, name)
}

// Form implements dom.Element.
func (e *Element) Form() (dom.Element, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	form := formOf(e.doc.root, e.node)
	if form == nil {
		return nil, false
	}
	return e.doc.wrapLocked(form), true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

func formOf(root, n *html.Node) *html.Node {
	if id := attr(n, "form"); id != "" {
		var found *html.Node
		walk(root, func(c *html.Node) bool {
			if c.Type == html.ElementNode && c.DataAtom == atom.Form && attr(c, "id") == id {
				found = c
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Form {
			return p
		}
	}
	return nil
}

// walk visits n and its descendants depth-first until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func attached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

var invisible = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if invisible[c.DataAtom] || hasAttr(c, "hidden") || attr(c, "aria-hidden") == "true" {
				return
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.Title || n.DataAtom == atom.Head) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				b.WriteString(child.Data)
			}
		}
		return dom.NormalizeSpace(b.String())
	}
	visit(n)
	return dom.NormalizeSpace(b.String())
}
