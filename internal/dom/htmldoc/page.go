package htmldoc

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/dom"
)

var _ dom.Page = (*Document)(nil)

// Intercept implements dom.Page.
func (d *Document) Intercept(el dom.Element, fn func(dom.Element)) (func(), error) {
	n, err := d.nodeOf(el)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.intercepts[n] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.intercepts, n)
	}, nil
}

// Intercepted reports whether el currently has an interception attached.
func (d *Document) Intercepted(el dom.Element) bool {
	n, err := d.nodeOf(el)
	if err != nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.intercepts[n]
	return ok
}

// Observe implements dom.Page.
func (d *Document) Observe(fn func(dom.MutationBatch)) func() {
	d.mu.Lock()
	d.nextObs++
	id := d.nextObs
	d.observers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.observers, id)
	}
}

// Click simulates a trusted user click on el.
func (d *Document) Click(el dom.Element) error {
	n, err := d.nodeOf(el)
	if err != nil {
		return err
	}

	d.mu.Lock()
	fn, intercepted := d.intercepts[n]
	d.mu.Unlock()

	if intercepted {
		fn(el)
		return nil
	}
	d.performDefault(n)
	return nil
}

// Activate implements dom.Page.
func (d *Document) Activate(_ context.Context, el dom.Element) (bool, error) {
	n, err := d.nodeOf(el)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	ignore := d.IgnoreSynthetic
	fn, intercepted := d.intercepts[n]
	d.mu.Unlock()

	if ignore {
		return false, nil
	}
	if intercepted {
		fn(el)
		return true, nil
	}
	d.performDefault(n)
	return true, nil
}

// SubmitForm implements dom.Page.
func (d *Document) SubmitForm(_ context.Context, form dom.Element) error {
	n, err := d.nodeOf(form)
	if err != nil {
		return err
	}
	if n.DataAtom != atom.Form {
		return fmt.Errorf("%w: %s", common.ErrNoForm, n.Data)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions[n]++
	return nil
}

// SetInteractionLocked implements dom.Page.
func (d *Document) SetInteractionLocked(locked bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locked = locked
	return nil
}

// InteractionLocked reports the current lock state.
func (d *Document) InteractionLocked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// Activations returns how many times the default action of el ran.
func (d *Document) Activations(el dom.Element) int {
	n, err := d.nodeOf(el)
	if err != nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activations[n]
}

// Submissions returns how many times form was submitted.
func (d *Document) Submissions(form dom.Element) int {
	n, err := d.nodeOf(form)
	if err != nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submissions[n]
}

// performDefault runs the built-in behavior: the activation is counted and
// submit controls submit their form.
func (d *Document) performDefault(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.activations[n]++
	if isSubmitControl(n) {
		if form := formOf(d.root, n); form != nil {
			d.submissions[form]++
		}
	}
}

func isSubmitControl(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Button:
		t := strings.ToLower(attr(n, "type"))
		return t == "" || t == "submit"
	case atom.Input:
		t := strings.ToLower(attr(n, "type"))
		return t == "submit" || t == "image"
	}
	return false
}

// Append parses fragment as children of the first element matching
// parentSelector and notifies observers with the inserted elements.
func (d *Document) Append(parentSelector, fragment string) ([]dom.Element, error) {
	parent, ok := dom.First(d, parentSelector)
	if !ok {
		return nil, fmt.Errorf("%w: no element matches %q", common.ErrNotFound, parentSelector)
	}
	pn, err := d.nodeOf(parent)
	if err != nil {
		return nil, err
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), pn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	d.mu.Lock()
	var added []dom.Element
	for _, n := range nodes {
		pn.AppendChild(n)
		walk(n, func(c *html.Node) bool {
			if c.Type == html.ElementNode {
				added = append(added, d.wrapLocked(c))
			}
			return true
		})
	}
	batch := dom.MutationBatch{Added: added, URL: d.url}
	observers := d.observersLocked()
	d.mu.Unlock()

	for _, fn := range observers {
		fn(batch)
	}
	return added, nil
}

// Remove detaches el from the tree. Interceptions on removed nodes are dropped.
func (d *Document) Remove(el dom.Element) error {
	n, err := d.nodeOf(el)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	walk(n, func(c *html.Node) bool {
		delete(d.intercepts, c)
		return true
	})
	return nil
}

// Navigate replaces the document with new markup at pageURL. Every element
// key and interception from the previous document is discarded.
func (d *Document) Navigate(markup, pageURL string) error {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse html: %w", err)
	}

	d.mu.Lock()
	d.root = root
	d.url = pageURL
	d.keys = make(map[*html.Node]string)
	d.intercepts = make(map[*html.Node]func(dom.Element))
	d.activations = make(map[*html.Node]int)
	d.submissions = make(map[*html.Node]int)
	d.locked = false
	batch := dom.MutationBatch{URL: pageURL, Navigated: true}
	observers := d.observersLocked()
	d.mu.Unlock()

	for _, fn := range observers {
		fn(batch)
	}
	return nil
}

func (d *Document) observersLocked() []func(dom.MutationBatch) {
	out := make([]func(dom.MutationBatch), 0, len(d.observers))
	for i := 1; i <= d.nextObs; i++ {
		if fn, ok := d.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (d *Document) nodeOf(el dom.Element) (*html.Node, error) {
	e, ok := el.(*Element)
	if !ok || e.doc != d {
		return nil, fmt.Errorf("%w: element does not belong to this document", common.ErrElementDetached)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !attached(d.root, e.node) {
		return nil, fmt.Errorf("%w: %s", common.ErrElementDetached, e.key)
	}
	return e.node, nil
}
