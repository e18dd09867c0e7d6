package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/detect"
	"github.com/Veraticus/spendguard/internal/dom"
)

var _ dom.Page = (*Page)(nil)

// DefaultEvalTimeout bounds each round trip to the page.
const DefaultEvalTimeout = 5 * time.Second

// descriptor is an element as described by the runtime.
type descriptor struct {
	Attrs map[string]string `json:"attrs"`
	Key   string            `json:"key"`
	Tag   string            `json:"tag"`
	Text  string            `json:"text"`
	Form  string            `json:"form"`
}

// Element is a snapshot of a live element. Key stays valid for as long as
// the node is attached.
type Element struct {
	attrs map[string]string
	key   string
	tag   string
	text  string
	form  string
}

func newElement(d descriptor) *Element {
	return &Element{key: d.Key, tag: d.Tag, text: d.Text, attrs: d.Attrs, form: d.Form}
}

// Key implements dom.Element.
func (e *Element) Key() string { return e.key }

// TagName implements dom.Element.
func (e *Element) TagName() string { return e.tag }

// Text implements dom.Element.
func (e *Element) Text() string { return e.text }

// Attr implements dom.Element.
func (e *Element) Attr(name string) string { return e.attrs[name] }

// Form implements dom.Element.
func (e *Element) Form() (dom.Element, bool) {
	if e.form == "" {
		return nil, false
	}
	return &Element{key: e.form, tag: "form"}, true
}

// Page adapts a rod page to dom.Page. Binding callbacks arrive on rod's
// event goroutine; handlers must only hand work off.
type Page struct {
	page       *rod.Page
	overlay    *Overlay
	intercepts map[string]func(dom.Element)
	observers  map[int]func(dom.MutationBatch)
	elements   map[string]*Element
	cancel     context.CancelFunc
	stop       []func() error
	timeout    time.Duration
	nextObs    int
	mu         sync.Mutex
}

func newPage(rp *rod.Page, timeout time.Duration) *Page {
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	p := &Page{
		page:       rp,
		timeout:    timeout,
		intercepts: make(map[string]func(dom.Element)),
		observers:  make(map[int]func(dom.MutationBatch)),
		elements:   make(map[string]*Element),
	}
	p.overlay = &Overlay{page: p}
	return p
}

// Attach installs the runtime into rp and returns the adapter. The runtime
// is re-installed on every navigation until Close.
func Attach(ctx context.Context, rp *rod.Page, timeout time.Duration) (*Page, error) {
	p := newPage(rp, timeout)

	bindings := []struct {
		name string
		fn   func(gson.JSON) (interface{}, error)
	}{
		{bindingActivate, p.onActivate},
		{bindingMutations, p.onMutations},
		{bindingAction, p.overlay.onAction},
	}
	for _, b := range bindings {
		stop, err := rp.Expose(b.name, b.fn)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to expose %s: %w", b.name, err)
		}
		p.stop = append(p.stop, stop)
	}

	script := runtimeScript(detect.CandidateSelector)
	remove, err := rp.EvalOnNewDocument(script)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to install runtime: %w", err)
	}
	p.stop = append(p.stop, remove)

	if _, err := rp.Context(ctx).Timeout(p.timeout).Eval(`() => ` + script); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to start runtime: %w", err)
	}

	eventCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	wait := rp.Context(eventCtx).EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		p.navigated(ev.Frame.URL)
	})
	go wait()

	slog.Debug("Attached to page", "url", p.URL())
	return p, nil
}

// Overlay returns the in-page cooldown overlay.
func (p *Page) Overlay() *Overlay {
	return p.overlay
}

// Close detaches bindings and the navigation listener. The browser page
// stays open.
func (p *Page) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	for _, stop := range p.stop {
		if err := stop(); err != nil {
			slog.Debug("Failed to remove page hook", "error", err)
		}
	}
	p.stop = nil
}

// URL implements dom.Document.
func (p *Page) URL() string {
	var u string
	if err := p.evalInto(context.Background(), &u, `() => location.href`); err != nil {
		slog.Debug("Failed to read page url", "error", err)
	}
	return u
}

// Title implements dom.Document.
func (p *Page) Title() string {
	var t string
	if err := p.evalInto(context.Background(), &t, `() => document.title`); err != nil {
		slog.Debug("Failed to read page title", "error", err)
	}
	return t
}

// Text implements dom.Document.
func (p *Page) Text() string {
	var t string
	if err := p.evalInto(context.Background(), &t,
		`() => String(document.body ? document.body.innerText : "").slice(0, 200000)`); err != nil {
		slog.Debug("Failed to read page text", "error", err)
	}
	return t
}

// QueryAll implements dom.Document.
func (p *Page) QueryAll(selector string) []dom.Element {
	var ds []descriptor
	if err := p.evalInto(context.Background(), &ds, `(sel) => window.__spendguard.query(sel)`, selector); err != nil {
		slog.Debug("Query failed", "selector", selector, "error", err)
		return nil
	}
	return p.remember(ds)
}

// Intercept implements dom.Page.
func (p *Page) Intercept(el dom.Element, fn func(dom.Element)) (func(), error) {
	var ok bool
	if err := p.evalInto(context.Background(), &ok, `(k) => window.__spendguard.guard(k)`, el.Key()); err != nil {
		return nil, fmt.Errorf("failed to guard %s: %w", el.Key(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrElementDetached, el.Key())
	}

	p.mu.Lock()
	p.intercepts[el.Key()] = fn
	p.mu.Unlock()

	key := el.Key()
	return func() {
		p.mu.Lock()
		delete(p.intercepts, key)
		p.mu.Unlock()

		var released bool
		if err := p.evalInto(context.Background(), &released, `(k) => window.__spendguard.release(k)`, key); err != nil {
			slog.Debug("Failed to release guard", "element", key, "error", err)
		}
	}, nil
}

// Observe implements dom.Page.
func (p *Page) Observe(fn func(dom.MutationBatch)) func() {
	p.mu.Lock()
	p.nextObs++
	id := p.nextObs
	p.observers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers, id)
	}
}

type activation struct {
	Found    bool `json:"found"`
	Accepted bool `json:"accepted"`
}

// Activate implements dom.Page. The page accepts the activation unless the
// control is disabled.
func (p *Page) Activate(ctx context.Context, el dom.Element) (bool, error) {
	var res activation
	if err := p.evalInto(ctx, &res, `(k) => window.__spendguard.activate(k)`, el.Key()); err != nil {
		return false, fmt.Errorf("failed to activate %s: %w", el.Key(), err)
	}
	if !res.Found {
		return false, fmt.Errorf("%w: %s", common.ErrElementDetached, el.Key())
	}
	return res.Accepted, nil
}

// SubmitForm implements dom.Page.
func (p *Page) SubmitForm(ctx context.Context, form dom.Element) error {
	var ok bool
	if err := p.evalInto(ctx, &ok, `(k) => window.__spendguard.submit(k)`, form.Key()); err != nil {
		return fmt.Errorf("failed to submit %s: %w", form.Key(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrNoForm, form.Key())
	}
	return nil
}

// SetInteractionLocked implements dom.Page.
func (p *Page) SetInteractionLocked(locked bool) error {
	var ok bool
	if err := p.evalInto(context.Background(), &ok, `(on) => window.__spendguard.lock(on)`, locked); err != nil {
		return fmt.Errorf("failed to set interaction lock: %w", err)
	}
	return nil
}

func (p *Page) evalInto(ctx context.Context, dst any, js string, args ...interface{}) error {
	if p.page == nil {
		return fmt.Errorf("%w: page closed", common.ErrElementDetached)
	}
	res, err := p.page.Context(ctx).Timeout(p.timeout).Eval(js, args...)
	if err != nil {
		return err
	}
	return decode(res.Value, dst)
}

func decode(v gson.JSON, dst any) error {
	raw, err := v.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to read page value: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode page value: %w", err)
	}
	return nil
}

func (p *Page) remember(ds []descriptor) []dom.Element {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]dom.Element, 0, len(ds))
	for _, d := range ds {
		el := newElement(d)
		p.elements[d.Key] = el
		out = append(out, el)
	}
	return out
}

type activatePayload struct {
	Key string `json:"key"`
}

func (p *Page) onActivate(j gson.JSON) (interface{}, error) {
	var payload activatePayload
	if err := decode(j, &payload); err != nil {
		return nil, err
	}

	p.mu.Lock()
	fn, ok := p.intercepts[payload.Key]
	el := p.elements[payload.Key]
	p.mu.Unlock()

	if !ok {
		slog.Debug("Activation for unguarded element", "element", payload.Key)
		return nil, nil
	}
	if el == nil {
		el = &Element{key: payload.Key}
	}
	fn(el)
	return nil, nil
}

type mutationPayload struct {
	URL   string       `json:"url"`
	Added []descriptor `json:"added"`
}

func (p *Page) onMutations(j gson.JSON) (interface{}, error) {
	var payload mutationPayload
	if err := decode(j, &payload); err != nil {
		return nil, err
	}
	p.notify(dom.MutationBatch{Added: p.remember(payload.Added), URL: payload.URL})
	return nil, nil
}

func (p *Page) navigated(url string) {
	p.mu.Lock()
	p.intercepts = make(map[string]func(dom.Element))
	p.elements = make(map[string]*Element)
	p.mu.Unlock()

	p.notify(dom.MutationBatch{URL: url, Navigated: true})
}

func (p *Page) notify(batch dom.MutationBatch) {
	p.mu.Lock()
	observers := make([]func(dom.MutationBatch), 0, len(p.observers))
	for i := 1; i <= p.nextObs; i++ {
		if fn, ok := p.observers[i]; ok {
			observers = append(observers, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range observers {
		fn(batch)
	}
}
