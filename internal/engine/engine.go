// Package engine runs purchase interception on one page: it watches the page
// for new controls, guards the ones that look like purchases, and drives the
// cooldown when a guarded control is activated.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/spendguard/internal/clock"
	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/detect"
	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/extract"
	"github.com/Veraticus/spendguard/internal/intercept"
	"github.com/Veraticus/spendguard/internal/metrics"
)

// ErrStopped is returned when an engine is run twice.
var ErrStopped = errors.New("engine stopped")

// Config holds tuning options for the engine.
type Config struct {
	Debounce  time.Duration
	QueueSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:  150 * time.Millisecond,
		QueueSize: 256,
	}
}

// Deps are the collaborators an engine drives. Cooldown.Post and
// Cooldown.Clock are overwritten by the engine.
type Deps struct {
	Classifier *detect.Classifier
	Extractor  *extract.Extractor
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Cooldown   cooldown.Config
}

// Engine owns the interception state of one page. Every page, clock and
// overlay callback is posted to a single event loop, so the state below is
// only touched from that loop.
type Engine struct {
	page       dom.Page
	classifier *detect.Classifier
	extractor  *extract.Extractor
	registry   *intercept.Registry
	cooldown   *cooldown.Controller
	clock      clock.Clock
	metrics    *metrics.Metrics
	ctx        context.Context
	events     chan func()
	done       chan struct{}
	debounce   clock.Timer
	observe    func()
	onResolve  func(*cooldown.Session, cooldown.State)
	url        string
	pending    []dom.Element
	cfg        Config
	estimate   float64
	gateOK     bool
	started    bool
	stopOnce   sync.Once
}

// New creates an engine for page.
func New(page dom.Page, deps Deps, cfg Config) (*Engine, error) {
	if deps.Classifier == nil {
		c, err := detect.New()
		if err != nil {
			return nil, err
		}
		deps.Classifier = c
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	e := &Engine{
		page:       page,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		registry:   intercept.NewRegistry(page),
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		cfg:        cfg,
		events:     make(chan func(), cfg.QueueSize),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		onResolve:  deps.Cooldown.OnResolve,
	}

	cc := deps.Cooldown
	cc.Clock = deps.Clock
	cc.Post = e.post
	userStart := cc.OnStart
	cc.OnStart = func(s *cooldown.Session) {
		e.metrics.IncrInterception()
		if userStart != nil {
			userStart(s)
		}
	}
	cc.OnResolve = e.resolved
	e.cooldown = cooldown.New(cc)
	e.estimate = cc.DefaultEstimate
	if e.estimate <= 0 {
		e.estimate = cooldown.DefaultEstimate
	}
	return e, nil
}

// Run processes page events until ctx is canceled. On return every guard is
// detached and any running cooldown is dismissed.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.start(ctx); err != nil {
		return err
	}
	defer e.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-e.events:
			fn()
		}
	}
}

// Scan requests a full classification pass.
func (e *Engine) Scan() {
	e.post(e.scanAll)
}

// Proceed asks the running cooldown to let the purchase through.
func (e *Engine) Proceed() {
	e.post(func() { e.cooldown.Proceed() })
}

// Abandon asks the running cooldown to drop the purchase.
func (e *Engine) Abandon() {
	e.post(func() { e.cooldown.Abandon() })
}

// Guarded returns the number of guarded controls.
func (e *Engine) Guarded() int {
	return e.registry.Guarded()
}

func (e *Engine) start(ctx context.Context) error {
	if e.started {
		return ErrStopped
	}
	e.started = true
	e.ctx = ctx
	e.url = e.page.URL()
	e.observe = e.page.Observe(func(b dom.MutationBatch) {
		e.post(func() { e.mutated(b) })
	})
	e.post(e.scanAll)

	slog.Info("Watching page", "url", e.url)
	return nil
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() {
		if e.observe != nil {
			e.observe()
		}
		if e.debounce != nil {
			e.debounce.Stop()
			e.debounce = nil
		}
		e.cooldown.Dismiss()
		e.registry.Reset()
		close(e.done)
	})
}

// post queues fn on the event loop. After the engine stops, fn is dropped.
func (e *Engine) post(fn func()) {
	select {
	case e.events <- fn:
	case <-e.done:
	}
}

// drain runs queued events on the calling goroutine until the queue is
// empty.
func (e *Engine) drain() {
	for {
		select {
		case fn := <-e.events:
			fn()
		default:
			return
		}
	}
}

func (e *Engine) mutated(b dom.MutationBatch) {
	if b.Navigated || (b.URL != "" && b.URL != e.url) {
		e.navigated(b.URL)
		return
	}

	e.pending = append(e.pending, b.Added...)
	if e.debounce == nil {
		e.debounce = e.clock.AfterFunc(e.cfg.Debounce, func() {
			e.post(e.flush)
		})
	}
}

func (e *Engine) flush() {
	e.debounce = nil
	batch := e.pending
	e.pending = nil
	e.classify(batch)
}

func (e *Engine) navigated(pageURL string) {
	slog.Info("Page navigated", "from", e.url, "to", pageURL)

	e.cooldown.Dismiss()
	e.registry.Reset()
	e.pending = nil
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
	if pageURL != "" {
		e.url = pageURL
	}
	e.gateOK = false
	e.scanAll()
}

func (e *Engine) scanAll() {
	e.classify(e.page.QueryAll(detect.CandidateSelector))
}

// classify guards every purchase control in els. The page gate is checked
// once per pass; when it starts passing on a page that previously failed,
// the whole page is rescanned so controls that were already present are not
// missed.
func (e *Engine) classify(els []dom.Element) {
	start := time.Now()
	defer func() { e.metrics.ObserveScan(time.Since(start)) }()

	ok, reason := e.classifier.Gate(e.page)
	if !ok {
		e.gateOK = false
		slog.Debug("Page is not a purchase page", "url", e.url, "reason", reason)
		return
	}
	if !e.gateOK {
		e.gateOK = true
		els = e.page.QueryAll(detect.CandidateSelector)
	}

	added := 0
	for _, el := range els {
		if e.registry.HasGuard(el) || e.registry.IsDecided(el) {
			continue
		}
		m := e.classifier.MatchElement(el)
		if m.Keyword == "" || m.Exclusion != "" {
			continue
		}

		guarded, err := e.registry.Guard(el, e.activated)
		if err != nil {
			slog.Debug("Failed to guard control", "element", el.Key(), "error", err)
			continue
		}
		if guarded {
			added++
			slog.Debug("Guarded purchase control", "element", el.Key(), "keyword", m.Keyword, "gate", reason)
		}
	}
	e.metrics.AddGuards(added)
}

// activated is the guard handler. It may run on any goroutine.
func (e *Engine) activated(el dom.Element) {
	e.post(func() { e.intercepted(el) })
}

func (e *Engine) intercepted(el dom.Element) {
	if e.registry.IsDecided(el) {
		return
	}
	pc := e.extractor.Extract(e.page)
	if _, ok := e.cooldown.Start(e.ctx, e.page, el, pc); !ok {
		slog.Info("Activation swallowed while a cooldown is running", "element", el.Key())
	}
}

func (e *Engine) resolved(s *cooldown.Session, outcome cooldown.State) {
	e.metrics.IncrResolution(outcome.String())

	switch outcome {
	case cooldown.Proceeded:
		res := e.registry.Replay(e.ctx, s.Element)
		e.metrics.IncrReplay(string(res.Strategy))
		if res.Err != nil {
			slog.Warn("Replay failed; the user can click again", "element", s.Element.Key(), "error", res.Err)
		} else {
			slog.Info("Replayed purchase action", "element", s.Element.Key(), "strategy", res.Strategy)
		}
	case cooldown.Abandoned:
		e.metrics.AddSaved(s.Context.Amount(e.estimate))
	}

	if e.onResolve != nil {
		e.onResolve(s, outcome)
	}
}
