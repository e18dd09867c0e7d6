// Package intercept tracks which page controls are guarded and which have
// already been decided, and replays a decided control exactly once.
package intercept

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/dom"
)

// Strategy names how a replay reached the page.
type Strategy string

// Replay strategies.
const (
	StrategyClick      Strategy = "click"
	StrategyFormSubmit Strategy = "form-submit"
	StrategyFailed     Strategy = "failed"
)

// ReplayResult reports the outcome of Replay.
type ReplayResult struct {
	Err      error
	Strategy Strategy
}

// Registry owns the guarded and decided sets for one page. It is discarded
// or Reset when the page navigates.
type Registry struct {
	page    dom.Page
	guards  map[string]func()
	decided map[string]struct{}
	mu      sync.Mutex
}

// NewRegistry returns an empty registry for page.
func NewRegistry(page dom.Page) *Registry {
	return &Registry{
		page:    page,
		guards:  make(map[string]func()),
		decided: make(map[string]struct{}),
	}
}

// Guard attaches handler to el unless it is already guarded or decided.
// It reports whether a new guard was attached.
func (r *Registry) Guard(el dom.Element, handler func(dom.Element)) (bool, error) {
	key := el.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.guards[key]; ok {
		return false, nil
	}
	if _, ok := r.decided[key]; ok {
		return false, nil
	}

	release, err := r.page.Intercept(el, handler)
	if err != nil {
		return false, fmt.Errorf("failed to guard %s: %w", key, err)
	}
	r.guards[key] = release
	return true, nil
}

// HasGuard reports whether el is currently guarded.
func (r *Registry) HasGuard(el dom.Element) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.guards[el.Key()]
	return ok
}

// IsDecided reports whether el was released after a decision.
func (r *Registry) IsDecided(el dom.Element) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.decided[el.Key()]
	return ok
}

// Release removes the guard from el and marks it decided so it is never
// guarded again on this page.
func (r *Registry) Release(el dom.Element) {
	key := el.Key()

	r.mu.Lock()
	release, ok := r.guards[key]
	delete(r.guards, key)
	r.decided[key] = struct{}{}
	r.mu.Unlock()

	if ok {
		release()
	}
}

// Guarded returns the number of guarded elements.
func (r *Registry) Guarded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.guards)
}

// Reset detaches every guard and forgets every decision.
func (r *Registry) Reset() {
	r.mu.Lock()
	releases := make([]func(), 0, len(r.guards))
	for _, release := range r.guards {
		releases = append(releases, release)
	}
	r.guards = make(map[string]func())
	r.decided = make(map[string]struct{})
	r.mu.Unlock()

	for _, release := range releases {
		release()
	}
}

// Replay hands el back to the page. The guard is released and the element
// marked decided before the synthetic activation is dispatched, so the
// activation cannot be intercepted again. When the page does not accept the
// activation the enclosing form is submitted natively. Failures are logged
// and reported, never returned to the user.
func (r *Registry) Replay(ctx context.Context, el dom.Element) ReplayResult {
	r.Release(el)

	accepted, err := r.page.Activate(ctx, el)
	if err == nil && accepted {
		return ReplayResult{Strategy: StrategyClick}
	}
	if err != nil {
		slog.Warn("Synthetic activation failed", "element", el.Key(), "error", err)
	}
	if errors.Is(err, common.ErrElementDetached) {
		return ReplayResult{Strategy: StrategyFailed, Err: err}
	}

	form, ok := el.Form()
	if !ok {
		slog.Warn("Replay not accepted and no form to submit", "element", el.Key())
		if err == nil {
			err = common.ErrReplayRejected
		}
		return ReplayResult{Strategy: StrategyFailed, Err: err}
	}

	if err := r.page.SubmitForm(ctx, form); err != nil {
		slog.Warn("Native form submission failed", "element", el.Key(), "error", err)
		return ReplayResult{Strategy: StrategyFailed, Err: err}
	}
	return ReplayResult{Strategy: StrategyFormSubmit}
}
