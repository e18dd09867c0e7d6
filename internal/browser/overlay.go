package browser

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ysmood/gson"

	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/savings"
)

var _ cooldown.Overlay = (*Overlay)(nil)

// Overlay renders the cooldown inside the page's own document, in a closed
// shadow root so page styles cannot reach it.
type Overlay struct {
	page    *Page
	actions cooldown.Actions
	mu      sync.Mutex
}

type overlayView struct {
	Headline      string   `json:"headline"`
	Product       string   `json:"product"`
	Price         string   `json:"price"`
	Platform      string   `json:"platform"`
	Message       string   `json:"message"`
	Warnings      []string `json:"warnings"`
	Total         int      `json:"total"`
	Remaining     int      `json:"remaining"`
	SkipAvailable bool     `json:"skipAvailable"`
}

func toOverlayView(v cooldown.View) overlayView {
	return overlayView{
		Headline:      v.Headline,
		Product:       v.Product,
		Price:         v.Price,
		Platform:      v.Platform,
		Message:       v.Message,
		Warnings:      v.Warnings,
		Total:         v.Total,
		Remaining:     v.Remaining,
		SkipAvailable: v.SkipAvailable,
	}
}

// Show implements cooldown.Overlay.
func (o *Overlay) Show(v cooldown.View, actions cooldown.Actions) error {
	o.mu.Lock()
	o.actions = actions
	o.mu.Unlock()

	var ok any
	return o.page.evalInto(context.Background(), &ok, `(v) => window.__spendguard.overlay.show(v)`, toOverlayView(v))
}

// Update implements cooldown.Overlay.
func (o *Overlay) Update(v cooldown.View) {
	var ok any
	if err := o.page.evalInto(context.Background(), &ok, `(v) => window.__spendguard.overlay.render(v)`, toOverlayView(v)); err != nil {
		slog.Debug("Failed to update overlay", "error", err)
	}
}

// Hide implements cooldown.Overlay.
func (o *Overlay) Hide() {
	o.mu.Lock()
	o.actions = cooldown.Actions{}
	o.mu.Unlock()

	var ok any
	if err := o.page.evalInto(context.Background(), &ok, `() => window.__spendguard.overlay.hide()`); err != nil {
		slog.Debug("Failed to hide overlay", "error", err)
	}
}

// Feedback implements cooldown.Overlay.
func (o *Overlay) Feedback(fb savings.Feedback) {
	if fb.Message == "" {
		return
	}
	var ok any
	if err := o.page.evalInto(context.Background(), &ok, `(m) => window.__spendguard.overlay.toast(m)`, fb.Message); err != nil {
		slog.Debug("Failed to show feedback", "error", err)
	}
}

type actionPayload struct {
	Action string `json:"action"`
}

func (o *Overlay) onAction(j gson.JSON) (interface{}, error) {
	var payload actionPayload
	if err := decode(j, &payload); err != nil {
		return nil, err
	}

	o.mu.Lock()
	actions := o.actions
	o.mu.Unlock()

	switch payload.Action {
	case "proceed":
		if actions.Proceed != nil {
			actions.Proceed()
		}
	case "abandon":
		if actions.Abandon != nil {
			actions.Abandon()
		}
	default:
		slog.Debug("Unknown overlay action", "action", payload.Action)
	}
	return nil, nil
}
