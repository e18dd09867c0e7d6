// Package browser drives a live Chromium tab through the DevTools protocol
// and adapts it to the engine's page interface.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how the browser is started.
type Config struct {
	// DebuggerURL connects to an already running browser instead of
	// launching one.
	DebuggerURL string
	Bin         string
	Headless    bool
	Width       int
	Height      int

	NavigationTimeout time.Duration
	EvalTimeout       time.Duration
}

// DefaultConfig returns a visible browser with a laptop-sized viewport.
func DefaultConfig() Config {
	return Config{
		Headless:          false,
		Width:             1280,
		Height:            800,
		NavigationTimeout: 30 * time.Second,
		EvalTimeout:       DefaultEvalTimeout,
	}
}

// Browser is a connected browser process.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
}

// Launch starts or connects to a browser.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	b := &Browser{cfg: cfg}

	controlURL := cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	rb := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		b.kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	b.browser = rb

	slog.Info("Browser connected", "headless", cfg.Headless, "attached", cfg.DebuggerURL != "")
	return b, nil
}

// Open creates a tab at url, waits for it to load and attaches the runtime.
func (b *Browser) Open(ctx context.Context, url string) (*Page, error) {
	rp, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if b.cfg.Width > 0 && b.cfg.Height > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             b.cfg.Width,
			Height:            b.cfg.Height,
			DeviceScaleFactor: 1.0,
		}).Call(rp); err != nil {
			slog.Warn("Failed to set viewport", "error", err)
		}
	}

	// Attach before navigating so the runtime is present from the first
	// parsed node of the target document.
	page, err := Attach(ctx, rp, b.cfg.EvalTimeout)
	if err != nil {
		return nil, err
	}

	nav := rp.Context(ctx)
	if b.cfg.NavigationTimeout > 0 {
		nav = nav.Timeout(b.cfg.NavigationTimeout)
	}
	if err := nav.Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		slog.Warn("Page did not finish loading", "url", url, "error", err)
	}
	return page, nil
}

// Close disconnects and, when the browser was launched here, kills it.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		if b.launcher != nil {
			err = b.browser.Close()
		}
		b.browser = nil
	}
	b.kill()
	return err
}

func (b *Browser) kill() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
}
