package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spendguard/internal/browser"
	"github.com/Veraticus/spendguard/internal/cli"
	"github.com/Veraticus/spendguard/internal/config"
	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/messaging"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Open a page in a browser and guard its purchase buttons",
		Long: `Launch (or attach to) a Chromium browser, open the given page and guard every
purchase control on it. Clicking one starts a cooldown overlay inside the page.

Use --bridge to also serve the message bridge and /metrics while watching.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().Bool("headless", false, "Run the browser without a window")
	cmd.Flags().String("debugger-url", "", "Attach to a running browser's DevTools endpoint")
	cmd.Flags().Bool("bridge", false, "Serve the HTTP message bridge while watching")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless, _ = cmd.Flags().GetBool("headless")
	}
	if url, _ := cmd.Flags().GetString("debugger-url"); url != "" {
		cfg.Browser.DebuggerURL = url
	}
	bridge, _ := cmd.Flags().GetBool("bridge")

	out := cmd.OutOrStdout()
	handler := cli.NewInterruptHandler(out)
	ctx := handler.HandleInterrupts(cmd.Context(), "Watching", "Any open cooldown was dismissed.")

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	b, err := browser.Launch(ctx, browserConfig(cfg.Browser))
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			slog.Warn("Failed to close browser", "error", err)
		}
	}()

	page, err := b.Open(ctx, args[0])
	if err != nil {
		return err
	}
	defer page.Close()

	eng, err := a.newEngine(page, page.Overlay(), nil, engineHooks{
		OnStart: func(s *cooldown.Session) {
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Cooldown started: %s", describe(s)))) //nolint:forbidigo // User-facing output
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatTitle("Watching "+page.URL()))                  //nolint:forbidigo // User-facing output
	fmt.Fprintln(out, cli.SubtleStyle.Render("Press Ctrl+C to stop watching.")) //nolint:forbidigo // User-facing output

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	if bridge {
		tlsCfg, err := bridgeTLS(cfg.Server)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return serveHTTP(gctx, cfg.Server.Addr, messaging.NewHandler(a.router, a.metrics), tlsCfg)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	snap := a.metrics.Snapshot()
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Stopped after %d cooldowns.", int(snap.Interceptions)))) //nolint:forbidigo // User-facing output
	return nil
}

func browserConfig(c config.BrowserConfig) browser.Config {
	bc := browser.DefaultConfig()
	bc.Bin = c.Bin
	bc.DebuggerURL = c.DebuggerURL
	bc.Headless = c.Headless
	if c.Width > 0 && c.Height > 0 {
		bc.Width = c.Width
		bc.Height = c.Height
	}
	return bc
}

// describe names the purchase a session is about.
func describe(s *cooldown.Session) string {
	pc := s.Context
	switch {
	case pc.ProductName != "" && pc.PriceText != "":
		return pc.ProductName + " (" + pc.PriceText + ")"
	case pc.ProductName != "":
		return pc.ProductName
	case pc.PriceText != "":
		return pc.PriceText
	default:
		return s.PageURL
	}
}
