package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spendguard/internal/cli"
	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/dom/htmldoc"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/savings"
	"github.com/Veraticus/spendguard/internal/tui"
	"github.com/Veraticus/spendguard/internal/tui/themes"
)

// guardWait bounds how long simulate waits for the first scan to guard the
// clicked control.
const guardWait = 2 * time.Second

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Click a control in a saved page and run the cooldown in the terminal",
		Long: `Load a saved HTML page, click the control matching --click and, if it is a
purchase control, run the cooldown as a terminal overlay.

Press enter to continue once skipping unlocks, or esc to take more time.`,
		Args: cobra.ExactArgs(1),
		RunE: runSimulate,
	}

	cmd.Flags().String("click", "", "CSS selector of the control to click (required)")
	cmd.Flags().String("url", "https://shop.example.com/checkout", "URL the page is treated as loaded from")
	cmd.Flags().String("theme", "default", "Overlay theme (default, catppuccin)")
	_ = cmd.MarkFlagRequired("click")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	selector, _ := cmd.Flags().GetString("click")
	pageURL, _ := cmd.Flags().GetString("url")
	themeName, _ := cmd.Flags().GetString("theme")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	doc, err := loadDocument(args[0], pageURL)
	if err != nil {
		return err
	}
	target, ok := dom.First(doc, selector)
	if !ok {
		return common.NewUserError(fmt.Sprintf("No element matches %q", selector), common.ErrNotFound)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	classifier, err := a.classifier()
	if err != nil {
		return err
	}
	if match := classifier.Explain(doc, target); !match.Purchase {
		fmt.Fprintln(out, cli.FormatInfo("Not a purchase control: "+match.String()))      //nolint:forbidigo // User-facing output
		fmt.Fprintln(out, cli.SubtleStyle.Render("The click would go straight through.")) //nolint:forbidigo // User-facing output
		return nil
	}

	theme, err := themeByName(themeName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tui.NewProgram(theme, tea.WithContext(ctx), tea.WithOutput(out), tea.WithInput(cmd.InOrStdin()))
	overlay := tui.NewOverlay(program)

	eng, err := a.newEngine(doc, overlay, nil, engineHooks{
		OnResolve: func(s *cooldown.Session, outcome cooldown.State) {
			overlay.Done(resolutionSummary(ctx, a.ledger, s, outcome, a.cfg.Engine.DefaultEstimate))
		},
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		if !waitGuarded(gctx, doc, target) {
			overlay.Done(cli.FormatWarning("The control was never guarded."))
			return nil
		}
		return doc.Click(target)
	})

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("overlay failed: %w", err)
	}
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s activated %d time(s)\n", selector, doc.Activations(target)) //nolint:forbidigo // User-facing output
	return nil
}

func loadDocument(path, pageURL string) (*htmldoc.Document, error) {
	f, err := os.Open(path) //nolint:gosec // Path comes from the user
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	doc, err := htmldoc.Parse(f, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// waitGuarded polls until target carries a guard or the wait expires.
func waitGuarded(ctx context.Context, doc *htmldoc.Document, target dom.Element) bool {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(guardWait)

	for {
		if doc.Intercepted(target) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			return false
		case <-ticker.C:
		}
	}
}

func themeByName(name string) (themes.Theme, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return themes.Default, nil
	case "catppuccin", "catppuccin-mocha":
		return themes.CatppuccinMocha, nil
	default:
		return themes.Theme{}, common.NewUserError(fmt.Sprintf("Unknown theme %q", name), common.ErrInvalidConfig)
	}
}

// summarySource is the part of the savings ledger resolutionSummary reads.
type summarySource interface {
	Summary(ctx context.Context) model.SavingsSummary
}

// resolutionSummary is the line printed when a simulated cooldown ends.
func resolutionSummary(ctx context.Context, ledger summarySource, s *cooldown.Session, outcome cooldown.State, estimate float64) string {
	switch outcome {
	case cooldown.Proceeded:
		if s.Elapsed >= s.View().Total {
			return cli.FormatInfo(fmt.Sprintf("Cooldown finished after %ds. The purchase went through.", s.Elapsed))
		}
		return cli.FormatInfo(fmt.Sprintf("Skipped after %ds. The purchase went through.", s.Elapsed))
	case cooldown.Abandoned:
		amount := s.Context.Amount(estimate)
		total := ledger.Summary(ctx).TotalSaved
		return cli.FormatSaved(fmt.Sprintf("Saved %s. Total saved: %s.",
			savings.FormatAmount(amount, s.Context.Currency), savings.FormatAmount(total, "")))
	default:
		return cli.FormatWarning("Cooldown dismissed.")
	}
}
