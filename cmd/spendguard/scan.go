package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spendguard/internal/cli"
	"github.com/Veraticus/spendguard/internal/detect"
	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/extract"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <file>...",
		Short: "Report which controls in saved pages would be guarded",
		Long: `Classify every control in one or more saved HTML pages and list the ones
that would be guarded, along with the product and price read from each page.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().String("url", "https://shop.example.com/", "URL the pages are treated as loaded from")
	cmd.Flags().BoolP("verbose", "v", false, "Explain every control, not only guarded ones")

	return cmd
}

// scanResult is the classification of one page.
type scanResult struct {
	File       string
	Product    string
	Price      string
	GateReason string
	Err        error
	Controls   []controlResult
	PageOK     bool
}

type controlResult struct {
	Label string
	Match detect.Match
}

func runScan(cmd *cobra.Command, args []string) error {
	pageURL, _ := cmd.Flags().GetString("url")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a := &app{cfg: cfg}
	classifier, err := a.classifier()
	if err != nil {
		return err
	}
	extractor := extract.New(extract.WithPriceCeiling(cfg.Engine.PriceCeiling))

	out := cmd.OutOrStdout()
	bar := newScanBar(cmd.ErrOrStderr(), len(args))

	results := make([]scanResult, 0, len(args))
	for _, path := range args {
		results = append(results, scanFile(classifier, extractor, path, pageURL))
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}

	writeScanReport(out, results, verbose)
	return nil
}

func newScanBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[green][bold]Scanning pages...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func scanFile(classifier *detect.Classifier, extractor *extract.Extractor, path, pageURL string) scanResult {
	res := scanResult{File: path}

	doc, err := loadDocument(path, pageURL)
	if err != nil {
		res.Err = err
		return res
	}

	res.PageOK, res.GateReason = classifier.Gate(doc)
	pc := extractor.Extract(doc)
	res.Product = pc.ProductName
	res.Price = pc.PriceText

	for _, el := range doc.QueryAll(detect.CandidateSelector) {
		res.Controls = append(res.Controls, controlResult{
			Label: controlLabel(el),
			Match: classifier.Explain(doc, el),
		})
	}
	return res
}

func controlLabel(el dom.Element) string {
	label := dom.NormalizeSpace(el.Text())
	if label == "" {
		label = el.Attr("value")
	}
	if label == "" {
		label = el.Attr("aria-label")
	}
	if len(label) > 40 {
		label = label[:37] + "..."
	}
	return "<" + el.TagName() + "> " + label
}

func writeScanReport(w io.Writer, results []scanResult, verbose bool) {
	var guarded, pages int
	for _, res := range results {
		fmt.Fprintln(w, cli.FormatTitle(filepath.Base(res.File))) //nolint:forbidigo // User-facing output
		if res.Err != nil {
			fmt.Fprintln(w, cli.FormatError(res.Err.Error())) //nolint:forbidigo // User-facing output
			continue
		}
		pages++

		gate := cli.FormatSuccess("commerce page: " + res.GateReason)
		if !res.PageOK {
			gate = cli.SubtleStyle.Render("not a commerce page: " + res.GateReason)
		}
		fmt.Fprintln(w, gate) //nolint:forbidigo // User-facing output
		if res.Product != "" || res.Price != "" {
			fmt.Fprintf(w, "%s %s %s\n", cli.CartIcon, res.Product, res.Price) //nolint:forbidigo // User-facing output
		}

		var rows [][]string
		for _, c := range res.Controls {
			if c.Match.Purchase {
				guarded++
			}
			if !c.Match.Purchase && !verbose {
				continue
			}
			status := "guard"
			if !c.Match.Purchase {
				status = "pass"
			}
			rows = append(rows, []string{status, c.Label, c.Match.String()})
		}
		if len(rows) > 0 {
			fmt.Fprintln(w, cli.RenderTable([]string{"Action", "Control", "Reason"}, rows)) //nolint:forbidigo // User-facing output
		}
		fmt.Fprintln(w) //nolint:forbidigo // User-facing output
	}

	summary := fmt.Sprintf("%d %s guarded across %d %s", guarded, plural(guarded, "control", "controls"), pages, plural(pages, "page", "pages"))
	fmt.Fprintln(w, cli.FormatInfo(strings.TrimSpace(summary))) //nolint:forbidigo // User-facing output
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
