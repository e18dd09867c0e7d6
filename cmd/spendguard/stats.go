package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spendguard/internal/cli"
	"github.com/Veraticus/spendguard/internal/messaging"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/savings"
)

// withClient runs fn with a messaging client for the local database, or for
// the bridge at --remote when set.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *messaging.Client) error) error {
	remote, _ := cmd.Flags().GetString("remote")
	ctx := cmd.Context()

	if remote != "" {
		return fn(ctx, messaging.NewClient(messaging.NewHTTPTransport(remote, 0)))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a.client())
}

func addRemoteFlag(cmd *cobra.Command) {
	cmd.Flags().String("remote", "", "Read from a running bridge (e.g. http://127.0.0.1:8417) instead of the local database")
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show savings and this month's spending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *messaging.Client) error {
				insights, err := c.SpendingInsights(ctx)
				if err != nil {
					return err
				}
				summary, err := c.SavingsSummary(ctx)
				if err != nil {
					return err
				}
				writeStats(cmd.OutOrStdout(), insights, summary)
				return nil
			})
		},
	}
	addRemoteFlag(cmd)
	return cmd
}

func writeStats(w io.Writer, insights model.SpendingInsights, summary model.SavingsSummary) {
	fmt.Fprintln(w, cli.FormatTitle("Savings")) //nolint:forbidigo // User-facing output
	if summary.TotalSaved == 0 {
		fmt.Fprintln(w, cli.SubtleStyle.Render("Nothing saved yet. Walk away from a purchase to start.")) //nolint:forbidigo // User-facing output
	} else {
		fmt.Fprintln(w, cli.FormatSaved(savings.FormatAmount(summary.TotalSaved, "")+" saved in total")) //nolint:forbidigo // User-facing output
		rows := [][]string{
			{"This month", savings.FormatAmount(summary.ThisMonth, "")},
			{"Walk-aways", strconv.Itoa(summary.InterceptsCount)},
			{"Average", savings.FormatAmount(summary.AverageSave, "")},
		}
		if summary.BiggestSave.Amount > 0 {
			biggest := savings.FormatAmount(summary.BiggestSave.Amount, "")
			if summary.BiggestSave.ProductName != "" {
				biggest += " (" + summary.BiggestSave.ProductName + ")"
			}
			rows = append(rows, []string{"Biggest", biggest})
		}
		fmt.Fprintln(w, cli.RenderTable([]string{"", ""}, rows)) //nolint:forbidigo // User-facing output

		if len(summary.CategorySavings) > 0 {
			categories := make([]string, 0, len(summary.CategorySavings))
			for name := range summary.CategorySavings {
				categories = append(categories, name)
			}
			sort.Strings(categories)
			rows = rows[:0]
			for _, name := range categories {
				rows = append(rows, []string{name, savings.FormatAmount(summary.CategorySavings[name], "")})
			}
			fmt.Fprintln(w)                                                       //nolint:forbidigo // User-facing output
			fmt.Fprintln(w, cli.RenderTable([]string{"Category", "Saved"}, rows)) //nolint:forbidigo // User-facing output
		}
	}

	fmt.Fprintln(w)                                                          //nolint:forbidigo // User-facing output
	fmt.Fprintln(w, cli.FormatTitle("This month"))                           //nolint:forbidigo // User-facing output
	fmt.Fprintf(w, "%d cooldowns: %d went ahead, %d walked away (%.0f%%)\n", //nolint:forbidigo // User-facing output
		insights.Intercepted, insights.Proceeded, insights.Abandoned, insights.AbandonRate*100)
	fmt.Fprintf(w, "%s reconsidered, %s spent\n", //nolint:forbidigo // User-facing output
		savings.FormatAmount(insights.AmountReconsidered, ""), savings.FormatAmount(insights.AmountProceeded, ""))

	if len(insights.Categories) > 0 {
		rows := make([][]string, 0, len(insights.Categories))
		for _, c := range insights.Categories {
			budget, left := "-", "-"
			if c.HasBudget {
				budget = savings.FormatAmount(c.Budget, "")
				left = savings.FormatAmount(c.Remaining, "")
				if c.OverBudget {
					left = cli.ErrorStyle.Render("over")
				}
			}
			rows = append(rows, []string{c.Category, savings.FormatAmount(c.Spent, ""), budget, left})
		}
		fmt.Fprintln(w, cli.RenderTable([]string{"Category", "Spent", "Budget", "Left"}, rows)) //nolint:forbidigo // User-facing output
	}
	for _, name := range insights.OverBudget {
		fmt.Fprintln(w, cli.FormatWarning(name+" is over budget")) //nolint:forbidigo // User-facing output
	}
}
