package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spendguard/internal/cli"
	"github.com/Veraticus/spendguard/internal/messaging"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/savings"
)

func purchasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchases",
		Short: "List recent cooldowns and their outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withClient(cmd, func(ctx context.Context, c *messaging.Client) error {
				entries, err := c.RecentPurchases(ctx)
				if err != nil {
					return err
				}
				writePurchases(cmd.OutOrStdout(), entries, limit)
				return nil
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of entries to show (0 for all)")
	addRemoteFlag(cmd)
	return cmd
}

func writePurchases(w io.Writer, entries []model.PurchaseEntry, limit int) {
	if len(entries) == 0 {
		fmt.Fprintln(w, cli.SubtleStyle.Render("No purchases recorded yet.")) //nolint:forbidigo // User-facing output
		return
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		amount := "-"
		if e.Amount != nil {
			amount = savings.FormatAmount(*e.Amount, "")
		}
		product := e.ProductName
		if product == "" {
			product = e.URL
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format(time.DateTime),
			outcomeLabel(e),
			product,
			e.Category,
			amount,
		})
	}
	fmt.Fprintln(w, cli.RenderTable([]string{"When", "Outcome", "Product", "Category", "Amount"}, rows)) //nolint:forbidigo // User-facing output
}

func outcomeLabel(e model.PurchaseEntry) string {
	switch e.Reason {
	case model.ReasonIntercepted:
		return "paused"
	case model.ReasonProceeded:
		return "waited, bought"
	case model.ReasonSkipped:
		return "skipped, bought"
	}
	if e.Proceeded {
		return "bought"
	}
	return "paused"
}
