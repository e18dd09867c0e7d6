package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spendguard/internal/cli"
	"github.com/Veraticus/spendguard/internal/messaging"
	"github.com/Veraticus/spendguard/internal/scheduler"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP message bridge, metrics and budget alerts",
		Long: `Serve the message bridge on POST /v1/messages, Prometheus metrics on /metrics
and run the scheduled budget check and monthly savings report.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	cmd.Flags().Bool("check-now", false, "Run the budget check once at startup")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed localhost certificate")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	checkNow, _ := cmd.Flags().GetBool("check-now")
	if cmd.Flags().Changed("tls") {
		cfg.Server.TLS, _ = cmd.Flags().GetBool("tls")
	}
	tlsCfg, err := bridgeTLS(cfg.Server)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	handler := cli.NewInterruptHandler(out)
	ctx := handler.HandleInterrupts(cmd.Context(), "Serving", "")

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sched := scheduler.New(ctx, a.records, a.ledger, scheduler.WithNotifier(alertPrinter(out)))
	if err := sched.RegisterAll(cfg.Scheduler.BudgetCron, cfg.Scheduler.RolloverCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if checkNow {
		sched.RunBudgetCheckNow()
	}

	fmt.Fprintln(out, cli.FormatTitle("Serving on "+cfg.Server.Addr))                                        //nolint:forbidigo // User-facing output
	fmt.Fprintln(out, cli.SubtleStyle.Render("POST "+messaging.MessagesPath+"  GET /metrics  GET /healthz")) //nolint:forbidigo // User-facing output

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(gctx, cfg.Server.Addr, messaging.NewHandler(a.router, a.metrics), tlsCfg)
	})
	return g.Wait()
}

func alertPrinter(w io.Writer) func(string) {
	return func(msg string) {
		fmt.Fprintln(w, cli.FormatWarning(msg)) //nolint:forbidigo // User-facing output
	}
}
