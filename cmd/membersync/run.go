package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/infra"
	"clubhouse/internal/payments"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Compare every account with Stripe without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, reconcile.ModeAnalyze)
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Analyze, write Stripe's view back to the database, then analyze again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, reconcile.ModeSync)
		},
	}
}

func runReconcile(cmd *cobra.Command, mode reconcile.Mode) error {
	configPath, _ := cmd.Flags().GetString("config")
	asJSON, _ := cmd.Flags().GetBool("json")
	noEmail, _ := cmd.Flags().GetBool("no-email")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, cleanup, err := newRunner(ctx, cfg, log, !noEmail)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := runner.Run(ctx, mode)
	if result != nil {
		if perr := printResult(cmd.OutOrStdout(), result, asJSON); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// newRunner wires the reconcile runner the same way the server does, minus HTTP.
func newRunner(ctx context.Context, cfg *config.Config, log *zap.Logger, email bool) (*reconcile.Runner, func(), error) {
	shutdownTracing, err := infra.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, nil, err
	}

	db, err := infra.InitPostgresql(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := repositories.UseAccountGuard(db, repositories.NewAccountGuard(cfg.Club.FounderUsername, log)); err != nil {
		return nil, nil, err
	}

	allowlist, err := config.LoadAnnualAllowlist(cfg.Club.AnnualAllowlistFile)
	if err != nil {
		return nil, nil, err
	}

	gateway := payments.NewStripeGateway(cfg.Stripe)
	resolver := payments.NewResolver(gateway, allowlist, log)

	var (
		mailer   reconcile.ReportMailer
		notifier services.NotificationService
	)
	if email {
		notifier = services.NewNotificationService(services.NewSMTPMailService(cfg.SMTP, cfg.Club.Name), cfg, log)
		mailer = notifier
	}

	rdb := infra.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	runner := reconcile.NewRunner(
		repositories.NewAccountRepository(db),
		repositories.NewPaymentFailureRepository(db),
		repositories.NewReconcileRunRepository(db),
		gateway, resolver, mailer, infra.NewLocker(rdb),
		cfg.Reconcile.Workers, log.Named("reconcile"),
	)

	cleanup := func() {
		if notifier != nil {
			notifier.Wait()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		infra.ClosePostgresql(db, log)
		_ = shutdownTracing(context.Background())
	}
	return runner, cleanup, nil
}

func printResult(w io.Writer, result *reconcile.RunResult, asJSON bool) error {
	if asJSON {
		raw, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}

	printReport(w, "Analysis", result.Initial)
	if result.Sync != nil {
		fmt.Fprintf(w, "\nSync\n%s\n", strings.Repeat("=", 40))
		fmt.Fprintf(w, "  Processed: %d\n  Updated:   %d\n", result.Sync.Processed, result.Sync.Updated)
		for _, e := range result.Sync.Entries {
			fmt.Fprintf(w, "  %-20s %s -> %s (paid %t -> %t)\n", e.Username, e.OldStatus, e.NewStatus, e.OldPaid, e.NewPaid)
		}
		for _, msg := range result.Sync.Errors {
			fmt.Fprintf(w, "  error: %s\n", msg)
		}
	}
	if result.Final != nil {
		fmt.Fprintln(w)
		printReport(w, "Final analysis", result.Final)
	}
	return nil
}

func printReport(w io.Writer, title string, r *reconcile.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", 40))
	fmt.Fprintf(w, "  Accounts:            %d\n", r.TotalAccounts)
	fmt.Fprintf(w, "  Stripe customers:    %d\n", r.TotalCustomers)
	fmt.Fprintf(w, "  Discrepancies:       %d\n", len(r.Discrepant()))
	fmt.Fprintf(w, "  Unmatched accounts:  %d\n", len(r.UnmatchedAccounts))
	fmt.Fprintf(w, "  Unmatched customers: %d\n", len(r.UnmatchedCustomers))

	for _, a := range r.Discrepant() {
		fmt.Fprintf(w, "\n  %s (%s)\n", a.Username, a.Email)
		for _, d := range a.Discrepancies {
			fmt.Fprintf(w, "    - %s\n", d)
		}
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  * %s\n", rec)
	}
}
