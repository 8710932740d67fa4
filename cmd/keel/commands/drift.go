package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/keel/internal/drift"
	"github.com/dyluth/keel/internal/filter"
	"github.com/dyluth/keel/internal/printer"
	"github.com/dyluth/keel/internal/timespec"
	"github.com/dyluth/keel/pkg/ledger"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	driftCheckJSON       bool
	driftHistorySince    string
	driftHistoryUntil    string
	driftHistorySeverity string
	driftHistoryCheck    string
	driftHistoryLimit    int
	driftHistoryJSON     bool
	driftStatusJSON      bool
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Detect and inspect project scope drift",
	Long: `Detect and inspect project scope drift.

A drift cycle samples recent ledger activity per category (backlog,
documents, commits, sprint goals, decisions), verifies the samples against
the project truth and aggregates the misalignment into a severity. Reports
at moderate severity or above trigger a resolution workflow.`,
}

var driftCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a drift detection cycle now",
	RunE:  runDriftCheck,
}

var driftHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent drift reports",
	Long: `List recent drift reports, newest first.

Examples:
  # Everything from the last day
  keel drift history --since 24h

  # Major episodes in a window
  keel drift history --since 2026-08-01T00:00:00Z --until 2026-08-15T00:00:00Z --min-severity major

  # Reports where a sprint check drifted
  keel drift history --check "sprint-*"`,
	RunE: runDriftHistory,
}

var driftWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream drift reports as they are published",
	Long: `Stream drift reports as they are published.

Subscribes to the project's drift event channel and prints each report as
it arrives. Run the monitor daemon (or 'keel drift check' elsewhere) to
produce events. Stop with Ctrl+C.`,
	RunE: runDriftWatch,
}

var driftStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest drift severity and whether work is blocked",
	RunE:  runDriftStatus,
}

func init() {
	driftCheckCmd.Flags().BoolVar(&driftCheckJSON, "json", false, "Output in JSON format")

	driftHistoryCmd.Flags().StringVar(&driftHistorySince, "since", "", "Only reports at or after this time (RFC3339, date or duration like 24h)")
	driftHistoryCmd.Flags().StringVar(&driftHistoryUntil, "until", "", "Only reports at or before this time")
	driftHistoryCmd.Flags().StringVar(&driftHistorySeverity, "min-severity", "", "Minimum severity: minor, moderate, major or critical")
	driftHistoryCmd.Flags().StringVar(&driftHistoryCheck, "check", "", "Glob over check names; matches reports where such a check drifted")
	driftHistoryCmd.Flags().IntVar(&driftHistoryLimit, "limit", 20, "Maximum reports to show")
	driftHistoryCmd.Flags().BoolVar(&driftHistoryJSON, "json", false, "Output in JSON format")

	driftStatusCmd.Flags().BoolVar(&driftStatusJSON, "json", false, "Output in JSON format")

	driftCmd.AddCommand(driftCheckCmd)
	driftCmd.AddCommand(driftHistoryCmd)
	driftCmd.AddCommand(driftWatchCmd)
	driftCmd.AddCommand(driftStatusCmd)
	rootCmd.AddCommand(driftCmd)
}

func runDriftCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newLedgerClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	detector := drift.NewDetector(client, newEngine(client), newCoordinator(cfg, client), cfg.Monitoring.SampleWindow)

	report, err := detector.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("drift cycle failed: %w", err)
	}

	if driftCheckJSON {
		return outputJSON(report)
	}

	printDriftReport(report)
	return nil
}

func runDriftHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	since, until, err := timespec.ParseRange(driftHistorySince, driftHistoryUntil)
	if err != nil {
		return printer.Error(
			"invalid time range",
			err.Error(),
			[]string{"Accepted forms: RFC3339 (2026-08-30T13:00:00Z), dates (2026-08-30) and durations (24h, 7d as 168h)"},
		)
	}

	criteria := filter.Criteria{
		SinceTimestampMs: since,
		UntilTimestampMs: until,
		MinSeverity:      ledger.Severity(driftHistorySeverity),
		CheckGlob:        driftHistoryCheck,
	}
	if criteria.MinSeverity != "" {
		if err := criteria.MinSeverity.Validate(); err != nil {
			return printer.Error(
				"invalid severity",
				err.Error(),
				[]string{"Valid severities: none, minor, moderate, major, critical"},
			)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newLedgerClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	reports, err := client.RecentReports(ctx, 100)
	if err != nil {
		return fmt.Errorf("failed to load drift reports: %w", err)
	}

	reports = criteria.Apply(reports)
	if driftHistoryLimit > 0 && len(reports) > driftHistoryLimit {
		reports = reports[:driftHistoryLimit]
	}

	if driftHistoryJSON {
		return outputJSON(reports)
	}

	if len(reports) == 0 {
		if criteria.HasFilters() {
			printer.Info("No drift reports match the given filters.")
		} else {
			printer.Info("No drift reports yet. Run 'keel drift check' or start the monitor.")
		}
		return nil
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("ID", "TIME", "DRIFT", "SEVERITY", "TREND", "NOTES")
	for _, report := range reports {
		table.Append(
			shortID(report.ID),
			time.UnixMilli(report.TimestampMs).Format(time.RFC3339),
			fmt.Sprintf("%d", report.OverallDrift),
			printer.Severity(report.Severity),
			fmt.Sprintf("%+.1f", report.Trend),
			driftNotes(report),
		)
	}
	table.Render()
	return nil
}

func runDriftWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newLedgerClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeDriftReports(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to drift reports: %w", err)
	}
	defer sub.Close()

	printer.Info("Watching drift reports for project '%s' (Ctrl+C to stop)...", cfg.Project.Name)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	for {
		select {
		case sig := <-sigCh:
			printer.Info("Received %v, stopping watch", sig)
			return nil
		case report, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printer.Println()
			printDriftReport(report)
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("subscription error: %v", err)
		}
	}
}

func runDriftStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newLedgerClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	blocked, reason, err := client.Blocked(ctx)
	if err != nil {
		return fmt.Errorf("failed to read blocked state: %w", err)
	}

	reports, err := client.RecentReports(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to load drift reports: %w", err)
	}

	if driftStatusJSON {
		status := struct {
			Blocked       bool                `json:"blocked"`
			BlockedReason string              `json:"blocked_reason,omitempty"`
			LatestReport  *ledger.DriftReport `json:"latest_report,omitempty"`
		}{Blocked: blocked, BlockedReason: reason}
		if len(reports) > 0 {
			status.LatestReport = reports[0]
		}
		return outputJSON(status)
	}

	if blocked {
		printer.Warning("Work is BLOCKED: %s", reason)
	} else {
		printer.Success("Work is not blocked")
	}

	if len(reports) == 0 {
		printer.Info("No drift reports yet.")
		return nil
	}

	latest := reports[0]
	printer.Printf("Latest drift: %d/100 (%s) at %s, trend %+.1f\n",
		latest.OverallDrift,
		printer.Severity(latest.Severity),
		time.UnixMilli(latest.TimestampMs).Format(time.RFC3339),
		latest.Trend,
	)
	return nil
}

func printDriftReport(report *ledger.DriftReport) {
	printer.Printf("Drift report %s at %s\n", shortID(report.ID), time.UnixMilli(report.TimestampMs).Format(time.RFC3339))
	printer.Printf("Overall: %d/100 %s, trend %+.1f\n", report.OverallDrift, printer.Severity(report.Severity), report.Trend)

	table := tablewriter.NewTable(os.Stdout)
	table.Header("CHECK", "DRIFT", "SAMPLES", "DETAILS")
	for i := range report.Checks {
		check := &report.Checks[i]
		details := check.Details
		if check.Failed() {
			details = "error: " + check.Err
		}
		table.Append(check.Name, fmt.Sprintf("%d", check.Drift), fmt.Sprintf("%d", check.SampleSize), details)
	}
	table.Render()

	if report.Partial {
		printer.Warning("Report is partial: one or more checks failed")
	}
	for _, recommendation := range report.Recommendations {
		printer.Printf("  → %s\n", recommendation)
	}
}

func driftNotes(report *ledger.DriftReport) string {
	if report.Partial {
		return "partial"
	}
	return ""
}
