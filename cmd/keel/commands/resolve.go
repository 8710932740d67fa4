package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/keel/internal/printer"
	"github.com/dyluth/keel/internal/resolver"
	"github.com/dyluth/keel/pkg/ledger"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	resolveListJSON        bool
	resolveShowJSON        bool
	resolveCompleteOutcome string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Inspect and complete drift resolution workflows",
	Long: `Inspect and complete drift resolution workflows.

Resolutions are created automatically when a drift cycle reaches moderate
severity or above. The strategy follows the severity: critical drift gets
an emergency stop, major drift an intervention, moderate drift a
collaborative review, anything lower an informational note.`,
}

var resolveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resolution workflows, newest first",
	RunE:  runResolveList,
}

var resolveShowCmd = &cobra.Command{
	Use:   "show RESOLUTION_ID",
	Short: "Show a resolution workflow in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolveShow,
}

var resolveCompleteCmd = &cobra.Command{
	Use:   "complete RESOLUTION_ID",
	Short: "Complete and archive a resolution workflow",
	Long: `Complete and archive a resolution workflow.

Completing an emergency or intervention resolution clears the blocked
flag. The outcome and derived learning tags are stored on the archived
resolution.

Example:
  keel resolve complete 6ba7b810 --outcome "descoped the wallet epic"`,
	Args: cobra.ExactArgs(1),
	RunE: runResolveComplete,
}

func init() {
	resolveListCmd.Flags().BoolVar(&resolveListJSON, "json", false, "Output in JSON format")
	resolveShowCmd.Flags().BoolVar(&resolveShowJSON, "json", false, "Output in JSON format")
	resolveCompleteCmd.Flags().StringVarP(&resolveCompleteOutcome, "outcome", "o", "", "What the resolution concluded (required)")
	resolveCompleteCmd.MarkFlagRequired("outcome")

	resolveCmd.AddCommand(resolveListCmd)
	resolveCmd.AddCommand(resolveShowCmd)
	resolveCmd.AddCommand(resolveCompleteCmd)
	rootCmd.AddCommand(resolveCmd)
}

func runResolveList(cmd *cobra.Command, args []string) error {
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

	resolutions, err := newCoordinator(cfg, client).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list resolutions: %w", err)
	}

	if resolveListJSON {
		return outputJSON(resolutions)
	}

	if len(resolutions) == 0 {
		printer.Info("No resolution workflows. That usually means no serious drift.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("ID", "STRATEGY", "STATUS", "SEVERITY", "DRIFT", "CREATED")
	for _, res := range resolutions {
		table.Append(
			shortID(res.ID),
			string(res.Strategy),
			string(res.Status),
			printer.Severity(res.Report.Severity),
			fmt.Sprintf("%d", res.Report.OverallDrift),
			time.UnixMilli(res.CreatedAtMs).Format("2006-01-02 15:04"),
		)
	}
	table.Render()
	return nil
}

func runResolveShow(cmd *cobra.Command, args []string) error {
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

	resolutionID, err := resolveResolutionArg(ctx, client, args[0])
	if err != nil {
		return err
	}

	res, err := newCoordinator(cfg, client).Get(ctx, resolutionID)
	if err != nil {
		return fmt.Errorf("failed to load resolution: %w", err)
	}

	if resolveShowJSON {
		return outputJSON(res)
	}

	printResolution(res)
	return nil
}

func runResolveComplete(cmd *cobra.Command, args []string) error {
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

	resolutionID, err := resolveResolutionArg(ctx, client, args[0])
	if err != nil {
		return err
	}

	res, err := newCoordinator(cfg, client).Complete(ctx, resolutionID, resolveCompleteOutcome)
	if err != nil {
		return fmt.Errorf("failed to complete resolution: %w", err)
	}

	printer.Success("Resolution %s completed and archived", shortID(res.ID))
	if len(res.LearningTags) > 0 {
		printer.Info("Learning tags: %v", res.LearningTags)
	}
	if res.Strategy == ledger.StrategyEmergency || res.Strategy == ledger.StrategyIntervention {
		printer.Info("Blocked flag cleared - work can resume")
	}
	return nil
}

func resolveResolutionArg(ctx context.Context, client *ledger.Client, arg string) (string, error) {
	resolutionID, err := resolver.ResolveResolutionID(ctx, client, arg)
	if err != nil {
		var ambiguous *resolver.AmbiguousError
		if errors.As(err, &ambiguous) {
			return "", errors.New(resolver.FormatAmbiguousError(ambiguous))
		}
		return "", err
	}
	return resolutionID, nil
}

func printResolution(res *ledger.Resolution) {
	printer.Printf("Resolution %s (%s, %s)\n", shortID(res.ID), res.Strategy, res.Status)
	printer.Printf("Created: %s\n", time.UnixMilli(res.CreatedAtMs).Format(time.RFC3339))
	printer.Printf("Report:  %s drift %d %s\n", shortID(res.Report.ID), res.Report.OverallDrift, printer.Severity(res.Report.Severity))
	if len(res.Participants) > 0 {
		printer.Printf("Participants: %v\n", res.Participants)
	}

	if len(res.Actions) > 0 {
		printer.Println()
		printer.Println("Actions:")
		for _, action := range res.Actions {
			marker := "✓"
			if !action.OK {
				marker = "✗"
			}
			printer.Printf("  %s %s", marker, action.Name)
			if action.Detail != "" {
				printer.Printf(" - %s", action.Detail)
			}
			printer.Println()
		}
	}

	if res.Outcome != "" {
		printer.Println()
		printer.Printf("Outcome: %s\n", res.Outcome)
	}
	if len(res.LearningTags) > 0 {
		printer.Printf("Learning tags: %v\n", res.LearningTags)
	}
	if res.CompletedAtMs > 0 {
		printer.Printf("Completed: %s\n", time.UnixMilli(res.CompletedAtMs).Format(time.RFC3339))
	}
}
