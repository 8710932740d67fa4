package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/keel/internal/learning"
	"github.com/dyluth/keel/internal/printer"
	"github.com/dyluth/keel/internal/truth"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	insightsJSON bool
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Summarise learned violation patterns for this project",
	Long: `Summarise learned violation patterns for this project.

Shows the most common violations relevant to the current truth, prevention
strategies derived from them, and structural risk factors in the truth
document itself (missing exclusions, thin competitor lists).`,
	RunE: runInsights,
}

func init() {
	insightsCmd.Flags().BoolVar(&insightsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(insightsCmd)
}

func runInsights(cmd *cobra.Command, args []string) error {
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

	projectTruth, err := truth.NewStore(client).Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load truth document: %w", err)
	}
	if projectTruth == nil {
		return noTruthError()
	}

	insights, err := learning.NewSystem(client).ProjectInsights(ctx, projectTruth)
	if err != nil {
		return fmt.Errorf("failed to build insights: %w", err)
	}

	if insightsJSON {
		return outputJSON(insights)
	}

	printer.Printf("Learned patterns relevant to '%s': %d\n", cfg.Project.Name, insights.TotalPatterns)

	if len(insights.CommonViolations) > 0 {
		printer.Println()
		table := tablewriter.NewTable(os.Stdout)
		table.Header("TYPE", "SIGNATURE", "OCCURRENCES", "AVG CONFIDENCE")
		for _, violation := range insights.CommonViolations {
			table.Append(
				string(violation.Type),
				violation.Signature,
				fmt.Sprintf("%d", violation.Occurrences),
				fmt.Sprintf("%.1f", violation.AvgConfidence),
			)
		}
		table.Render()
	}

	printSection("Prevention strategies", insights.PreventionStrategies)
	printSection("Risk factors", insights.RiskFactors)
	printSection("Recommendations", insights.Recommendations)
	return nil
}

func printSection(title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	printer.Println()
	printer.Println(title + ":")
	for _, line := range lines {
		printer.Printf("  • %s\n", line)
	}
}
