package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/keel/internal/printer"
	"github.com/dyluth/keel/internal/verify"
	"github.com/dyluth/keel/pkg/ledger"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	verifyItemTitle       string
	verifyItemDescription string
	verifyItemCriteria    string
	verifyItemCategory    string
	verifyItemSprint      string
	verifyItemRecord      bool
	verifyItemJSON        bool
	verifyBacklogJSON     bool
	verifySprintJSON      bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify work items against the project truth",
	Long: `Verify work items against the project truth.

Each item is scored on four dimensions (domain vocabulary, target users,
competitor overlap, historical violation patterns) and mapped to a verdict:
blocked, review, warning or allowed. Blocked and review verdicts feed the
violation learning system.`,
}

var verifyItemCmd = &cobra.Command{
	Use:   "item",
	Short: "Verify a single work item",
	Long: `Verify a single work item against the project truth.

Examples:
  # Check a backlog candidate before writing it down
  keel verify item --title "Add invoice reminders" \
    --description "Email owners when an invoice is 30 days overdue"

  # Check and record a sprint task
  keel verify item --record --sprint sprint-12 \
    --title "Reconcile bank feed duplicates" --category sprint-task`,
	RunE: runVerifyItem,
}

var verifyBacklogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Verify every recorded backlog item",
	RunE:  runVerifyBacklog,
}

var verifySprintCmd = &cobra.Command{
	Use:   "sprint SPRINT_ID",
	Short: "Verify every task in a sprint",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerifySprint,
}

func init() {
	verifyItemCmd.Flags().StringVarP(&verifyItemTitle, "title", "t", "", "Item title (required)")
	verifyItemCmd.Flags().StringVarP(&verifyItemDescription, "description", "d", "", "Item description")
	verifyItemCmd.Flags().StringVar(&verifyItemCriteria, "criteria", "", "Acceptance criteria text")
	verifyItemCmd.Flags().StringVarP(&verifyItemCategory, "category", "c", string(ledger.CategoryBacklog), "Item category: backlog, sprint-task, document, decision or sprint-goals")
	verifyItemCmd.Flags().StringVar(&verifyItemSprint, "sprint", "", "Sprint ID to record the item under (implies sprint-task ledger)")
	verifyItemCmd.Flags().BoolVar(&verifyItemRecord, "record", false, "Append the item to the project ledger after verification")
	verifyItemCmd.Flags().BoolVar(&verifyItemJSON, "json", false, "Output in JSON format")
	verifyItemCmd.MarkFlagRequired("title")

	verifyBacklogCmd.Flags().BoolVar(&verifyBacklogJSON, "json", false, "Output in JSON format")
	verifySprintCmd.Flags().BoolVar(&verifySprintJSON, "json", false, "Output in JSON format")

	verifyCmd.AddCommand(verifyItemCmd)
	verifyCmd.AddCommand(verifyBacklogCmd)
	verifyCmd.AddCommand(verifySprintCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runVerifyItem(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	category := ledger.Category(verifyItemCategory)
	if err := category.Validate(); err != nil {
		return printer.Error(
			"invalid category",
			err.Error(),
			[]string{"Valid categories: backlog, sprint-task, document, decision, sprint-goals"},
		)
	}

	item := &ledger.Item{
		ID:                 uuid.New().String(),
		Title:              verifyItemTitle,
		Description:        verifyItemDescription,
		AcceptanceCriteria: verifyItemCriteria,
		Category:           category,
		CreatedAtMs:        time.Now().UnixMilli(),
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

	result, err := newEngine(client).VerifyItem(ctx, item)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if verifyItemRecord {
		if verifyItemSprint != "" {
			err = client.AppendSprintItem(ctx, verifyItemSprint, item)
		} else {
			err = client.AppendItem(ctx, item)
		}
		if err != nil {
			return fmt.Errorf("verified but failed to record item: %w", err)
		}
	}

	if verifyItemJSON {
		return outputJSON(result)
	}

	printResult(result)
	if verifyItemRecord {
		printer.Println()
		if verifyItemSprint != "" {
			printer.Success("Recorded in sprint '%s' as %s", verifyItemSprint, shortID(item.ID))
		} else {
			printer.Success("Recorded in the %s ledger as %s", item.Category, shortID(item.ID))
		}
	}
	return nil
}

func runVerifyBacklog(cmd *cobra.Command, args []string) error {
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

	batch, err := newEngine(client).VerifyBacklog(ctx)
	if err != nil {
		return fmt.Errorf("backlog verification failed: %w", err)
	}

	if verifyBacklogJSON {
		return outputJSON(batch)
	}

	printBatch("backlog", batch)
	return nil
}

func runVerifySprint(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sprintID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newLedgerClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	batch, err := newEngine(client).VerifySprintTasks(ctx, sprintID)
	if err != nil {
		return fmt.Errorf("sprint verification failed: %w", err)
	}

	if verifySprintJSON {
		return outputJSON(batch)
	}

	printBatch(fmt.Sprintf("sprint '%s'", sprintID), batch)
	return nil
}

func printResult(result *ledger.VerificationResult) {
	printer.Printf("Status:     %s\n", printer.Status(result.Status))
	printer.Printf("Confidence: %d/100 (%s)\n", result.Confidence, result.Score.Reason)
	printer.Printf("Breakdown:  domain %d · user %d · competitor %d · historical %d\n",
		result.Score.Domain, result.Score.User, result.Score.Competitor, result.Score.Historical)
	printer.Println()
	printer.Println(result.Message)
	if result.Recommendation != "" {
		printer.Printf("Recommendation: %s\n", result.Recommendation)
	}
}

func printBatch(scope string, batch *verify.BatchResult) {
	if len(batch.Results) == 0 && len(batch.Errors) == 0 {
		printer.Info("No items recorded for %s.", scope)
		printer.Println()
		printer.Println("Record items as you verify them:")
		printer.Println("  keel verify item --record --title \"...\"")
		return
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("STATUS", "CONFIDENCE", "TITLE", "REASON")
	for i := range batch.Results {
		result := &batch.Results[i]
		table.Append(
			printer.Status(result.Status),
			fmt.Sprintf("%d", result.Confidence),
			result.Item.Title,
			result.Score.Reason,
		)
	}
	table.Render()

	for _, batchErr := range batch.Errors {
		printer.Warning("item %s failed: %s", shortID(batchErr.ItemID), batchErr.Err)
	}

	printer.Println()
	printer.Printf("Purity score: %d/100 across %d items\n", batch.PurityScore, len(batch.Results))
	if batch.Partial {
		printer.Warning("Result is partial: %d items could not be verified", len(batch.Errors))
	}
	if batch.CanProceed {
		printer.Success("No blocked items - %s can proceed", scope)
	} else {
		printer.Warning("Blocked items present - resolve them before proceeding")
	}
}
