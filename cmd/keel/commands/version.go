package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/keel/internal/printer"
	"github.com/dyluth/keel/internal/resolver"
	"github.com/dyluth/keel/internal/truth"
	versionpkg "github.com/dyluth/keel/internal/version"
	"github.com/dyluth/keel/pkg/ledger"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	versionCreateFile   string
	versionCreateReason string
	versionAuthor       string
	versionListJSON     bool
	versionShowJSON     bool
	versionRollbackWhy  string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Manage truth document versions",
	Long: `Manage truth document versions.

Every change to the truth lands as a new immutable version with a semver
number derived from the impact of the change: what-we're-building or
industry edits are major, target-user edits are minor, everything else is
a patch. History is append-only; rollback creates a new version whose
content matches the target.`,
}

var versionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new truth version from an edited markdown file",
	Long: `Create a new truth version from an edited markdown file.

The file is diffed against the current truth; the impact of the changed
fields decides the semver bump. Identical content is rejected.

Example:
  keel version create --file truth.md --reason "narrow primary user to owner-operators" --author dana`,
	RunE: runVersionCreate,
}

var versionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all truth versions, oldest first",
	RunE:  runVersionList,
}

var versionShowCmd = &cobra.Command{
	Use:   "show VERSION_ID",
	Short: "Show a single truth version in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionShow,
}

var versionRollbackCmd = &cobra.Command{
	Use:   "rollback VERSION_ID",
	Short: "Restore the truth content of an earlier version",
	Long: `Restore the truth content of an earlier version.

Rollback never rewrites history: it creates a new version whose content
equals the target version, with a major bump.`,
	Args: cobra.ExactArgs(1),
	RunE: runVersionRollback,
}

var versionCompareCmd = &cobra.Command{
	Use:   "compare FROM_ID TO_ID",
	Short: "Show the field-level differences between two versions",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersionCompare,
}

var versionChangelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Show the one-line-per-version change history",
	RunE:  runVersionChangelog,
}

func init() {
	versionCreateCmd.Flags().StringVarP(&versionCreateFile, "file", "f", "", "Markdown file containing the amended truth (required)")
	versionCreateCmd.Flags().StringVarP(&versionCreateReason, "reason", "r", "", "Why the truth is changing (required)")
	versionCreateCmd.Flags().StringVarP(&versionAuthor, "author", "a", "", "Author recorded on the version")
	versionCreateCmd.MarkFlagRequired("file")
	versionCreateCmd.MarkFlagRequired("reason")

	versionListCmd.Flags().BoolVar(&versionListJSON, "json", false, "Output in JSON format")
	versionShowCmd.Flags().BoolVar(&versionShowJSON, "json", false, "Output in JSON format")

	versionRollbackCmd.Flags().StringVarP(&versionRollbackWhy, "reason", "r", "", "Why the rollback is happening")
	versionRollbackCmd.Flags().StringVarP(&versionAuthor, "author", "a", "", "Author recorded on the rollback version")

	versionCmd.AddCommand(versionCreateCmd)
	versionCmd.AddCommand(versionListCmd)
	versionCmd.AddCommand(versionShowCmd)
	versionCmd.AddCommand(versionRollbackCmd)
	versionCmd.AddCommand(versionCompareCmd)
	versionCmd.AddCommand(versionChangelogCmd)
	rootCmd.AddCommand(versionCmd)
}

func runVersionCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	doc, err := os.ReadFile(versionCreateFile)
	if err != nil {
		return fmt.Errorf("failed to read truth file: %w", err)
	}

	proposed, err := truth.Parse(string(doc))
	if err != nil {
		return printer.ErrorWithContext(
			"truth document is malformed",
			err.Error(),
			map[string]string{"File": versionCreateFile},
			[]string{"Compare against 'keel truth show --raw'"},
		)
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

	created, err := versionpkg.NewManager(client).CreateVersion(ctx, proposed, versionCreateReason, versionAuthor)
	if err != nil {
		if errors.Is(err, versionpkg.ErrNoChanges) {
			return printer.Error(
				"no changes detected",
				"The proposed truth is identical to the current one.",
				[]string{"Edit the file before creating a version"},
			)
		}
		if errors.Is(err, ledger.ErrConflict) {
			return printer.Error(
				"concurrent truth modification",
				"The truth changed while this version was being prepared.",
				[]string{"Re-read the current truth and retry:\n  keel truth show --raw"},
			)
		}
		return fmt.Errorf("failed to create version: %w", err)
	}

	printer.Success("Created truth version %s (%s impact)", created.Number, created.Impact)
	for _, change := range created.Changes {
		printer.Printf("  • %s\n", describeChange(change))
	}
	return nil
}

func runVersionList(cmd *cobra.Command, args []string) error {
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

	versions, err := versionpkg.NewManager(client).History(ctx)
	if err != nil {
		return fmt.Errorf("failed to load version history: %w", err)
	}

	if versionListJSON {
		return outputJSON(versions)
	}

	if len(versions) == 0 {
		printer.Info("No versions yet. Amend the truth with 'keel version create'.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("ID", "NUMBER", "IMPACT", "AUTHOR", "TIME", "REASON")
	for _, v := range versions {
		table.Append(
			shortID(v.ID),
			v.Number,
			string(v.Impact),
			v.Author,
			time.UnixMilli(v.TimestampMs).Format("2006-01-02 15:04"),
			v.Reason,
		)
	}
	table.Render()
	return nil
}

func runVersionShow(cmd *cobra.Command, args []string) error {
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

	versionID, err := resolveVersionArg(ctx, client, args[0])
	if err != nil {
		return err
	}

	v, err := versionpkg.NewManager(client).GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("failed to load version: %w", err)
	}

	if versionShowJSON {
		return outputJSON(v)
	}

	printer.Printf("Version %s (%s impact) by %s at %s\n",
		v.Number, v.Impact, v.Author, time.UnixMilli(v.TimestampMs).Format(time.RFC3339))
	printer.Printf("Reason: %s\n", v.Reason)
	printer.Printf("Hash:   %s\n", v.ContentHash)
	if len(v.Changes) > 0 {
		printer.Println()
		printer.Println("Changes:")
		for _, change := range v.Changes {
			printer.Printf("  • %s\n", describeChange(change))
		}
	}
	printer.Println()
	printTruth(&v.Truth)
	return nil
}

func runVersionRollback(cmd *cobra.Command, args []string) error {
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

	versionID, err := resolveVersionArg(ctx, client, args[0])
	if err != nil {
		return err
	}

	created, err := versionpkg.NewManager(client).RollbackToVersion(ctx, versionID, versionRollbackWhy, versionAuthor)
	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	printer.Success("Rolled back: truth is now version %s", created.Number)
	printer.Info("History is untouched - the rollback is a new version (%s)", shortID(created.ID))
	return nil
}

func runVersionCompare(cmd *cobra.Command, args []string) error {
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

	fromID, err := resolveVersionArg(ctx, client, args[0])
	if err != nil {
		return err
	}
	toID, err := resolveVersionArg(ctx, client, args[1])
	if err != nil {
		return err
	}

	changes, err := versionpkg.NewManager(client).CompareVersions(ctx, fromID, toID)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if len(changes) == 0 {
		printer.Info("The two versions have identical truth content.")
		return nil
	}

	for _, change := range changes {
		printer.Printf("  • %s\n", describeChange(change))
	}
	return nil
}

func runVersionChangelog(cmd *cobra.Command, args []string) error {
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

	entries, err := versionpkg.NewManager(client).Changelog(ctx)
	if err != nil {
		return fmt.Errorf("failed to load changelog: %w", err)
	}

	if len(entries) == 0 {
		printer.Info("No versions yet.")
		return nil
	}

	for _, entry := range entries {
		printer.Printf("%s  %-8s %-7s %s (%s)\n",
			time.UnixMilli(entry.TimestampMs).Format("2006-01-02"),
			entry.Number,
			entry.Impact,
			entry.Reason,
			entry.Author,
		)
	}
	return nil
}

// resolveVersionArg resolves a full or prefix version ID, rendering
// ambiguity with candidate suggestions.
func resolveVersionArg(ctx context.Context, client *ledger.Client, arg string) (string, error) {
	versionID, err := resolver.ResolveVersionID(ctx, client, arg)
	if err != nil {
		var ambiguous *resolver.AmbiguousError
		if errors.As(err, &ambiguous) {
			return "", errors.New(resolver.FormatAmbiguousError(ambiguous))
		}
		return "", err
	}
	return versionID, nil
}

func describeChange(change ledger.FieldChange) string {
	var parts []string
	if change.Old != "" || change.New != "" {
		parts = append(parts, fmt.Sprintf("%s: %q → %q", change.Field, change.Old, change.New))
	}
	if len(change.Added) > 0 {
		parts = append(parts, fmt.Sprintf("%s added: %s", change.Field, strings.Join(change.Added, "; ")))
	}
	if len(change.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("%s removed: %s", change.Field, strings.Join(change.Removed, "; ")))
	}
	if len(parts) == 0 {
		return change.Field
	}
	return strings.Join(parts, ", ")
}
