package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dyluth/keel/internal/printer"
	"github.com/dyluth/keel/internal/scaffold"
	"github.com/dyluth/keel/internal/truth"
	"github.com/dyluth/keel/pkg/ledger"
	"github.com/spf13/cobra"
)

var (
	truthCreateFile string
	truthShowJSON   bool
	truthShowRaw    bool
)

var truthCmd = &cobra.Command{
	Use:   "truth",
	Short: "Manage the project truth document",
	Long: `Manage the project truth document - the canonical statement of what
the project is, who it serves, and what it is explicitly not.

All verification and drift detection measures against this document.`,
}

var truthCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register the initial truth document from a markdown file",
	Long: `Register the initial truth document from a markdown file.

The file must follow the truth template layout ('keel init' creates one).
Creation fails if a truth document already exists; amendments go through
'keel version create' so that every change is recorded in history.

Examples:
  # Register the filled-in template
  keel truth create

  # Register a specific file
  keel truth create --file docs/truth.md`,
	RunE: runTruthCreate,
}

var truthShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current truth document",
	RunE:  runTruthShow,
}

func init() {
	truthCreateCmd.Flags().StringVarP(&truthCreateFile, "file", "f", scaffold.TruthTemplateFile, "Markdown file containing the truth document")
	truthShowCmd.Flags().BoolVar(&truthShowJSON, "json", false, "Output in JSON format")
	truthShowCmd.Flags().BoolVar(&truthShowRaw, "raw", false, "Print the stored markdown document verbatim")
	truthCmd.AddCommand(truthCreateCmd)
	truthCmd.AddCommand(truthShowCmd)
	rootCmd.AddCommand(truthCmd)
}

func runTruthCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	doc, err := os.ReadFile(truthCreateFile)
	if err != nil {
		return printer.Error(
			"failed to read truth file",
			err.Error(),
			[]string{
				"Run 'keel init <project-name>' to scaffold a truth template",
				"Or point --file at an existing truth document",
			},
		)
	}

	parsed, err := truth.Parse(string(doc))
	if err != nil {
		return printer.ErrorWithContext(
			"truth document is malformed",
			err.Error(),
			map[string]string{"File": truthCreateFile},
			[]string{"Compare against the template created by 'keel init'"},
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

	created, err := truth.NewStore(client).Create(ctx, parsed)
	if err != nil {
		return fmt.Errorf("failed to create truth document: %w", err)
	}

	printer.Success("Truth document registered for project '%s' (version %s)", cfg.Project.Name, created.Version)
	printer.Info("Building: %s", created.WhatWereBuilding)
	printer.Info("Industry: %s", created.Industry)
	return nil
}

func runTruthShow(cmd *cobra.Command, args []string) error {
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

	store := truth.NewStore(client)

	if truthShowRaw {
		doc, _, err := store.LoadDocument(ctx)
		if err != nil {
			return fmt.Errorf("failed to load truth document: %w", err)
		}
		if doc == "" {
			return noTruthError()
		}
		fmt.Print(doc)
		return nil
	}

	projectTruth, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load truth document: %w", err)
	}
	if projectTruth == nil {
		return noTruthError()
	}

	if truthShowJSON {
		return outputJSON(projectTruth)
	}

	printTruth(projectTruth)
	return nil
}

func noTruthError() error {
	return printer.Error(
		"no truth document exists",
		"Nothing has been registered for this project yet.",
		[]string{"Create one first:\n  keel truth create --file TRUTH_TEMPLATE.md"},
	)
}

func printTruth(t *ledger.ProjectTruth) {
	printer.Printf("Version:   %s\n", t.Version)
	printer.Printf("Building:  %s\n", t.WhatWereBuilding)
	printer.Printf("Industry:  %s\n", t.Industry)
	printer.Printf("Primary:   %s\n", t.TargetUsers.Primary)
	if len(t.TargetUsers.Secondary) > 0 {
		printer.Printf("Secondary: %s\n", strings.Join(t.TargetUsers.Secondary, ", "))
	}

	if len(t.NotThis) > 0 {
		printer.Println()
		printer.Println("NOT this:")
		for _, exclusion := range t.NotThis {
			printer.Printf("  • %s\n", exclusion)
		}
	}

	if len(t.Competitors) > 0 {
		printer.Println()
		printer.Println("Competitors:")
		for _, competitor := range t.Competitors {
			printer.Printf("  • %s: %s\n", competitor.Name, competitor.Description)
		}
	}

	if len(t.DomainTerms) > 0 {
		printer.Println()
		printer.Println("Domain terms:")
		for _, term := range t.DomainTerms {
			printer.Printf("  • %s: %s\n", term.Term, term.Definition)
		}
	}
}
