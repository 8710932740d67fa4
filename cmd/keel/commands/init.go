package commands

import (
	"fmt"

	"github.com/dyluth/keel/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init PROJECT_NAME",
	Short: "Initialize a new Keel project",
	Long: `Initialize a new Keel project with default configuration and a truth template.

Creates:
  • keel.yml - Project configuration file
  • TRUTH_TEMPLATE.md - Truth document template to fill in and register

Use --force to reinitialize an existing project (WARNING: destroys existing configuration).`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Force reinitialization (removes existing keel.yml and truth template)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	projectName := args[0]

	// Check for existing files (unless --force)
	if !forceInit {
		if err := scaffold.CheckExisting(); err != nil {
			return err
		}
	}

	// Initialize the project
	if err := scaffold.Initialize(projectName, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// Print success message
	scaffold.PrintSuccess(projectName)

	return nil
}
