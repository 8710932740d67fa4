package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dyluth/keel/internal/config"
	"github.com/dyluth/keel/internal/learning"
	"github.com/dyluth/keel/internal/printer"
	"github.com/dyluth/keel/internal/resolution"
	"github.com/dyluth/keel/internal/scaffold"
	"github.com/dyluth/keel/internal/truth"
	"github.com/dyluth/keel/internal/verify"
	"github.com/dyluth/keel/pkg/ledger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "keel",
	Short: "Keel - Project truth and drift detection engine",
	Long: `Keel keeps a project honest about what it is building.

It maintains a versioned "project truth" document in Redis, verifies
backlog items and sprint tasks against that truth, monitors the ledger
for scope drift, and coordinates resolution workflows when the project
strays from its stated intent.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", scaffold.ConfigFile, "Path to the keel configuration file")
}

// loadConfig reads and validates the keel.yml named by --config.
func loadConfig() (*config.KeelConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{
				"Initialize a project first:\n  keel init <project-name>",
				fmt.Sprintf("Or point --config at an existing file (tried: %s)", configPath),
			},
		)
	}
	return cfg, nil
}

// newLedgerClient connects to the configured Redis and verifies connectivity.
// Caller must Close() the returned client.
func newLedgerClient(ctx context.Context, cfg *config.KeelConfig) (*ledger.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client, err := ledger.NewClient(opts, cfg.Project.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis not accessible",
			"Keel stores all project state in Redis and cannot continue without it.",
			map[string]string{
				"Address": cfg.Redis.Addr,
				"Project": cfg.Project.Name,
			},
			[]string{
				"Start Redis locally:\n  docker run -d -p 6379:6379 redis:7-alpine",
				"Or update the redis.addr setting in keel.yml",
			},
		)
	}

	return client, nil
}

// newEngine assembles the verification engine with the learning system wired
// in as the violation sink.
func newEngine(client *ledger.Client) *verify.Engine {
	return verify.NewEngine(client, truth.NewStore(client), learning.NewSystem(client))
}

// newCoordinator assembles the resolution coordinator from the configured
// stakeholder list.
func newCoordinator(cfg *config.KeelConfig, client *ledger.Client) *resolution.Coordinator {
	return resolution.NewCoordinator(client, cfg.Stakeholders)
}

// outputJSON pretty-prints v to stdout for machine consumption.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}

// shortID abbreviates a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
