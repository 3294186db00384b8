package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/attendkit/punchbridge/internal/config"
)

var syncCmd = &cobra.Command{
	Use:   "sync [date]",
	Short: "Run one cloud sync and exit",
	Long: `Run the full pipeline once and exit: read the terminal, build the daily
records for the target date, and deliver them to the HR cloud. Without an
argument the target is yesterday; an explicit date must be "YYYY-MM-DD".

The attempt is recorded in the scheduler state, so a later "serve" run
reports it as the last sync.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := syncCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	_, sched, err := buildBridge(cfg)
	if err != nil {
		return err
	}

	date := ""
	if len(args) == 1 {
		date = args[0]
	}

	result, err := sched.TriggerSync(context.Background(), date)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
