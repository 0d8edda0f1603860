package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storepulse/storepulse/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View, validate and create the StorePulse configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  Data:\n")
		fmt.Printf("    Directory:      %s\n", cfg.Data.Directory)
		for name, file := range cfg.Data.Tables {
			fmt.Printf("    %-15s %s\n", name+":", file)
		}
		fmt.Println()
		fmt.Printf("  Ingestion:\n")
		fmt.Printf("    Max Attempts:   %d\n", cfg.Ingestion.MaxAttempts)
		fmt.Printf("    Backoff:        %s\n", cfg.Ingestion.Backoff)
		fmt.Println()
		fmt.Printf("  Cleaning:\n")
		fmt.Printf("    Dedup Key:      %s\n", strings.Join(cfg.Cleaning.DedupKey, ", "))
		fmt.Printf("    Store Aliases:  %s\n", strings.Join(cfg.Cleaning.StoreKeyAliases, ", "))
		fmt.Printf("    Placeholder:    %s\n", cfg.Cleaning.PlaceholderStoreID)
		fmt.Println()
		fmt.Printf("  SCD:\n")
		fmt.Printf("    Key:            %s\n", cfg.SCD.KeyColumn)
		fmt.Printf("    Tracked:        %s\n", strings.Join(cfg.SCD.TrackedAttributes, ", "))
		fmt.Printf("    Effective:      %s\n", cfg.SCD.EffectiveColumn)
		fmt.Println()
		fmt.Printf("  Aggregation:\n")
		fmt.Printf("    Critical Stock: %d\n", cfg.Aggregation.CriticalStockThreshold)
		fmt.Printf("    Workers:        %d\n", cfg.Aggregation.Workers)
		fmt.Printf("    Max Basket:     %d\n", cfg.Aggregation.MaxBasketSize)
		fmt.Println()
		fmt.Printf("  Export:\n")
		fmt.Printf("    Enabled:        %t\n", cfg.Export.Enabled)
		fmt.Printf("    Directory:      %s\n", cfg.Export.Directory)
		if cfg.Export.S3Bucket != "" {
			fmt.Printf("    S3:             s3://%s/%s\n", cfg.Export.S3Bucket, cfg.Export.S3Prefix)
		}
		fmt.Println()
		fmt.Printf("  Publish:\n")
		fmt.Printf("    Postgres:       %s\n", maskSecret(cfg.Publish.Postgres.DSN))
		fmt.Printf("    MongoDB:        %s\n", maskSecret(cfg.Publish.MongoDB.ConnectionString))
		fmt.Println()
		fmt.Printf("  Logging:          %s (%s) -> %s\n", cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Directory)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Println("Configuration is valid.")
		return nil
	},
}

var initForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with every default filled in",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.ExpandHome(config.DefaultPath)
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg := config.Default()
		if dataDir != "" {
			cfg.Data.Directory = dataDir
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
