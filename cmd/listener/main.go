// File: cmd/listener/main.go
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/smartdevs17/symbiotic-listener/internal/config"
)

// AppVersion contains the application version
const AppVersion = "0.1.0"

// loadConfig loads the config file and applies positional arguments and flags
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.ApplyArgs(args); err != nil {
		return nil, err
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Logging.Level = f.Value.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// CLI Commands

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "symbiotic-listener <port> <database_name> <channel>",
		Short: "Log PostgreSQL notifications to a table",
		Long: `Subscribes to one PostgreSQL LISTEN/NOTIFY channel on 127.0.0.1 and appends
every payload to symbiotic.log. Exits after logging the payload "shutdown".`,
		Version:      AppVersion,
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE:         runListener,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate <port> <database_name> <channel>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(3),
		RunE:  validateConfig,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("symbiotic-listener %s\n", AppVersion)
		},
	})
	rootCmd.AddCommand(configCmd)

	return rootCmd
}

// runListener is the main command to run the listener
func runListener(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return app.Run(context.Background())
}

// validateConfig prints the effective configuration
func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Println("Configuration is valid!")
	cmd.Printf("Database: %s\n", cfg.Database.DSN())
	cmd.Printf("Channel: %s\n", cfg.Listener.Channel)
	cmd.Printf("Policy: %s\n", cfg.Listener.Policy)
	cmd.Printf("Notification timeout: %s\n", cfg.Listener.NotificationTimeout)
	cmd.Printf("Log table: %s (%s)\n", cfg.Storage.Table, cfg.Storage.Type)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
