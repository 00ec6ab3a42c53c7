package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentdesk/internal/config"
	"agentdesk/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	apiURL     string
	timeout    time.Duration

	// Loaded once in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentdesk",
	Short: "agentdesk - terminal client for the company research agents",
	Long: `agentdesk lets you pick two companies, write an instruction and hand it to
the remote research, product and marketing agents. Replies are collected into
a single transcript; generated PDF reports are downloaded automatically.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if apiURL != "" {
			loaded.API.BaseURL = apiURL
		}
		if timeout > 0 {
			loaded.API.Timeout = timeout.String()
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		// The TUI owns the terminal; it only logs to a file.
		interactive := cmd == cmd.Root()
		logger, err = logging.New(cfg.Logging, interactive)
		if err != nil {
			return err
		}
		logging.For(logger, logging.CategoryBoot).Debug("Configuration loaded",
			zap.String("path", path),
			zap.String("base_url", cfg.API.BaseURL),
			zap.String("download_mode", cfg.Download.Mode))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Agent service base URL (or set AGENTDESK_API_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default from config, 30s)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(chooseCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
