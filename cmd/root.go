package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mspro-labs/coffee-prices/internal/config"
	"mspro-labs/coffee-prices/internal/logging"
)

var (
	configPath string
	logLevel   string
	engine     string
)

var rootCmd = &cobra.Command{
	Use:   "coffee-prices",
	Short: "Scrapes the Coffee Board of India daily raw coffee prices",
	Long: `Downloads the Coffee Board of India daily market report through a headless
browser, extracts the Karnataka raw coffee price ranges and publishes them as JSON.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "site config file (default $CONFIG_PATH or config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", "", "browser engine: rod or chromedp (default $BROWSER_ENGINE or rod)")
}

// setup resolves env config with flag overrides and builds the logger. Logs
// go to the command's stderr so stdout carries only command output.
func setup(cmd *cobra.Command) (config.AppConfig, *slog.Logger, error) {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	if configPath != "" {
		appCfg.ConfigPath = configPath
	}
	if logLevel != "" {
		appCfg.LogLevel = logLevel
	}
	if engine != "" {
		appCfg.Engine = engine
	}
	return appCfg, logging.NewWithWriter(cmd.ErrOrStderr(), appCfg.LogLevel), nil
}
