package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
)

const serviceName = "docintel-cli"

var (
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docintel",
	Short: "Document intelligence: duplicate, relevance and content checks",
	Long: `docintel inspects documents before or after upload.

Commands:
  hash     Print the checksum and perceptual hash of a file
  analyze  Run the full analysis pipeline against the configured store
  mcp      Serve the analysis tools over MCP stdio

Configuration is read from the same environment variables as the API.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

func initConfig() {
	cfg = config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

// Logs go to stderr so stdout stays clean for results and MCP frames.
func initLogger() {
	slog.SetDefault(logging.NewStderrJSONLogger(serviceName, cfg.LogLevel))
}
