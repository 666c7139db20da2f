package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/document-intelligence/internal/adapters/mcp"
	"github.com/kirillkom/document-intelligence/internal/bootstrap"
)

var mcpVersion = "dev"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the MCP server over stdio. It provides three tools:
  - quick_analysis: pre-upload duplicate and relevance check of a file
  - detect_duplicates: duplicate report for up to 20 stored documents
  - get_document: stored document with its last analysis

Example:
  docintel mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{SkipQueue: true})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	server := mcpadapter.NewServer(mcpadapter.Config{Name: "docintel", Version: mcpVersion}, mcpadapter.Services{
		Analyzer:   app.AnalyzeUC,
		Duplicates: app.DuplicatesUC,
		Reader:     app.Store,
	})

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
