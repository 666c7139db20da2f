package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

var (
	analyzeContext  string
	analyzeMime     string
	analyzeCompany  string
	analyzeUser     string
	analyzeScope    string
	analyzeDays     int
	analyzeQuick    bool
	analyzeArchived bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a file against the configured document store",
	Long: `Run duplicate detection, content analysis and relevance scoring for a
local file. The result is printed as JSON. Nothing is stored.

Examples:
  docintel analyze receipt.jpg --context receipt --company acme --user u1
  docintel analyze card.png --context business_card --user u1 --scope user
  docintel analyze invoice.pdf --context invoice --company acme --user u1 --quick`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.StringVar(&analyzeContext, "context", "", "Declared document context, e.g. invoice or receipt")
	f.StringVar(&analyzeMime, "mime", "", "Mime type; sniffed from content when empty")
	f.StringVar(&analyzeCompany, "company", "", "Company id used for company-scoped duplicate search")
	f.StringVar(&analyzeUser, "user", "", "User id of the uploader")
	f.StringVar(&analyzeScope, "scope", string(domain.ScopeCompany), "Duplicate scope: company or user")
	f.IntVar(&analyzeDays, "tolerance-days", domain.DefaultTemporalToleranceDays, "Only compare against documents this many days old")
	f.BoolVar(&analyzeQuick, "quick", false, "Run the lightweight pre-upload check only")
	f.BoolVar(&analyzeArchived, "include-archived", false, "Also compare against archived documents")
	_ = analyzeCmd.MarkFlagRequired("context")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	declared, err := domain.ParseDocumentContext(analyzeContext)
	if err != nil {
		return err
	}
	options := domain.DefaultAnalysisOptions()
	options.DuplicateScope = domain.DuplicateScope(analyzeScope)
	options.TemporalToleranceDays = analyzeDays
	options.IncludeArchived = analyzeArchived
	if err := options.Validate(); err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{SkipQueue: true})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	meta := domain.FileMeta{
		OriginalName: filepath.Base(args[0]),
		MimeType:     analyzeMime,
		Size:         int64(len(data)),
	}
	identity := domain.Identity{CompanyID: analyzeCompany, UserID: analyzeUser}

	var result *domain.AnalysisResult
	if analyzeQuick {
		result, err = app.AnalyzeUC.QuickAnalysis(ctx, data, meta, declared, identity)
	} else {
		result, err = app.AnalyzeUC.AnalyzeDocument(ctx, domain.AnalysisRequest{
			FileBytes:       data,
			FileMeta:        meta,
			DeclaredContext: declared,
			Identity:        identity,
			Options:         options,
		})
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
