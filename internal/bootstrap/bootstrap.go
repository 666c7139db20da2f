package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/dedup"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/fingerprint"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/core/relevance"
	"github.com/kirillkom/document-intelligence/internal/core/usecase"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/analyzer/rules"
	rediscache "github.com/kirillkom/document-intelligence/internal/infrastructure/cache/redis"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/repository/memory"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/storage/s3"
)

// Options tune wiring per binary.
type Options struct {
	Observer ports.AnalysisObserver
	// OnBreakerStateChange is forwarded to every resilience executor.
	OnBreakerStateChange func(operation, state string)
	// SkipQueue leaves Queue, IngestUC nil; used by the CLI.
	SkipQueue bool
}

type App struct {
	Config config.Config

	Store   ports.DocumentStore
	Storage ports.ObjectStorage
	Queue   *nats.Queue

	AnalyzeUC    *usecase.AnalyzeDocumentUseCase
	IngestUC     *usecase.IngestDocumentUseCase
	ReanalyzeUC  *usecase.ReanalyzeDocumentUseCase
	DuplicatesUC *usecase.DetectDuplicatesUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	executor := resilience.NewExecutor(resilienceConfig(cfg, opts.OnBreakerStateChange))

	store, err := app.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	storage, err := openStorage(ctx, cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.Storage = storage

	if !opts.SkipQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			HandlerTimeout:     cfg.ReanalysisTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closers = append(app.closers, queue.Close)
	}

	contentAnalyzer, err := app.buildContentAnalyzer(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}

	scorer, err := buildScorer(cfg.RelevanceProfiles)
	if err != nil {
		return nil, err
	}

	hasher := fingerprint.NewHasher()
	locator := dedup.NewCandidateLocator(store, time.Now, cfg.MaxCandidates)

	app.AnalyzeUC = usecase.NewAnalyzeDocumentUseCase(hasher, locator, contentAnalyzer, scorer, opts.Observer, usecase.AnalysisSettings{
		ContentTimeout:     cfg.ContentTimeout,
		QuickScope:         domain.DuplicateScope(cfg.DefaultScope),
		QuickToleranceDays: cfg.DefaultToleranceDay,
	})
	app.ReanalyzeUC = usecase.NewReanalyzeDocumentUseCase(store, storage, app.AnalyzeUC)
	app.DuplicatesUC = usecase.NewDetectDuplicatesUseCase(store, locator, cfg.BatchConcurrency)
	if app.Queue != nil {
		app.IngestUC = usecase.NewIngestDocumentUseCase(store, storage, app.Queue, hasher)
	}

	slog.Info("bootstrap_completed",
		"store_backend", cfg.StoreBackend,
		"storage_backend", cfg.StorageBackend,
		"analyzer_provider", cfg.AnalyzerProvider,
		"content_cache", cfg.RedisURL != "",
		"queue", app.Queue != nil,
	)
	return app, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (ports.DocumentStore, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "memory":
		return memory.NewDocumentRepository(), nil
	case "", "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewDocumentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ObjectStorage, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case "", "localfs":
		return localfs.New(cfg.StoragePath)
	case "s3":
		storage, err := s3.New(s3.Config{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UseSSL:          cfg.S3UseSSL,
		}, executor)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) buildContentAnalyzer(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ContentAnalyzer, error) {
	textExtractor := newExtractor(cfg)

	var analyzer ports.ContentAnalyzer
	switch strings.ToLower(cfg.AnalyzerProvider) {
	case "", rules.ProviderName:
		analyzer = rules.NewAnalyzer(textExtractor)
	case ollama.ProviderName:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
			VisionModel:        cfg.OllamaVisionModel,
			ResilienceExecutor: executor,
		})
		analyzer = ollama.NewAnalyzer(client, textExtractor)
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.AnalyzerProvider)
	}

	if strings.TrimSpace(cfg.RedisURL) == "" {
		return analyzer, nil
	}
	client, err := rediscache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("init content cache: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return rediscache.NewCachingAnalyzer(analyzer, rediscache.NewContentCache(client), cfg.ContentCacheTTL, contentCacheKey(cfg.AnalyzerProvider)), nil
}

func newExtractor(cfg config.Config) *extractor.Mux {
	return extractor.NewMux(map[domain.MimeFamily]ports.TextExtractor{
		domain.FamilyText:        plaintext.NewExtractor(),
		domain.FamilyPDF:         pdf.NewExtractor(cfg.PDFMaxPages),
		domain.FamilySpreadsheet: spreadsheet.NewExtractor(cfg.SpreadsheetMaxRows),
		domain.FamilyWordDoc:     docx.NewExtractor(),
	})
}

// contentCacheKey scopes cache entries by provider so switching analyzers
// never serves the other provider's output.
func contentCacheKey(provider string) func([]byte, string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = rules.ProviderName
	}
	return func(fileBytes []byte, mimeType string) string {
		return provider + ":" + fingerprint.Checksum(fileBytes) + ":" + mimeType
	}
}

func buildScorer(profilesPath string) (*relevance.Scorer, error) {
	if strings.TrimSpace(profilesPath) == "" {
		return relevance.NewScorer(nil), nil
	}
	profiles, err := relevance.LoadProfiles(profilesPath)
	if err != nil {
		return nil, err
	}
	return relevance.NewScorer(profiles), nil
}

func resilienceConfig(cfg config.Config, onStateChange func(operation, state string)) resilience.Config {
	rc := resilience.DefaultConfig()
	if cfg.RetryMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	}
	rc.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerOpenTimeout > 0 {
		rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	}
	rc.OnStateChange = onStateChange
	return rc
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
