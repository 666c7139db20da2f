package ports

import (
	"context"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// DocumentAnalyzer is the inbound contract for the analysis pipeline.
type DocumentAnalyzer interface {
	QuickAnalysis(ctx context.Context, fileBytes []byte, meta domain.FileMeta, declared domain.DocumentContext, identity domain.Identity) (*domain.AnalysisResult, error)
	AnalyzeDocument(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// DuplicateDetector runs duplicate checks for already stored documents.
type DuplicateDetector interface {
	DetectDuplicatesAcross(ctx context.Context, identity domain.Identity, documentIDs []string, options domain.AnalysisOptions) ([]domain.BatchDuplicateResult, error)
}

// DocumentIngestor is the inbound contract for storing uploads.
type DocumentIngestor interface {
	Store(ctx context.Context, req domain.StoreRequest) (*domain.StoredDocument, error)
}

// DocumentReader is the inbound read model for stored documents.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.StoredDocument, error)
}

// DocumentReanalyzer re-runs the full pipeline for a stored document and
// persists the outcome.
type DocumentReanalyzer interface {
	ReanalyzeByID(ctx context.Context, documentID string, options domain.AnalysisOptions) (*domain.AnalysisResult, error)
}
