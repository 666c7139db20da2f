package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// DocumentStore persists stored documents and serves candidate queries.
// Implementations must be safe for concurrent reads.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.StoredDocument) error
	GetByID(ctx context.Context, id string) (*domain.StoredDocument, error)
	FindCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.StoredDocument, error)
	// PersistAnalysis replaces every analysis field in one statement.
	PersistAnalysis(ctx context.Context, id string, fields domain.AnalysisFields) error
}

// ObjectStorage stores original file bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes re-analysis requests.
type MessageQueue interface {
	PublishReanalysisRequested(ctx context.Context, documentID string) error
	SubscribeReanalysisRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// ContentAnalyzer is the opaque external extraction service. It may fail
// or time out; callers treat both as "no content signal".
type ContentAnalyzer interface {
	Analyze(ctx context.Context, fileBytes []byte, mimeType string) (*domain.ContentAnalysis, error)
}

// TextExtractor pulls a text layer out of raw bytes.
type TextExtractor interface {
	Extract(ctx context.Context, fileBytes []byte, mimeType string) (string, error)
}

// ContentCache memoizes analyzer output by content key.
type ContentCache interface {
	Get(ctx context.Context, key string) (*domain.ContentAnalysis, bool, error)
	Set(ctx context.Context, key string, analysis *domain.ContentAnalysis, ttl time.Duration) error
}

// Hasher computes the fingerprints of a byte sequence.
type Hasher interface {
	Hash(fileBytes []byte, mimeType string) (domain.Fingerprints, error)
}

// AnalysisObserver receives pipeline telemetry. Implementations must not block.
type AnalysisObserver interface {
	ObserveAnalysis(mode domain.AnalysisMode, action domain.Action, duration time.Duration)
	ObserveDegradedStage(stage string)
	ObserveDuplicateMatch(matchType domain.MatchType)
}
