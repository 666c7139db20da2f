package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

type ReanalyzeDocumentUseCase struct {
	store    ports.DocumentStore
	storage  ports.ObjectStorage
	analyzer ports.DocumentAnalyzer
}

func NewReanalyzeDocumentUseCase(
	store ports.DocumentStore,
	storage ports.ObjectStorage,
	analyzer ports.DocumentAnalyzer,
) *ReanalyzeDocumentUseCase {
	return &ReanalyzeDocumentUseCase{
		store:    store,
		storage:  storage,
		analyzer: analyzer,
	}
}

// ReanalyzeByID runs the full pipeline for a stored document, excluding
// the document from its own candidate set, and replaces its analysis
// fields in one write.
func (uc *ReanalyzeDocumentUseCase) ReanalyzeByID(ctx context.Context, documentID string, options domain.AnalysisOptions) (*domain.AnalysisResult, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	data, err := uc.readBytes(ctx, doc)
	if err != nil {
		return nil, err
	}

	// Personal uploads have no company to compare against.
	if options.DuplicateScope == domain.ScopeCompany && doc.CompanyID == "" {
		options.DuplicateScope = domain.ScopeUser
	}

	result, err := uc.analyzer.AnalyzeDocument(ctx, domain.AnalysisRequest{
		FileBytes: data,
		FileMeta: domain.FileMeta{
			OriginalName: doc.OriginalName,
			MimeType:     doc.MimeType,
			Size:         doc.Size,
		},
		DeclaredContext:   doc.DeclaredContext,
		Identity:          domain.Identity{CompanyID: doc.CompanyID, UserID: doc.UploadedBy},
		Options:           options,
		ExcludeDocumentID: doc.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze stored document: %w", err)
	}

	if err := uc.persist(ctx, doc.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *ReanalyzeDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.StoredDocument, error) {
	doc, err := uc.store.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ReanalyzeDocumentUseCase) readBytes(ctx context.Context, doc *domain.StoredDocument) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorageUnavailable, "open stored file", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorageUnavailable, "read stored file", err)
	}
	return data, nil
}

func (uc *ReanalyzeDocumentUseCase) persist(ctx context.Context, documentID string, result *domain.AnalysisResult) error {
	fields := domain.AnalysisFields{
		ContentAnalysis:   result.ContentAnalysis,
		DuplicateAnalysis: result.DuplicateAnalysis,
		RecommendedAction: result.RecommendedAction,
		AnalyzedAt:        result.AnalysisTimestamp,
	}
	if rel := result.RelevanceAnalysis; rel != nil && !rel.Degraded {
		score := rel.OverallScore
		fields.RelevanceScore = &score
	}
	if err := uc.store.PersistAnalysis(ctx, documentID, fields); err != nil {
		return domain.WrapError(domain.ErrStorageUnavailable, "persist analysis", err)
	}
	return nil
}
