package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-intelligence/internal/core/dedup"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

type DetectDuplicatesUseCase struct {
	store       ports.DocumentStore
	locator     *dedup.CandidateLocator
	matcher     *dedup.Matcher
	concurrency int
}

func NewDetectDuplicatesUseCase(store ports.DocumentStore, locator *dedup.CandidateLocator, concurrency int) *DetectDuplicatesUseCase {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &DetectDuplicatesUseCase{
		store:       store,
		locator:     locator,
		matcher:     dedup.NewMatcher(dedup.FullRules),
		concurrency: concurrency,
	}
}

// DetectDuplicatesAcross checks each stored document against its own
// owner's candidates. A failure on one document is reported in its entry
// and never aborts the others. Documents the caller does not own are
// reported as not found.
func (uc *DetectDuplicatesUseCase) DetectDuplicatesAcross(
	ctx context.Context,
	identity domain.Identity,
	documentIDs []string,
	options domain.AnalysisOptions,
) ([]domain.BatchDuplicateResult, error) {
	const op = "detect duplicates across"
	if identity.CompanyID == "" && identity.UserID == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, op, errors.New("caller identity is required"))
	}
	ids := dedupeIDs(documentIDs)
	if len(ids) < 1 || len(ids) > domain.MaxBatchDocuments {
		return nil, domain.WrapError(domain.ErrInvalidInput, op,
			fmt.Errorf("batch size must be within 1-%d, got %d", domain.MaxBatchDocuments, len(ids)))
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "analysis.batch_duplicates")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(ids)))

	results := make([]domain.BatchDuplicateResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = uc.checkOne(gctx, identity, id, options)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (uc *DetectDuplicatesUseCase) checkOne(ctx context.Context, identity domain.Identity, id string, options domain.AnalysisOptions) domain.BatchDuplicateResult {
	result := domain.BatchDuplicateResult{DocumentID: id}

	doc, err := uc.store.GetByID(ctx, id)
	if err == nil && !doc.OwnedBy(identity) {
		err = domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	if err != nil {
		result.Error = fmt.Sprintf("fetch document: %v", err)
		return result
	}

	scope := options.DuplicateScope
	if scope == domain.ScopeCompany && doc.CompanyID == "" {
		scope = domain.ScopeUser
	}

	candidates, err := uc.locator.FindCandidates(ctx, dedup.CandidateQuery{
		Scope:           scope,
		Identity:        domain.Identity{CompanyID: doc.CompanyID, UserID: doc.UploadedBy},
		ExcludeID:       doc.ID,
		IncludeArchived: options.IncludeArchived,
		ToleranceDays:   options.TemporalToleranceDays,
		Checksum:        doc.Checksum,
	})
	if err != nil {
		result.Error = fmt.Sprintf("find candidates: %v", err)
		return result
	}

	subject := dedup.Subject{Fingerprints: doc.Fingerprints(), Content: doc.ContentAnalysis}
	result.Duplicates = &domain.DuplicateAnalysis{
		Matches:            uc.matcher.Match(subject, candidates),
		CandidatesCompared: len(candidates),
		Scope:              scope,
		ToleranceDays:      options.TemporalToleranceDays,
		VisualChecked:      doc.HasPerceptualHash(),
		ContentChecked:     doc.ContentAnalysis != nil,
	}
	return result
}
