package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

// CandidateQuery describes one candidate lookup.
type CandidateQuery struct {
	Scope           domain.DuplicateScope
	Identity        domain.Identity
	ExcludeID       string
	IncludeArchived bool
	ToleranceDays   int
	// Checksum adds an uncapped lookup of byte-identical documents so an
	// exact duplicate is never lost behind the candidate limit.
	Checksum string
}

// CandidateLocator resolves scoped, time-bounded candidate sets.
type CandidateLocator struct {
	store         ports.DocumentStore
	now           func() time.Time
	maxCandidates int
}

func NewCandidateLocator(store ports.DocumentStore, now func() time.Time, maxCandidates int) *CandidateLocator {
	if now == nil {
		now = time.Now
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &CandidateLocator{store: store, now: now, maxCandidates: maxCandidates}
}

// Cutoff returns the oldest creation time still inside the window. The
// window is anchored on the current time, never on the document's own.
func (l *CandidateLocator) Cutoff(toleranceDays int) time.Time {
	return l.now().UTC().Add(-time.Duration(toleranceDays) * 24 * time.Hour)
}

func (l *CandidateLocator) FindCandidates(ctx context.Context, q CandidateQuery) ([]domain.StoredDocument, error) {
	filter, err := l.filterFor(q)
	if err != nil {
		return nil, err
	}

	out, err := l.query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if q.Checksum == "" {
		return out, nil
	}

	exactFilter := filter
	exactFilter.Checksum = q.Checksum
	exactFilter.Limit = 0
	exact, err := l.query(ctx, exactFilter)
	if err != nil {
		return nil, err
	}
	return mergeCandidates(out, exact), nil
}

func (l *CandidateLocator) query(ctx context.Context, filter domain.CandidateFilter) ([]domain.StoredDocument, error) {
	docs, err := l.store.FindCandidates(ctx, filter)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrStorageUnavailable, "find duplicate candidates", err)
	}

	out := make([]domain.StoredDocument, 0, len(docs))
	for _, doc := range docs {
		if eligible(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// mergeCandidates appends the extra documents not already in base.
func mergeCandidates(base, extra []domain.StoredDocument) []domain.StoredDocument {
	seen := make(map[string]struct{}, len(base))
	for _, doc := range base {
		seen[doc.ID] = struct{}{}
	}
	for _, doc := range extra {
		if _, ok := seen[doc.ID]; ok {
			continue
		}
		seen[doc.ID] = struct{}{}
		base = append(base, doc)
	}
	return base
}

func (l *CandidateLocator) filterFor(q CandidateQuery) (domain.CandidateFilter, error) {
	const op = "build candidate filter"
	if q.ToleranceDays < domain.MinTemporalToleranceDays || q.ToleranceDays > domain.MaxTemporalToleranceDays {
		return domain.CandidateFilter{}, domain.WrapError(domain.ErrInvalidInput, op,
			errors.New("temporal tolerance days out of range"))
	}

	filter := domain.CandidateFilter{
		ExcludeID:       q.ExcludeID,
		IncludeArchived: q.IncludeArchived,
		CreatedAfter:    l.Cutoff(q.ToleranceDays),
		Limit:           l.maxCandidates,
	}
	switch q.Scope {
	case domain.ScopeCompany:
		if q.Identity.CompanyID == "" {
			return domain.CandidateFilter{}, domain.WrapError(domain.ErrInvalidInput, op, errors.New("company id is required"))
		}
		filter.CompanyID = q.Identity.CompanyID
	case domain.ScopeUser:
		if q.Identity.UserID == "" {
			return domain.CandidateFilter{}, domain.WrapError(domain.ErrInvalidInput, op, errors.New("user id is required"))
		}
		filter.UploadedBy = q.Identity.UserID
	default:
		return domain.CandidateFilter{}, domain.WrapError(domain.ErrInvalidInput, op, errors.New("unknown duplicate scope"))
	}
	return filter, nil
}

// eligible re-checks the filter in memory so every backend yields the
// same candidate set.
func eligible(doc domain.StoredDocument, f domain.CandidateFilter) bool {
	if f.ExcludeID != "" && doc.ID == f.ExcludeID {
		return false
	}
	if f.Checksum != "" && doc.Checksum != f.Checksum {
		return false
	}
	if doc.IsDeleted && !f.IncludeArchived {
		return false
	}
	if doc.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if f.CompanyID != "" && doc.CompanyID != f.CompanyID {
		return false
	}
	if f.UploadedBy != "" && doc.UploadedBy != f.UploadedBy {
		return false
	}
	return true
}
