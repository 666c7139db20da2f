package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// DocumentRepository is a process-local DocumentStore for tests, the CLI and
// single-node deployments without postgres.
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]domain.StoredDocument
	now  func() time.Time
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		docs: make(map[string]domain.StoredDocument),
		now:  time.Now,
	}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.StoredDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create document", fmt.Errorf("document id is required"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.ID]; exists {
		return fmt.Errorf("insert document: id %s already exists", doc.ID)
	}
	r.docs[doc.ID] = cloneDocument(*doc)
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.StoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	out := cloneDocument(doc)
	return &out, nil
}

func (r *DocumentRepository) FindCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.StoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filter.CompanyID == "" && filter.UploadedBy == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "find candidates", fmt.Errorf("scope owner is required"))
	}

	r.mu.RLock()
	out := make([]domain.StoredDocument, 0)
	for _, doc := range r.docs {
		if !matchesFilter(doc, filter) {
			continue
		}
		out = append(out, cloneDocument(doc))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *DocumentRepository) PersistAnalysis(ctx context.Context, id string, fields domain.AnalysisFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "persist analysis", fmt.Errorf("id=%s", id))
	}

	analyzedAt := fields.AnalyzedAt.UTC()
	doc.ContentAnalysis = cloneContent(fields.ContentAnalysis)
	doc.RelevanceScore = cloneFloat(fields.RelevanceScore)
	doc.DuplicateAnalysis = cloneDuplicates(fields.DuplicateAnalysis)
	doc.RecommendedAction = fields.RecommendedAction
	doc.AnalyzedAt = &analyzedAt
	doc.UpdatedAt = r.now().UTC()
	r.docs[id] = doc
	return nil
}

// Archive soft-deletes a document.
func (r *DocumentRepository) Archive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "archive document", fmt.Errorf("id=%s", id))
	}
	doc.IsDeleted = true
	r.docs[id] = doc
	return nil
}

func matchesFilter(doc domain.StoredDocument, filter domain.CandidateFilter) bool {
	if filter.CompanyID != "" {
		if doc.CompanyID != filter.CompanyID {
			return false
		}
	} else if doc.UploadedBy != filter.UploadedBy {
		return false
	}
	if filter.ExcludeID != "" && doc.ID == filter.ExcludeID {
		return false
	}
	if filter.Checksum != "" && doc.Checksum != filter.Checksum {
		return false
	}
	if doc.IsDeleted && !filter.IncludeArchived {
		return false
	}
	return !doc.CreatedAt.Before(filter.CreatedAfter)
}

// Stored values must not alias caller memory.
func cloneDocument(doc domain.StoredDocument) domain.StoredDocument {
	out := doc
	out.ContentAnalysis = cloneContent(doc.ContentAnalysis)
	out.RelevanceScore = cloneFloat(doc.RelevanceScore)
	out.DuplicateAnalysis = cloneDuplicates(doc.DuplicateAnalysis)
	if doc.AnalyzedAt != nil {
		v := *doc.AnalyzedAt
		out.AnalyzedAt = &v
	}
	return out
}

func cloneContent(in *domain.ContentAnalysis) *domain.ContentAnalysis {
	if in == nil {
		return nil
	}
	out := *in
	out.Entities = append([]domain.Entity(nil), in.Entities...)
	return &out
}

func cloneDuplicates(in *domain.DuplicateAnalysis) *domain.DuplicateAnalysis {
	if in == nil {
		return nil
	}
	out := *in
	out.Matches = append(make([]domain.DuplicateMatch, 0, len(in.Matches)), in.Matches...)
	return &out
}

func cloneFloat(in *float64) *float64 {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
