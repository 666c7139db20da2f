package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func seed(t *testing.T, repo *DocumentRepository, docs ...domain.StoredDocument) {
	t.Helper()
	for i := range docs {
		if err := repo.Create(context.Background(), &docs[i]); err != nil {
			t.Fatalf("Create(%s) error = %v", docs[i].ID, err)
		}
	}
}

func TestFindCandidatesFiltersAndOrders(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := NewDocumentRepository()
	seed(t, repo,
		domain.StoredDocument{ID: "old", CompanyID: "c1", UploadedBy: "u1", CreatedAt: now.Add(-40 * 24 * time.Hour)},
		domain.StoredDocument{ID: "b", CompanyID: "c1", UploadedBy: "u2", CreatedAt: now.Add(-time.Hour)},
		domain.StoredDocument{ID: "a", CompanyID: "c1", UploadedBy: "u1", CreatedAt: now.Add(-time.Hour)},
		domain.StoredDocument{ID: "newest", CompanyID: "c1", UploadedBy: "u1", CreatedAt: now},
		domain.StoredDocument{ID: "self", CompanyID: "c1", UploadedBy: "u1", CreatedAt: now},
		domain.StoredDocument{ID: "archived", CompanyID: "c1", UploadedBy: "u1", CreatedAt: now, IsDeleted: true},
		domain.StoredDocument{ID: "other", CompanyID: "c2", UploadedBy: "u1", CreatedAt: now},
	)

	got, err := repo.FindCandidates(context.Background(), domain.CandidateFilter{
		CompanyID:    "c1",
		ExcludeID:    "self",
		CreatedAfter: now.Add(-30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	ids := make([]string, 0, len(got))
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	want := []string{"newest", "a", "b"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestFindCandidatesUserScopeArchivedAndLimit(t *testing.T) {
	now := time.Now()
	repo := NewDocumentRepository()
	seed(t, repo,
		domain.StoredDocument{ID: "mine", CompanyID: "c1", UploadedBy: "u1", CreatedAt: now},
		domain.StoredDocument{ID: "archived", CompanyID: "c1", UploadedBy: "u1", CreatedAt: now.Add(-time.Minute), IsDeleted: true},
		domain.StoredDocument{ID: "colleague", CompanyID: "c1", UploadedBy: "u2", CreatedAt: now},
	)

	got, err := repo.FindCandidates(context.Background(), domain.CandidateFilter{
		UploadedBy:      "u1",
		IncludeArchived: true,
		CreatedAfter:    now.Add(-time.Hour),
		Limit:           1,
	})
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "mine" {
		t.Fatalf("expected only newest own doc, got %+v", got)
	}

	if _, err := repo.FindCandidates(context.Background(), domain.CandidateFilter{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without owner, got %v", err)
	}
}

func TestFindCandidatesByChecksum(t *testing.T) {
	now := time.Now()
	repo := NewDocumentRepository()
	seed(t, repo,
		domain.StoredDocument{ID: "same", CompanyID: "c1", Checksum: "abc", CreatedAt: now.Add(-48 * time.Hour)},
		domain.StoredDocument{ID: "newer", CompanyID: "c1", Checksum: "xyz", CreatedAt: now},
		domain.StoredDocument{ID: "foreign", CompanyID: "c2", Checksum: "abc", CreatedAt: now},
	)

	got, err := repo.FindCandidates(context.Background(), domain.CandidateFilter{
		CompanyID:    "c1",
		Checksum:     "abc",
		CreatedAfter: now.Add(-72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "same" {
		t.Fatalf("expected only the checksum-equal company document, got %+v", got)
	}
}

func TestPersistAnalysisReplacesAllFields(t *testing.T) {
	repo := NewDocumentRepository()
	score := 0.9
	seed(t, repo, domain.StoredDocument{
		ID:              "doc",
		CompanyID:       "c1",
		ContentAnalysis: &domain.ContentAnalysis{RawText: "old"},
		RelevanceScore:  &score,
	})

	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	err := repo.PersistAnalysis(context.Background(), "doc", domain.AnalysisFields{
		DuplicateAnalysis: &domain.DuplicateAnalysis{Matches: []domain.DuplicateMatch{}},
		RecommendedAction: domain.ActionWarn,
		AnalyzedAt:        at,
	})
	if err != nil {
		t.Fatalf("PersistAnalysis() error = %v", err)
	}

	doc, err := repo.GetByID(context.Background(), "doc")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.ContentAnalysis != nil || doc.RelevanceScore != nil {
		t.Fatalf("expected nil fields to overwrite previous values, got %+v", doc)
	}
	if doc.RecommendedAction != domain.ActionWarn || doc.AnalyzedAt == nil || !doc.AnalyzedAt.Equal(at) {
		t.Fatalf("unexpected analysis fields %+v", doc)
	}

	if err := repo.PersistAnalysis(context.Background(), "missing", domain.AnalysisFields{}); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReturnedDocumentsDoNotAliasStore(t *testing.T) {
	repo := NewDocumentRepository()
	seed(t, repo, domain.StoredDocument{
		ID:              "doc",
		CompanyID:       "c1",
		ContentAnalysis: &domain.ContentAnalysis{Entities: []domain.Entity{{Type: domain.EntityEmail, Value: "a@b.c"}}},
	})

	doc, _ := repo.GetByID(context.Background(), "doc")
	doc.ContentAnalysis.Entities[0].Value = "changed"

	again, _ := repo.GetByID(context.Background(), "doc")
	if again.ContentAnalysis.Entities[0].Value != "a@b.c" {
		t.Fatalf("expected stored entity to be unchanged")
	}
}

func TestArchiveAndNotFound(t *testing.T) {
	repo := NewDocumentRepository()
	seed(t, repo, domain.StoredDocument{ID: "doc", CompanyID: "c1"})

	if err := repo.Archive("doc"); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	doc, _ := repo.GetByID(context.Background(), "doc")
	if !doc.IsDeleted {
		t.Fatalf("expected archived document")
	}
	if _, err := repo.GetByID(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Create(context.Background(), &domain.StoredDocument{ID: "doc"}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}
