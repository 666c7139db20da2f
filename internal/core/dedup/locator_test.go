package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type candidateStoreFake struct {
	docs       []domain.StoredDocument
	err        error
	lastFilter domain.CandidateFilter
	filters    []domain.CandidateFilter
}

func (f *candidateStoreFake) Create(context.Context, *domain.StoredDocument) error {
	return errors.New("not implemented")
}

func (f *candidateStoreFake) GetByID(context.Context, string) (*domain.StoredDocument, error) {
	return nil, errors.New("not implemented")
}

func (f *candidateStoreFake) FindCandidates(_ context.Context, filter domain.CandidateFilter) ([]domain.StoredDocument, error) {
	f.lastFilter = filter
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	if filter.Limit > 0 && len(f.docs) > filter.Limit {
		return f.docs[:filter.Limit], nil
	}
	return f.docs, nil
}

func (f *candidateStoreFake) PersistAnalysis(context.Context, string, domain.AnalysisFields) error {
	return errors.New("not implemented")
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func candidateIDs(docs []domain.StoredDocument) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestLocatorOneDayToleranceWindow(t *testing.T) {
	store := &candidateStoreFake{docs: []domain.StoredDocument{
		{ID: "old", CompanyID: "c1", CreatedAt: fixedNow.Add(-48 * time.Hour)},
		{ID: "recent", CompanyID: "c1", CreatedAt: fixedNow.Add(-12 * time.Hour)},
	}}
	locator := NewCandidateLocator(store, fixedClock, 0)

	docs, err := locator.FindCandidates(context.Background(), CandidateQuery{
		Scope:         domain.ScopeCompany,
		Identity:      domain.Identity{CompanyID: "c1", UserID: "u1"},
		ToleranceDays: 1,
	})
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	ids := candidateIDs(docs)
	if len(ids) != 1 || ids[0] != "recent" {
		t.Fatalf("expected only recent candidate, got %v", ids)
	}
	if !store.lastFilter.CreatedAfter.Equal(fixedNow.Add(-24 * time.Hour)) {
		t.Fatalf("expected cutoff anchored on now, got %s", store.lastFilter.CreatedAfter)
	}
	if store.lastFilter.Limit != DefaultMaxCandidates {
		t.Fatalf("expected default limit, got %d", store.lastFilter.Limit)
	}
}

func TestLocatorScopeIsExclusive(t *testing.T) {
	store := &candidateStoreFake{docs: []domain.StoredDocument{
		{ID: "mine", CompanyID: "c1", UploadedBy: "u1", CreatedAt: fixedNow},
		{ID: "colleague", CompanyID: "c1", UploadedBy: "u2", CreatedAt: fixedNow},
	}}
	locator := NewCandidateLocator(store, fixedClock, 10)
	identity := domain.Identity{CompanyID: "c1", UserID: "u1"}

	docs, err := locator.FindCandidates(context.Background(), CandidateQuery{
		Scope: domain.ScopeUser, Identity: identity, ToleranceDays: 30,
	})
	if err != nil {
		t.Fatalf("FindCandidates(user) error = %v", err)
	}
	if ids := candidateIDs(docs); len(ids) != 1 || ids[0] != "mine" {
		t.Fatalf("expected user scope to keep only own uploads, got %v", ids)
	}
	if store.lastFilter.CompanyID != "" || store.lastFilter.UploadedBy != "u1" {
		t.Fatalf("expected user-only filter, got %+v", store.lastFilter)
	}

	docs, err = locator.FindCandidates(context.Background(), CandidateQuery{
		Scope: domain.ScopeCompany, Identity: identity, ToleranceDays: 30,
	})
	if err != nil {
		t.Fatalf("FindCandidates(company) error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected company scope to keep both, got %v", candidateIDs(docs))
	}
	if store.lastFilter.UploadedBy != "" || store.lastFilter.CompanyID != "c1" {
		t.Fatalf("expected company-only filter, got %+v", store.lastFilter)
	}
}

func TestLocatorArchivedAndExcluded(t *testing.T) {
	store := &candidateStoreFake{docs: []domain.StoredDocument{
		{ID: "self", CompanyID: "c1", CreatedAt: fixedNow},
		{ID: "archived", CompanyID: "c1", IsDeleted: true, CreatedAt: fixedNow},
		{ID: "live", CompanyID: "c1", CreatedAt: fixedNow},
	}}
	locator := NewCandidateLocator(store, fixedClock, 10)
	query := CandidateQuery{
		Scope:         domain.ScopeCompany,
		Identity:      domain.Identity{CompanyID: "c1"},
		ExcludeID:     "self",
		ToleranceDays: 7,
	}

	docs, err := locator.FindCandidates(context.Background(), query)
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	if ids := candidateIDs(docs); len(ids) != 1 || ids[0] != "live" {
		t.Fatalf("expected only live candidate, got %v", ids)
	}

	query.IncludeArchived = true
	docs, err = locator.FindCandidates(context.Background(), query)
	if err != nil {
		t.Fatalf("FindCandidates(include archived) error = %v", err)
	}
	if ids := candidateIDs(docs); len(ids) != 2 {
		t.Fatalf("expected archived candidate to be included, got %v", ids)
	}
}

func TestLocatorStoreFailureIsStorageUnavailable(t *testing.T) {
	locator := NewCandidateLocator(&candidateStoreFake{err: errors.New("connection refused")}, fixedClock, 10)

	_, err := locator.FindCandidates(context.Background(), CandidateQuery{
		Scope: domain.ScopeCompany, Identity: domain.Identity{CompanyID: "c1"}, ToleranceDays: 30,
	})
	if !domain.IsKind(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestLocatorRejectsInvalidQuery(t *testing.T) {
	locator := NewCandidateLocator(&candidateStoreFake{}, fixedClock, 10)
	cases := []CandidateQuery{
		{Scope: domain.ScopeCompany, Identity: domain.Identity{CompanyID: "c1"}, ToleranceDays: 0},
		{Scope: domain.ScopeCompany, Identity: domain.Identity{CompanyID: "c1"}, ToleranceDays: 366},
		{Scope: domain.ScopeCompany, Identity: domain.Identity{UserID: "u1"}, ToleranceDays: 5},
		{Scope: domain.ScopeUser, Identity: domain.Identity{CompanyID: "c1"}, ToleranceDays: 5},
		{Scope: "team", Identity: domain.Identity{CompanyID: "c1"}, ToleranceDays: 5},
	}
	for i, q := range cases {
		if _, err := locator.FindCandidates(context.Background(), q); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
}

func TestLocatorExactLookupIgnoresCandidateLimit(t *testing.T) {
	store := &candidateStoreFake{docs: []domain.StoredDocument{
		{ID: "new-1", CompanyID: "c1", Checksum: "other", CreatedAt: fixedNow},
		{ID: "new-2", CompanyID: "c1", Checksum: "abc", CreatedAt: fixedNow.Add(-time.Hour)},
		{ID: "old-exact", CompanyID: "c1", Checksum: "abc", CreatedAt: fixedNow.Add(-72 * time.Hour)},
	}}
	locator := NewCandidateLocator(store, fixedClock, 2)

	docs, err := locator.FindCandidates(context.Background(), CandidateQuery{
		Scope:         domain.ScopeCompany,
		Identity:      domain.Identity{CompanyID: "c1"},
		ToleranceDays: 30,
		Checksum:      "abc",
	})
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	ids := candidateIDs(docs)
	want := []string{"new-1", "new-2", "old-exact"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	if len(store.filters) != 2 {
		t.Fatalf("expected window and exact lookups, got %d", len(store.filters))
	}
	exact := store.filters[1]
	if exact.Checksum != "abc" || exact.Limit != 0 || exact.CompanyID != "c1" {
		t.Fatalf("unexpected exact filter %+v", exact)
	}
	if !exact.CreatedAfter.Equal(store.filters[0].CreatedAfter) {
		t.Fatalf("expected exact lookup to keep the tolerance window")
	}
}

func TestLocatorWithoutChecksumRunsOneQuery(t *testing.T) {
	store := &candidateStoreFake{}
	locator := NewCandidateLocator(store, fixedClock, 0)
	if _, err := locator.FindCandidates(context.Background(), CandidateQuery{
		Scope:         domain.ScopeUser,
		Identity:      domain.Identity{UserID: "u1"},
		ToleranceDays: 30,
	}); err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	if len(store.filters) != 1 || store.filters[0].Checksum != "" {
		t.Fatalf("expected a single window query, got %+v", store.filters)
	}
}
