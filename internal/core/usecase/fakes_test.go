package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/dedup"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/fingerprint"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/core/relevance"
)

type storeFake struct {
	mu         sync.Mutex
	docs       map[string]domain.StoredDocument
	order      []string
	findErr    error
	createErr  error
	persistErr error
	persisted  map[string]domain.AnalysisFields
}

func newStoreFake(docs ...domain.StoredDocument) *storeFake {
	f := &storeFake{docs: map[string]domain.StoredDocument{}, persisted: map[string]domain.AnalysisFields{}}
	for _, d := range docs {
		f.docs[d.ID] = d
		f.order = append(f.order, d.ID)
	}
	return f
}

func (f *storeFake) Create(_ context.Context, doc *domain.StoredDocument) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = *doc
	f.order = append(f.order, doc.ID)
	return nil
}

func (f *storeFake) GetByID(_ context.Context, id string) (*domain.StoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return &doc, nil
}

func (f *storeFake) FindCandidates(context.Context, domain.CandidateFilter) ([]domain.StoredDocument, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.StoredDocument, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.docs[id])
	}
	return out, nil
}

func (f *storeFake) PersistAnalysis(_ context.Context, id string, fields domain.AnalysisFields) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted[id] = fields
	return nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishReanalysisRequested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeReanalysisRequested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type analyzerFake struct {
	mu      sync.Mutex
	content *domain.ContentAnalysis
	err     error
	block   bool
	calls   int
}

func (f *analyzerFake) Analyze(ctx context.Context, _ []byte, _ string) (*domain.ContentAnalysis, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.content
	copied.Entities = append([]domain.Entity(nil), f.content.Entities...)
	return &copied, nil
}

func (f *analyzerFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type observerFake struct {
	mu       sync.Mutex
	actions  []domain.Action
	degraded []string
	matches  []domain.MatchType
}

func (f *observerFake) ObserveAnalysis(_ domain.AnalysisMode, action domain.Action, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
}

func (f *observerFake) ObserveDegradedStage(stage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degraded = append(f.degraded, stage)
}

func (f *observerFake) ObserveDuplicateMatch(matchType domain.MatchType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, matchType)
}

func newAnalyzeUseCase(store *storeFake, analyzer *analyzerFake, observer *observerFake, settings AnalysisSettings) *AnalyzeDocumentUseCase {
	locator := dedup.NewCandidateLocator(store, nil, 100)
	var contentAnalyzer ports.ContentAnalyzer
	if analyzer != nil {
		contentAnalyzer = analyzer
	}
	var obs ports.AnalysisObserver
	if observer != nil {
		obs = observer
	}
	return NewAnalyzeDocumentUseCase(fingerprint.NewHasher(), locator, contentAnalyzer, relevance.NewScorer(nil), obs, settings)
}

var testIdentity = domain.Identity{CompanyID: "company-1", UserID: "user-1"}

func invoiceContent() *domain.ContentAnalysis {
	return &domain.ContentAnalysis{
		RawText:    "ACME Supplies\nInvoice INV-2026-001\nTotal 120.00\nDue 2026-04-01",
		Confidence: 0.9,
		Provider:   "fake",
		Entities: []domain.Entity{
			{Type: domain.EntityVendorName, Value: "ACME Supplies", Confidence: 0.9},
			{Type: domain.EntityInvoiceNumber, Value: "INV-2026-001", Confidence: 0.95},
			{Type: domain.EntityTotalAmount, Value: "120.00", Confidence: 0.9},
			{Type: domain.EntityDueDate, Value: "2026-04-01", Confidence: 0.8},
			{Type: domain.EntityDate, Value: "2026-03-01", Confidence: 0.8},
		},
	}
}

func businessCardContent() *domain.ContentAnalysis {
	return &domain.ContentAnalysis{
		RawText:    "Jane Doe\nHead of Procurement\nAcme Ltd\njane@acme.test\n+1 555 010 9999",
		Confidence: 0.9,
		Provider:   "fake",
		Entities: []domain.Entity{
			{Type: domain.EntityPersonName, Value: "Jane Doe", Confidence: 0.9},
			{Type: domain.EntityJobTitle, Value: "Head of Procurement", Confidence: 0.9},
			{Type: domain.EntityCompanyName, Value: "Acme Ltd", Confidence: 0.9},
			{Type: domain.EntityEmail, Value: "jane@acme.test", Confidence: 0.95},
			{Type: domain.EntityPhone, Value: "+1 555 010 9999", Confidence: 0.9},
		},
	}
}

func textRequest(body string, declared domain.DocumentContext, opts domain.AnalysisOptions) domain.AnalysisRequest {
	return domain.AnalysisRequest{
		FileBytes:       []byte(body),
		FileMeta:        domain.FileMeta{OriginalName: "upload.txt", MimeType: "text/plain"},
		DeclaredContext: declared,
		Identity:        testIdentity,
		Options:         opts,
	}
}
