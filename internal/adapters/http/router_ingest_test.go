package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/dedup"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/usecase"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/repository/memory"
)

func TestHealthzEndpoint(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestStoreDocumentReturnsAccepted(t *testing.T) {
	handler, deps := newTestHandler(config.Config{})
	req := multipartRequest(t, "/v1/documents", map[string]string{"declared_context": "invoice"}, "inv.txt", []byte("Invoice 42"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var doc domain.StoredDocument
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.ID != "doc-1" || doc.OriginalName != "inv.txt" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if got := deps.ingestor.last; got.DeclaredContext != domain.ContextInvoice || string(got.FileBytes) != "Invoice 42" || got.Identity.CompanyID != "c1" {
		t.Fatalf("unexpected store request %+v", got)
	}
}

func TestStoreDocumentDefaultsToGenericContext(t *testing.T) {
	handler, deps := newTestHandler(config.Config{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/documents", nil, "a.txt", []byte("x")))

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if deps.ingestor.last.DeclaredContext != domain.ContextGenericBusiness {
		t.Fatalf("expected generic business context, got %q", deps.ingestor.last.DeclaredContext)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/documents", map[string]string{"declared_context": "invoice"}, "", nil))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	handler, _ := newTestHandler(config.Config{MaxUploadBytes: 16})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/documents", nil, "a.txt", bytes.Repeat([]byte("x"), 1024)))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQuickAnalysisPassesIdentityAndMeta(t *testing.T) {
	handler, deps := newTestHandler(config.Config{})
	req := multipartRequest(t, "/v1/analysis/quick", map[string]string{
		"declared_context": "expense_receipt",
		"mime_type":        "text/plain",
	}, "receipt.txt", []byte("Total 5.00"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if deps.analyzer.lastQuick.MimeType != "text/plain" || deps.analyzer.lastQuick.OriginalName != "receipt.txt" {
		t.Fatalf("unexpected meta %+v", deps.analyzer.lastQuick)
	}
	if deps.analyzer.lastID != (domain.Identity{CompanyID: "c1", UserID: "u1"}) {
		t.Fatalf("unexpected identity %+v", deps.analyzer.lastID)
	}
}

func TestAnalyzeDocumentAppliesOptionsOverDefaults(t *testing.T) {
	handler, deps := newTestHandler(config.Config{DefaultToleranceDay: 10, DefaultScope: "user"})
	req := multipartRequest(t, "/v1/analysis", map[string]string{
		"declared_context": "invoice",
		"options":          `{"strict_relevance":true,"enable_content_analysis":false}`,
	}, "inv.txt", []byte("Invoice"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	opts := deps.analyzer.lastRequest.Options
	if !opts.StrictRelevance || opts.EnableContentAnalysis || !opts.EnableDuplicateDetection {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.TemporalToleranceDays != 10 || opts.DuplicateScope != domain.ScopeUser {
		t.Fatalf("expected configured defaults, got %+v", opts)
	}
}

func TestAnalyzeDocumentRequiresDeclaredContext(t *testing.T) {
	handler, _ := newTestHandler(config.Config{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/analysis", nil, "a.txt", []byte("x")))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestBatchDuplicates(t *testing.T) {
	handler, deps := newTestHandler(config.Config{})
	payload, _ := json.Marshal(map[string]any{
		"document_ids": []string{"a", "b"},
		"options":      map[string]any{"temporal_tolerance_days": 7},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/duplicates/batch", bytes.NewReader(payload))
	req.Header.Set(companyIDHeader, "c1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body batchDuplicatesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Results) != 2 || deps.duplicates.options.TemporalToleranceDays != 7 {
		t.Fatalf("unexpected batch response %+v options %+v", body, deps.duplicates.options)
	}
	if deps.duplicates.identity.CompanyID != "c1" {
		t.Fatalf("expected caller identity to reach the detector, got %+v", deps.duplicates.identity)
	}
}

func TestBatchDuplicatesHidesOtherCompanyDocuments(t *testing.T) {
	repo := memory.NewDocumentRepository()
	now := time.Now().UTC()
	for _, doc := range []domain.StoredDocument{
		{ID: "a1", CompanyID: "companyA", UploadedBy: "ua", OriginalName: "secret-contract.pdf", Checksum: "same", Size: 10, CreatedAt: now.Add(-time.Hour)},
		{ID: "a2", CompanyID: "companyA", UploadedBy: "ua", OriginalName: "secret-contract.pdf", Checksum: "same", Size: 10, CreatedAt: now},
	} {
		doc := doc
		if err := repo.Create(context.Background(), &doc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	detector := usecase.NewDetectDuplicatesUseCase(repo, dedup.NewCandidateLocator(repo, nil, 0), 2)
	handler := NewRouter(config.Config{}, Services{Duplicates: detector}, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/duplicates/batch", bytes.NewReader([]byte(`{"document_ids":["a1"]}`)))
	req.Header.Set(companyIDHeader, "companyB")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	raw := res.Body.String()
	if strings.Contains(raw, "a2") || strings.Contains(raw, "secret-contract") {
		t.Fatalf("foreign candidate data leaked: %s", raw)
	}
	var body batchDuplicatesResponse
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Results) != 1 || !strings.Contains(body.Results[0].Error, "not found") {
		t.Fatalf("expected a not found entry, got %+v", body.Results)
	}
}

func TestReanalyzeOwnedDocument(t *testing.T) {
	handler, deps := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/reanalyze", bytes.NewReader([]byte(`{"include_archived":true}`)))
	req.Header.Set(companyIDHeader, "c1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if deps.reanalyzer.id != "doc-1" || !deps.reanalyzer.options.IncludeArchived {
		t.Fatalf("unexpected reanalysis call id=%s options=%+v", deps.reanalyzer.id, deps.reanalyzer.options)
	}
}
