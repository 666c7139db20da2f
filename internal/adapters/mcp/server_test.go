package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type analyzerFake struct {
	data     []byte
	meta     domain.FileMeta
	declared domain.DocumentContext
	identity domain.Identity
}

func (f *analyzerFake) QuickAnalysis(_ context.Context, data []byte, meta domain.FileMeta, declared domain.DocumentContext, identity domain.Identity) (*domain.AnalysisResult, error) {
	f.data, f.meta, f.declared, f.identity = data, meta, declared, identity
	return &domain.AnalysisResult{RecommendedAction: domain.ActionAccept, Mode: domain.ModeQuick}, nil
}

func (f *analyzerFake) AnalyzeDocument(context.Context, domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	return nil, errors.New("not used")
}

type duplicatesFake struct {
	identity domain.Identity
	ids      []string
	options  domain.AnalysisOptions
}

func (f *duplicatesFake) DetectDuplicatesAcross(_ context.Context, identity domain.Identity, ids []string, options domain.AnalysisOptions) ([]domain.BatchDuplicateResult, error) {
	f.identity, f.ids, f.options = identity, ids, options
	return []domain.BatchDuplicateResult{{DocumentID: ids[0], Error: "document not found"}}, nil
}

type readerFake struct{}

func (readerFake) GetByID(_ context.Context, id string) (*domain.StoredDocument, error) {
	if id != "doc-1" {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id="+id))
	}
	return &domain.StoredDocument{ID: "doc-1", CompanyID: "c1", UploadedBy: "u1", OriginalName: "a.pdf"}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	return text.Text
}

func newTestServer() (*Server, *analyzerFake, *duplicatesFake) {
	analyzer := &analyzerFake{}
	duplicates := &duplicatesFake{}
	s := NewServer(Config{}, Services{Analyzer: analyzer, Duplicates: duplicates, Reader: readerFake{}})
	return s, analyzer, duplicates
}

func TestServerCreation(t *testing.T) {
	s, _, _ := newTestServer()
	if s.mcpServer == nil {
		t.Fatal("mcpServer should not be nil")
	}
}

func TestQuickAnalysisFromPath(t *testing.T) {
	s, analyzer, _ := newTestServer()
	path := filepath.Join(t.TempDir(), "receipt.txt")
	if err := os.WriteFile(path, []byte("Total 5.00"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	res, err := s.quickAnalysisHandler(context.Background(), callRequest("quick_analysis", map[string]any{
		"path":             path,
		"declared_context": "expense_receipt",
		"company_id":       "c1",
	}))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Mode != domain.ModeQuick {
		t.Fatalf("unexpected result %+v", result)
	}
	if analyzer.meta.OriginalName != "receipt.txt" || analyzer.meta.Size != 10 || analyzer.identity.CompanyID != "c1" {
		t.Fatalf("unexpected analyzer input meta=%+v identity=%+v", analyzer.meta, analyzer.identity)
	}
}

func TestQuickAnalysisFromBase64(t *testing.T) {
	s, analyzer, _ := newTestServer()
	res, _ := s.quickAnalysisHandler(context.Background(), callRequest("quick_analysis", map[string]any{
		"content_base64":   base64.StdEncoding.EncodeToString([]byte("hello")),
		"filename":         "note.txt",
		"declared_context": "generic_business",
		"user_id":          "u1",
	}))
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if string(analyzer.data) != "hello" || analyzer.declared != domain.ContextGenericBusiness {
		t.Fatalf("unexpected analyzer input %q %q", analyzer.data, analyzer.declared)
	}
}

func TestQuickAnalysisRejectsBadInput(t *testing.T) {
	s, _, _ := newTestServer()
	cases := []map[string]any{
		{"declared_context": "poem", "content_base64": "aGk=", "filename": "a.txt"},
		{"declared_context": "invoice"},
		{"declared_context": "invoice", "content_base64": "aGk="},
		{"declared_context": "invoice", "path": filepath.Join(t.TempDir(), "missing.pdf")},
	}
	for _, args := range cases {
		res, err := s.quickAnalysisHandler(context.Background(), callRequest("quick_analysis", args))
		if err != nil {
			t.Fatalf("handler error = %v", err)
		}
		if !res.IsError {
			t.Fatalf("expected tool error for %v", args)
		}
	}
}

func TestDetectDuplicatesTool(t *testing.T) {
	s, _, duplicates := newTestServer()
	res, _ := s.detectDuplicatesHandler(context.Background(), callRequest("detect_duplicates", map[string]any{
		"document_ids":            []any{"a", "b"},
		"temporal_tolerance_days": 7,
		"duplicate_scope":         "User",
		"company_id":              "c1",
	}))
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if len(duplicates.ids) != 2 || duplicates.options.TemporalToleranceDays != 7 || duplicates.options.DuplicateScope != domain.ScopeUser {
		t.Fatalf("unexpected call ids=%v options=%+v", duplicates.ids, duplicates.options)
	}
	if duplicates.identity.CompanyID != "c1" {
		t.Fatalf("expected caller identity to reach the detector, got %+v", duplicates.identity)
	}
	if !strings.Contains(resultText(t, res), "document not found") {
		t.Fatalf("expected per-document error in result")
	}

	res, _ = s.detectDuplicatesHandler(context.Background(), callRequest("detect_duplicates", map[string]any{}))
	if !res.IsError {
		t.Fatalf("expected error without ids")
	}

	res, _ = s.detectDuplicatesHandler(context.Background(), callRequest("detect_duplicates", map[string]any{"document_ids": []any{"a"}}))
	if !res.IsError || !strings.Contains(resultText(t, res), "company_id or user_id") {
		t.Fatalf("expected error without caller identity")
	}
}

func TestGetDocumentTool(t *testing.T) {
	s, _, _ := newTestServer()
	res, _ := s.getDocumentHandler(context.Background(), callRequest("get_document", map[string]any{"id": "doc-1", "company_id": "c1"}))
	if res.IsError || !strings.Contains(resultText(t, res), `"original_name":"a.pdf"`) {
		t.Fatalf("unexpected result %+v", res)
	}

	res, _ = s.getDocumentHandler(context.Background(), callRequest("get_document", map[string]any{"id": "nope", "company_id": "c1"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "document not found") {
		t.Fatalf("expected not found tool error")
	}
}

func TestGetDocumentToolHidesOtherCompanyDocuments(t *testing.T) {
	s, _, _ := newTestServer()
	res, _ := s.getDocumentHandler(context.Background(), callRequest("get_document", map[string]any{"id": "doc-1", "company_id": "c2"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "document not found") {
		t.Fatalf("expected foreign document to be reported as not found")
	}
	if strings.Contains(resultText(t, res), "a.pdf") {
		t.Fatalf("foreign document data leaked: %s", resultText(t, res))
	}

	res, _ = s.getDocumentHandler(context.Background(), callRequest("get_document", map[string]any{"id": "doc-1", "user_id": "u1"}))
	if res.IsError {
		t.Fatalf("expected uploader to read own document: %s", resultText(t, res))
	}

	res, _ = s.getDocumentHandler(context.Background(), callRequest("get_document", map[string]any{"id": "doc-1"}))
	if !res.IsError {
		t.Fatalf("expected error without caller identity")
	}
}
