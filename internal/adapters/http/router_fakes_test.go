package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type analyzerFake struct {
	err         error
	lastRequest domain.AnalysisRequest
	lastQuick   domain.FileMeta
	lastID      domain.Identity
}

func (f *analyzerFake) QuickAnalysis(_ context.Context, fileBytes []byte, meta domain.FileMeta, declared domain.DocumentContext, identity domain.Identity) (*domain.AnalysisResult, error) {
	f.lastQuick = meta
	f.lastID = identity
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalysisResult{RecommendedAction: domain.ActionAccept, Mode: domain.ModeQuick, Checksum: "abc"}, nil
}

func (f *analyzerFake) AnalyzeDocument(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AnalysisResult{RecommendedAction: domain.ActionWarn, Mode: domain.ModeFull}, nil
}

type duplicatesFake struct {
	identity domain.Identity
	ids      []string
	options domain.AnalysisOptions
	err     error
}

func (f *duplicatesFake) DetectDuplicatesAcross(_ context.Context, identity domain.Identity, ids []string, options domain.AnalysisOptions) ([]domain.BatchDuplicateResult, error) {
	f.identity = identity
	f.ids = ids
	f.options = options
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.BatchDuplicateResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.BatchDuplicateResult{DocumentID: id, Duplicates: &domain.DuplicateAnalysis{Matches: []domain.DuplicateMatch{}}})
	}
	return out, nil
}

type ingestorFake struct {
	err  error
	last domain.StoreRequest
}

func (f *ingestorFake) Store(_ context.Context, req domain.StoreRequest) (*domain.StoredDocument, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StoredDocument{
		ID:              "doc-1",
		CompanyID:       req.Identity.CompanyID,
		UploadedBy:      req.Identity.UserID,
		OriginalName:    req.FileMeta.OriginalName,
		DeclaredContext: req.DeclaredContext,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

type readerFake struct {
	docs map[string]*domain.StoredDocument
}

func (f readerFake) GetByID(_ context.Context, id string) (*domain.StoredDocument, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id="+id))
	}
	return doc, nil
}

type reanalyzerFake struct {
	id      string
	options domain.AnalysisOptions
}

func (f *reanalyzerFake) ReanalyzeByID(_ context.Context, id string, options domain.AnalysisOptions) (*domain.AnalysisResult, error) {
	f.id = id
	f.options = options
	return &domain.AnalysisResult{RecommendedAction: domain.ActionAccept, Mode: domain.ModeFull}, nil
}

type testDeps struct {
	analyzer   *analyzerFake
	duplicates *duplicatesFake
	ingestor   *ingestorFake
	reanalyzer *reanalyzerFake
}

func newTestHandler(cfg config.Config) (http.Handler, *testDeps) {
	deps := &testDeps{
		analyzer:   &analyzerFake{},
		duplicates: &duplicatesFake{},
		ingestor:   &ingestorFake{},
		reanalyzer: &reanalyzerFake{},
	}
	reader := readerFake{docs: map[string]*domain.StoredDocument{
		"doc-1":   {ID: "doc-1", CompanyID: "c1", UploadedBy: "u1"},
		"foreign": {ID: "foreign", CompanyID: "c2", UploadedBy: "u9"},
	}}
	handler := NewRouter(cfg, Services{
		Analyzer:   deps.analyzer,
		Duplicates: deps.duplicates,
		Ingestor:   deps.ingestor,
		Reader:     reader,
		Reanalyzer: deps.reanalyzer,
	}, nil).Handler()
	return handler, deps
}

func multipartRequest(t *testing.T, path string, fields map[string]string, filename string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(body); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(companyIDHeader, "c1")
	req.Header.Set(userIDHeader, "u1")
	return req
}
