package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

var errNotConfigured = errors.New("operation is not configured")

func notConfigured(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotImplemented, errorResponse{Error: errNotConfigured.Error()})
}

func (rt *Router) quickAnalysis(w http.ResponseWriter, r *http.Request) {
	if rt.services.Analyzer == nil {
		notConfigured(w)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := rt.parseUpload(w, r, true)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.services.Analyzer.QuickAnalysis(r.Context(), form.fileBytes, form.meta, form.declared, identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	if rt.services.Analyzer == nil {
		notConfigured(w)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := rt.parseUpload(w, r, true)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.services.Analyzer.AnalyzeDocument(r.Context(), domain.AnalysisRequest{
		FileBytes:       form.fileBytes,
		FileMeta:        form.meta,
		DeclaredContext: form.declared,
		Identity:        identity,
		Options:         form.options.apply(rt.defaultOptions()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) storeDocument(w http.ResponseWriter, r *http.Request) {
	if rt.services.Ingestor == nil {
		notConfigured(w)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	form, err := rt.parseUpload(w, r, false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := rt.services.Ingestor.Store(r.Context(), domain.StoreRequest{
		FileBytes:       form.fileBytes,
		FileMeta:        form.meta,
		DeclaredContext: form.declared,
		Identity:        identity,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reader == nil {
		notConfigured(w)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.loadOwned(r, identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) reanalyzeDocument(w http.ResponseWriter, r *http.Request) {
	if rt.services.Reanalyzer == nil || rt.services.Reader == nil {
		notConfigured(w)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var opts optionsPayload
	if err := decodeOptionalJSON(r, &opts); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.loadOwned(r, identity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.services.Reanalyzer.ReanalyzeByID(r.Context(), doc.ID, opts.apply(rt.defaultOptions()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchDuplicatesRequest struct {
	DocumentIDs []string        `json:"document_ids"`
	Options     *optionsPayload `json:"options"`
}

type batchDuplicatesResponse struct {
	Results []domain.BatchDuplicateResult `json:"results"`
}

func (rt *Router) detectDuplicates(w http.ResponseWriter, r *http.Request) {
	if rt.services.Duplicates == nil {
		notConfigured(w)
		return
	}
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req batchDuplicatesRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	results, err := rt.services.Duplicates.DetectDuplicatesAcross(r.Context(), identity, req.DocumentIDs, req.Options.apply(rt.defaultOptions()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchDuplicatesResponse{Results: results})
}

// loadOwned hides documents of other companies behind a 404.
func (rt *Router) loadOwned(r *http.Request, identity domain.Identity) (*domain.StoredDocument, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return nil, invalidRequest("document id is required")
	}
	doc, err := rt.services.Reader.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !doc.OwnedBy(identity) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id="+id))
	}
	return doc, nil
}
