package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// optionsPayload overlays caller choices on domain.DefaultAnalysisOptions.
type optionsPayload struct {
	EnableDuplicateDetection *bool   `json:"enable_duplicate_detection"`
	EnableRelevanceAnalysis  *bool   `json:"enable_relevance_analysis"`
	EnableContentAnalysis    *bool   `json:"enable_content_analysis"`
	DuplicateScope           *string `json:"duplicate_scope"`
	TemporalToleranceDays    *int    `json:"temporal_tolerance_days"`
	StrictRelevance          *bool   `json:"strict_relevance"`
	IncludeArchived          *bool   `json:"include_archived"`
}

func (p *optionsPayload) apply(base domain.AnalysisOptions) domain.AnalysisOptions {
	if p == nil {
		return base
	}
	out := base
	if p.EnableDuplicateDetection != nil {
		out.EnableDuplicateDetection = *p.EnableDuplicateDetection
	}
	if p.EnableRelevanceAnalysis != nil {
		out.EnableRelevanceAnalysis = *p.EnableRelevanceAnalysis
	}
	if p.EnableContentAnalysis != nil {
		out.EnableContentAnalysis = *p.EnableContentAnalysis
	}
	if p.DuplicateScope != nil {
		out.DuplicateScope = domain.DuplicateScope(strings.ToLower(strings.TrimSpace(*p.DuplicateScope)))
	}
	if p.TemporalToleranceDays != nil {
		out.TemporalToleranceDays = *p.TemporalToleranceDays
	}
	if p.StrictRelevance != nil {
		out.StrictRelevance = *p.StrictRelevance
	}
	if p.IncludeArchived != nil {
		out.IncludeArchived = *p.IncludeArchived
	}
	return out
}

func (rt *Router) defaultOptions() domain.AnalysisOptions {
	opts := domain.DefaultAnalysisOptions()
	if rt.cfg.DefaultToleranceDay > 0 {
		opts.TemporalToleranceDays = rt.cfg.DefaultToleranceDay
	}
	if scope := domain.DuplicateScope(rt.cfg.DefaultScope); scope.Valid() {
		opts.DuplicateScope = scope
	}
	return opts
}

func identityFromRequest(r *http.Request) (domain.Identity, error) {
	identity := domain.Identity{
		CompanyID: strings.TrimSpace(r.Header.Get(companyIDHeader)),
		UserID:    strings.TrimSpace(r.Header.Get(userIDHeader)),
	}
	if identity.CompanyID == "" && identity.UserID == "" {
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "read identity",
			fmt.Errorf("%s or %s header is required", companyIDHeader, userIDHeader))
	}
	return identity, nil
}

// uploadForm is a parsed multipart upload.
type uploadForm struct {
	fileBytes []byte
	meta      domain.FileMeta
	declared  domain.DocumentContext
	options   *optionsPayload
}

func (rt *Router) parseUpload(w http.ResponseWriter, r *http.Request, requireContext bool) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, invalidRequest("upload exceeds %d bytes", rt.cfg.MaxUploadBytes)
		}
		return nil, invalidRequest("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, invalidRequest("multipart field 'file' is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, invalidRequest("read upload: %v", err)
	}

	mimeType := strings.TrimSpace(r.FormValue("mime_type"))
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	form := &uploadForm{
		fileBytes: data,
		meta: domain.FileMeta{
			OriginalName: header.Filename,
			MimeType:     mimeType,
			Size:         header.Size,
		},
	}

	rawContext := strings.TrimSpace(r.FormValue("declared_context"))
	switch {
	case rawContext != "":
		declared, err := domain.ParseDocumentContext(rawContext)
		if err != nil {
			return nil, err
		}
		form.declared = declared
	case requireContext:
		return nil, invalidRequest("declared_context is required")
	default:
		form.declared = domain.ContextGenericBusiness
	}

	if raw := strings.TrimSpace(r.FormValue("options")); raw != "" {
		var opts optionsPayload
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return nil, invalidRequest("options must be a JSON object: %v", err)
		}
		form.options = &opts
	}
	return form, nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return invalidRequest("invalid json: %v", err)
}

func invalidRequest(format string, args ...any) error {
	return domain.WrapError(domain.ErrInvalidInput, "parse request", fmt.Errorf(format, args...))
}
