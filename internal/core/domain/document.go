package domain

import "time"

// StoredDocument is a persisted file record. Everything except the
// analysis fields is immutable once created.
type StoredDocument struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	UploadedBy      string          `json:"uploaded_by"`
	OriginalName    string          `json:"original_name"`
	MimeType        string          `json:"mime_type"`
	Size            int64           `json:"size"`
	StoragePath     string          `json:"storage_path"`
	DeclaredContext DocumentContext `json:"declared_context"`

	Checksum       string `json:"checksum"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`

	ContentAnalysis   *ContentAnalysis   `json:"content_analysis,omitempty"`
	RelevanceScore    *float64           `json:"relevance_score,omitempty"`
	DuplicateAnalysis *DuplicateAnalysis `json:"duplicate_analysis,omitempty"`
	RecommendedAction Action             `json:"recommended_action,omitempty"`
	AnalyzedAt        *time.Time         `json:"analyzed_at,omitempty"`

	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d StoredDocument) HasPerceptualHash() bool {
	return d.PerceptualHash != ""
}

func (d StoredDocument) Fingerprints() Fingerprints {
	return Fingerprints{Checksum: d.Checksum, PerceptualHash: d.PerceptualHash}
}

// AnalysisFields are the re-analysis fields of a StoredDocument. They are
// always written together; a nil field overwrites the previous value.
type AnalysisFields struct {
	ContentAnalysis   *ContentAnalysis
	RelevanceScore    *float64
	DuplicateAnalysis *DuplicateAnalysis
	RecommendedAction Action
	AnalyzedAt        time.Time
}

// Fingerprints are the hasher output for one byte sequence.
type Fingerprints struct {
	Checksum       string `json:"checksum"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`
	// VisualQualityLow is set when the input is an image but too small or
	// damaged to produce a perceptual hash.
	VisualQualityLow bool `json:"-"`
}

// Identity is the caller identity supplied by the authorization layer.
type Identity struct {
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id"`
}

// OwnedBy reports whether the caller may see the document: same company
// when the caller has one, otherwise same uploader.
func (d StoredDocument) OwnedBy(identity Identity) bool {
	if identity.CompanyID != "" {
		return d.CompanyID == identity.CompanyID
	}
	return identity.UserID != "" && d.UploadedBy == identity.UserID
}

// StoreRequest describes a new upload to persist.
type StoreRequest struct {
	FileBytes       []byte
	FileMeta        FileMeta
	DeclaredContext DocumentContext
	Identity        Identity
}

// CandidateFilter is the storage-level projection of a candidate query.
// Exactly one of CompanyID or UploadedBy is set.
type CandidateFilter struct {
	CompanyID       string
	UploadedBy      string
	ExcludeID       string
	IncludeArchived bool
	CreatedAfter    time.Time
	// Checksum, when set, restricts the result to byte-identical documents.
	Checksum string
	Limit    int
}
