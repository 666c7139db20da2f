package domain

// DuplicateScope selects whose documents a duplicate check compares against.
type DuplicateScope string

const (
	ScopeCompany DuplicateScope = "company"
	ScopeUser    DuplicateScope = "user"
)

func (s DuplicateScope) Valid() bool {
	return s == ScopeCompany || s == ScopeUser
}

const (
	DefaultTemporalToleranceDays = 30
	MinTemporalToleranceDays     = 1
	MaxTemporalToleranceDays     = 365
)

// AnalysisOptions controls which pipeline stages run and how strictly.
// Every field has an explicit default in DefaultAnalysisOptions.
type AnalysisOptions struct {
	EnableDuplicateDetection bool           `json:"enable_duplicate_detection"`
	EnableRelevanceAnalysis  bool           `json:"enable_relevance_analysis"`
	EnableContentAnalysis    bool           `json:"enable_content_analysis"`
	DuplicateScope           DuplicateScope `json:"duplicate_scope"`
	TemporalToleranceDays    int            `json:"temporal_tolerance_days"`
	StrictRelevance          bool           `json:"strict_relevance"`
	IncludeArchived          bool           `json:"include_archived"`
}

func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		EnableDuplicateDetection: true,
		EnableRelevanceAnalysis:  true,
		EnableContentAnalysis:    true,
		DuplicateScope:           ScopeCompany,
		TemporalToleranceDays:    DefaultTemporalToleranceDays,
	}
}

func (o AnalysisOptions) Validate() error {
	const op = "validate analysis options"
	if !o.DuplicateScope.Valid() {
		return invalidInput(op, "unknown duplicate scope %q", o.DuplicateScope)
	}
	if o.TemporalToleranceDays < MinTemporalToleranceDays || o.TemporalToleranceDays > MaxTemporalToleranceDays {
		return invalidInput(op, "temporal tolerance days must be within %d-%d, got %d",
			MinTemporalToleranceDays, MaxTemporalToleranceDays, o.TemporalToleranceDays)
	}
	return nil
}

// AnalysisRequest is one call into the analysis pipeline.
type AnalysisRequest struct {
	FileBytes       []byte
	FileMeta        FileMeta
	DeclaredContext DocumentContext
	Identity        Identity
	Options         AnalysisOptions
	// ExcludeDocumentID removes an already stored document from its own
	// candidate set during re-analysis.
	ExcludeDocumentID string
}

// Validate checks everything except the file bytes, which the hasher owns.
func (r AnalysisRequest) Validate() error {
	if err := r.FileMeta.Validate(len(r.FileBytes)); err != nil {
		return err
	}
	if !r.DeclaredContext.Valid() {
		return invalidInput("validate analysis request", "unknown document context %q", r.DeclaredContext)
	}
	if err := r.Options.Validate(); err != nil {
		return err
	}
	if r.Options.EnableDuplicateDetection {
		if r.Options.DuplicateScope == ScopeCompany && r.Identity.CompanyID == "" {
			return invalidInput("validate analysis request", "company id is required for company scope")
		}
		if r.Options.DuplicateScope == ScopeUser && r.Identity.UserID == "" {
			return invalidInput("validate analysis request", "user id is required for user scope")
		}
	}
	return nil
}

const MaxBatchDocuments = 20
