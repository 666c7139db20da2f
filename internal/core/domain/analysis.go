package domain

import (
	"strings"
	"time"
)

type EntityType string

const (
	EntityPersonName    EntityType = "person_name"
	EntityCompanyName   EntityType = "company_name"
	EntityVendorName    EntityType = "vendor_name"
	EntityEmail         EntityType = "email"
	EntityPhone         EntityType = "phone"
	EntityAddress       EntityType = "address"
	EntityWebsite       EntityType = "website"
	EntityJobTitle      EntityType = "job_title"
	EntityTotalAmount   EntityType = "total_amount"
	EntityTaxAmount     EntityType = "tax_amount"
	EntityLineItem      EntityType = "line_item"
	EntityDate          EntityType = "date"
	EntityInvoiceNumber EntityType = "invoice_number"
	EntityDueDate       EntityType = "due_date"
	EntityPaymentTerms  EntityType = "payment_terms"
	EntityContractParty EntityType = "contract_party"
	EntitySignature     EntityType = "signature"
	EntityTaxID         EntityType = "tax_id"
)

var AllEntityTypes = []EntityType{
	EntityPersonName, EntityCompanyName, EntityVendorName, EntityEmail, EntityPhone, EntityAddress,
	EntityWebsite, EntityJobTitle, EntityTotalAmount, EntityTaxAmount, EntityLineItem, EntityDate,
	EntityInvoiceNumber, EntityDueDate, EntityPaymentTerms, EntityContractParty, EntitySignature, EntityTaxID,
}

func (t EntityType) Valid() bool {
	for _, known := range AllEntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Entity is one extracted business value with the analyzer's confidence.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
}

// ContentAnalysis is the opaque analyzer output the core consumes.
type ContentAnalysis struct {
	RawText    string   `json:"raw_text"`
	Entities   []Entity `json:"entities"`
	Confidence float64  `json:"confidence"`
	Provider   string   `json:"provider,omitempty"`
}

// Presence returns the highest confidence among entities of the given type,
// or zero when none were extracted.
func (c *ContentAnalysis) Presence(t EntityType) float64 {
	if c == nil {
		return 0
	}
	best := 0.0
	for _, e := range c.Entities {
		if e.Type == t && e.Confidence > best {
			best = e.Confidence
		}
	}
	return best
}

// ValuesOf returns the non-empty values extracted for a type.
func (c *ContentAnalysis) ValuesOf(t EntityType) []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, e := range c.Entities {
		if e.Type == t && strings.TrimSpace(e.Value) != "" {
			out = append(out, e.Value)
		}
	}
	return out
}

type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchVisual  MatchType = "visual"
	MatchContent MatchType = "content"
)

type DuplicateMatch struct {
	CandidateID        string    `json:"candidate_id"`
	MatchType          MatchType `json:"match_type"`
	Confidence         float64   `json:"confidence"`
	CandidateName      string    `json:"candidate_name,omitempty"`
	CandidateCreatedAt time.Time `json:"candidate_created_at"`
}

// DuplicateAnalysis is the matcher output for one input. Matches are sorted
// by descending confidence with at most one entry per candidate.
type DuplicateAnalysis struct {
	Matches            []DuplicateMatch `json:"matches"`
	CandidatesCompared int              `json:"candidates_compared"`
	Scope              DuplicateScope   `json:"scope"`
	ToleranceDays      int              `json:"tolerance_days"`
	VisualChecked      bool             `json:"visual_checked"`
	ContentChecked     bool             `json:"content_checked"`
}

func (d *DuplicateAnalysis) HasMatches() bool {
	return d != nil && len(d.Matches) > 0
}

// Top returns the highest-confidence match.
func (d *DuplicateAnalysis) Top() (DuplicateMatch, bool) {
	if !d.HasMatches() {
		return DuplicateMatch{}, false
	}
	return d.Matches[0], true
}

func (d *DuplicateAnalysis) HighestConfidence() float64 {
	top, ok := d.Top()
	if !ok {
		return 0
	}
	return top.Confidence
}

func (d *DuplicateAnalysis) FirstOfType(t MatchType) (DuplicateMatch, bool) {
	if d == nil {
		return DuplicateMatch{}, false
	}
	for _, m := range d.Matches {
		if m.MatchType == t {
			return m, true
		}
	}
	return DuplicateMatch{}, false
}

type MismatchWarning struct {
	Code             string          `json:"code"`
	Message          string          `json:"message"`
	EntityType       EntityType      `json:"entity_type,omitempty"`
	SuggestedContext DocumentContext `json:"suggested_context,omitempty"`
}

const (
	MismatchMissingExpected = "missing_expected_entity"
	MismatchForeignContext  = "foreign_context_dominant"
	MismatchMetadata        = "metadata_mismatch"
)

type RelevanceAnalysis struct {
	OverallScore     float64           `json:"overall_score"`
	DeclaredContext  DocumentContext   `json:"declared_context"`
	MismatchWarnings []MismatchWarning `json:"mismatch_warnings"`
	// Degraded is set when no content could be inspected and OverallScore
	// is the neutral default.
	Degraded         bool            `json:"degraded"`
	SuggestedContext DocumentContext `json:"suggested_context,omitempty"`
	Basis            string          `json:"basis"`
}

const (
	RelevanceBasisContent  = "content"
	RelevanceBasisMetadata = "metadata"
	RelevanceBasisNeutral  = "neutral"
)

type Action string

const (
	ActionAccept Action = "accept"
	ActionWarn   Action = "warn"
	ActionReject Action = "reject"
)

type WarningKind string

const (
	WarningDuplicate WarningKind = "duplicate"
	WarningRelevance WarningKind = "relevance"
	WarningContent   WarningKind = "content"
	WarningAnalysis  WarningKind = "analysis"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Warning struct {
	Kind              WarningKind `json:"kind"`
	Severity          Severity    `json:"severity"`
	Message           string      `json:"message"`
	Actionable        bool        `json:"actionable"`
	RelatedDocumentID string      `json:"related_document_id,omitempty"`
}

type AnalysisMode string

const (
	ModeFull  AnalysisMode = "full"
	ModeQuick AnalysisMode = "quick"
)

// AnalysisResult is built once per call and never mutated afterwards.
type AnalysisResult struct {
	OverallScore      float64            `json:"overall_score"`
	RecommendedAction Action             `json:"recommended_action"`
	Warnings          []Warning          `json:"warnings"`
	Suggestions       []string           `json:"suggestions"`
	Checksum          string             `json:"checksum"`
	ContentAnalysis   *ContentAnalysis   `json:"content_analysis"`
	DuplicateAnalysis *DuplicateAnalysis `json:"duplicate_analysis"`
	RelevanceAnalysis *RelevanceAnalysis `json:"relevance_analysis"`
	PerceptualHash    *string            `json:"perceptual_hash"`
	ProcessingTimeMs  int64              `json:"processing_time_ms"`
	AnalysisTimestamp time.Time          `json:"analysis_timestamp"`
	Mode              AnalysisMode       `json:"mode"`
}

// BatchDuplicateResult is the per-document outcome of a batch duplicate
// check. Error is set instead of Duplicates when that document failed.
type BatchDuplicateResult struct {
	DocumentID string             `json:"document_id"`
	Duplicates *DuplicateAnalysis `json:"duplicates,omitempty"`
	Error      string             `json:"error,omitempty"`
}
