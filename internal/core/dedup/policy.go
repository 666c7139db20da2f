package dedup

import "github.com/kirillkom/document-intelligence/internal/core/domain"

// Matcher policy. Every duplicate threshold lives here.
const (
	ExactConfidence  = 1.0
	VisualConfidence = 0.8

	// MaxVisualDistance is the largest Hamming distance between two 64-bit
	// difference hashes still treated as the same picture.
	MaxVisualDistance = 10

	// ContentMinSharedEntities and ContentMinFraction gate a content match.
	ContentMinSharedEntities = 2
	ContentMinFraction       = 0.6
	// ContentConfidenceScale keeps content confidence strictly below
	// VisualConfidence even at full overlap.
	ContentConfidenceScale = 0.75

	DefaultMaxCandidates = 500
)

// SalientEntityTypes are the entities compared for content matches.
var SalientEntityTypes = []domain.EntityType{
	domain.EntityVendorName,
	domain.EntityCompanyName,
	domain.EntityTotalAmount,
	domain.EntityDate,
	domain.EntityInvoiceNumber,
	domain.EntityEmail,
	domain.EntityPhone,
}

// Rules selects which match rules apply. Exact always applies.
type Rules struct {
	Visual  bool
	Content bool
}

var (
	FullRules  = Rules{Visual: true, Content: true}
	QuickRules = Rules{Visual: true}
)
