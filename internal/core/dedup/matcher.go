package dedup

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/fingerprint"
)

// Subject is the new document being checked.
type Subject struct {
	Fingerprints domain.Fingerprints
	Content      *domain.ContentAnalysis
}

// Matcher classifies each candidate as exact, visual, content or no match.
type Matcher struct {
	rules Rules
}

func NewMatcher(rules Rules) *Matcher {
	return &Matcher{rules: rules}
}

// Match returns at most one match per candidate, ordered by descending
// confidence, then newest candidate, then candidate id.
func (m *Matcher) Match(subject Subject, candidates []domain.StoredDocument) []domain.DuplicateMatch {
	subjectEntities := salientValues(subject.Content)
	seen := make(map[string]struct{}, len(candidates))
	matches := make([]domain.DuplicateMatch, 0)

	for _, candidate := range candidates {
		if _, ok := seen[candidate.ID]; ok {
			continue
		}
		matchType, confidence, ok := m.classify(subject, subjectEntities, candidate)
		if !ok {
			continue
		}
		seen[candidate.ID] = struct{}{}
		matches = append(matches, domain.DuplicateMatch{
			CandidateID:        candidate.ID,
			MatchType:          matchType,
			Confidence:         confidence,
			CandidateName:      candidate.OriginalName,
			CandidateCreatedAt: candidate.CreatedAt,
		})
	}

	SortMatches(matches)
	return matches
}

func (m *Matcher) classify(subject Subject, subjectEntities map[domain.EntityType]map[string]struct{}, candidate domain.StoredDocument) (domain.MatchType, float64, bool) {
	if subject.Fingerprints.Checksum != "" && subject.Fingerprints.Checksum == candidate.Checksum {
		return domain.MatchExact, ExactConfidence, true
	}
	if m.rules.Visual && VisuallyEqual(subject.Fingerprints.PerceptualHash, candidate.PerceptualHash) {
		return domain.MatchVisual, VisualConfidence, true
	}
	if m.rules.Content && subject.Content != nil && candidate.ContentAnalysis != nil {
		if confidence, ok := ContentSimilarity(subjectEntities, salientValues(candidate.ContentAnalysis)); ok {
			return domain.MatchContent, confidence, true
		}
	}
	return "", 0, false
}

// VisuallyEqual reports whether two encoded perceptual hashes are within
// MaxVisualDistance. A missing or unparsable hash is never a match.
func VisuallyEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	distance, err := fingerprint.Distance(a, b)
	if err != nil {
		return false
	}
	return distance <= MaxVisualDistance
}

// ContentSimilarity compares normalized salient entities. The denominator
// is the number of salient types present in either document.
func ContentSimilarity(a, b map[domain.EntityType]map[string]struct{}) (float64, bool) {
	present := 0
	shared := 0
	for _, t := range SalientEntityTypes {
		va, vb := a[t], b[t]
		if len(va) == 0 && len(vb) == 0 {
			continue
		}
		present++
		if intersects(va, vb) {
			shared++
		}
	}
	if present == 0 || shared < ContentMinSharedEntities {
		return 0, false
	}
	fraction := float64(shared) / float64(present)
	if fraction < ContentMinFraction {
		return 0, false
	}
	return ContentConfidenceScale * fraction, true
}

func SortMatches(matches []domain.DuplicateMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if !matches[i].CandidateCreatedAt.Equal(matches[j].CandidateCreatedAt) {
			return matches[i].CandidateCreatedAt.After(matches[j].CandidateCreatedAt)
		}
		return matches[i].CandidateID < matches[j].CandidateID
	})
}

func intersects(a, b map[string]struct{}) bool {
	for v := range a {
		if _, ok := b[v]; ok {
			return true
		}
	}
	return false
}

func salientValues(content *domain.ContentAnalysis) map[domain.EntityType]map[string]struct{} {
	out := make(map[domain.EntityType]map[string]struct{})
	if content == nil {
		return out
	}
	for _, t := range SalientEntityTypes {
		for _, raw := range content.ValuesOf(t) {
			v := NormalizeEntityValue(t, raw)
			if v == "" {
				continue
			}
			if out[t] == nil {
				out[t] = make(map[string]struct{})
			}
			out[t][v] = struct{}{}
		}
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	time.RFC3339,
}

var companySuffixes = map[string]struct{}{
	"inc": {}, "llc": {}, "ltd": {}, "corp": {}, "co": {}, "gmbh": {}, "plc": {}, "limited": {}, "corporation": {},
}

// NormalizeEntityValue maps equivalent spellings of a value onto one key.
func NormalizeEntityValue(t domain.EntityType, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	switch t {
	case domain.EntityTotalAmount, domain.EntityTaxAmount:
		return normalizeAmount(raw)
	case domain.EntityDate, domain.EntityDueDate:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts.Format("2006-01-02")
			}
		}
		return strings.ToLower(raw)
	case domain.EntityPhone:
		digits := keepRunes(raw, unicode.IsDigit)
		if len(digits) > 10 {
			digits = digits[len(digits)-10:]
		}
		return digits
	case domain.EntityEmail:
		return strings.ToLower(raw)
	case domain.EntityInvoiceNumber:
		return strings.ToUpper(keepRunes(raw, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }))
	default:
		return normalizeName(raw)
	}
}

func normalizeAmount(raw string) string {
	cleaned := keepRunes(raw, func(r rune) bool { return unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' })
	// "1.234,56" style uses comma as the decimal separator.
	if i, j := strings.LastIndex(cleaned, ","), strings.LastIndex(cleaned, "."); i > j && len(cleaned)-i == 3 {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func normalizeName(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := fields[:0]
	for _, f := range fields {
		if _, suffix := companySuffixes[f]; suffix {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func keepRunes(s string, keep func(rune) bool) string {
	var b strings.Builder
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
