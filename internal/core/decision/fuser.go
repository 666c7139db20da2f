package decision

import (
	"fmt"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// Fusion policy.
const (
	// RejectRelevanceBelow rejects in strict mode.
	RejectRelevanceBelow = 0.25
	// WarnRelevanceBelow warns regardless of strict mode. The neutral
	// relevance default equals this value and does not warn.
	WarnRelevanceBelow = 0.5
	// LowContentConfidence marks an extraction as unreliable.
	LowContentConfidence = 0.4
)

// Input carries every signal the fuser looks at. A nil sub-result means
// that stage was disabled or degraded and contributes nothing.
type Input struct {
	Duplicates       *domain.DuplicateAnalysis
	Relevance        *domain.RelevanceAnalysis
	Content          *domain.ContentAnalysis
	VisualQualityLow bool
	Options          domain.AnalysisOptions
}

type Decision struct {
	Action       domain.Action
	OverallScore float64
	Warnings     []domain.Warning
	Suggestions  []string
}

// Decide is a pure function of its input.
//
// Every relevance mismatch is surfaced as a warning. Only a dominant
// foreign context raises the action to warn on its own; a missing expected
// entity or a metadata mismatch is already priced into the relevance score
// and leaves the action to the score thresholds.
func Decide(in Input) Decision {
	var (
		reject   bool
		warn     bool
		warnings []domain.Warning
		sugg     suggestions
	)

	if exact, ok := in.Duplicates.FirstOfType(domain.MatchExact); ok {
		reject = true
		warnings = append(warnings, duplicateWarning(exact, domain.SeverityError))
		sugg.add(openExisting(exact))
	}
	for _, t := range []domain.MatchType{domain.MatchVisual, domain.MatchContent} {
		if m, ok := in.Duplicates.FirstOfType(t); ok {
			warn = true
			warnings = append(warnings, duplicateWarning(m, domain.SeverityWarning))
			sugg.add(openExisting(m))
		}
	}

	if rel := in.Relevance; rel != nil && !rel.Degraded {
		switch {
		case in.Options.StrictRelevance && rel.OverallScore < RejectRelevanceBelow:
			reject = true
			warnings = append(warnings, domain.Warning{
				Kind:       domain.WarningRelevance,
				Severity:   domain.SeverityError,
				Message:    fmt.Sprintf("content does not match declared context %s (score %.2f)", rel.DeclaredContext.Label(), rel.OverallScore),
				Actionable: true,
			})
		case rel.OverallScore < WarnRelevanceBelow:
			warn = true
			warnings = append(warnings, domain.Warning{
				Kind:       domain.WarningRelevance,
				Severity:   domain.SeverityWarning,
				Message:    fmt.Sprintf("content is a weak match for declared context %s (score %.2f)", rel.DeclaredContext.Label(), rel.OverallScore),
				Actionable: true,
			})
		}
		for _, mw := range rel.MismatchWarnings {
			if mw.Code == domain.MismatchForeignContext {
				warn = true
			}
			warnings = append(warnings, domain.Warning{
				Kind:       domain.WarningRelevance,
				Severity:   domain.SeverityWarning,
				Message:    mw.Message,
				Actionable: true,
			})
		}
		if rel.SuggestedContext != "" {
			sugg.add(fmt.Sprintf("declare the document as %s", rel.SuggestedContext.Label()))
		}
	}

	if c := in.Content; c != nil && c.Confidence < LowContentConfidence {
		warn = true
		warnings = append(warnings, domain.Warning{
			Kind:       domain.WarningContent,
			Severity:   domain.SeverityWarning,
			Message:    fmt.Sprintf("content extraction confidence is low (%.2f)", c.Confidence),
			Actionable: true,
		})
		sugg.add("upload a clearer scan to improve text extraction")
	}

	if in.VisualQualityLow {
		sugg.add("consider re-uploading the image at a higher resolution")
	}

	action := domain.ActionAccept
	switch {
	case reject:
		action = domain.ActionReject
	case warn:
		action = domain.ActionWarn
	}

	if warnings == nil {
		warnings = []domain.Warning{}
	}
	return Decision{
		Action:       action,
		OverallScore: overallScore(in),
		Warnings:     warnings,
		Suggestions:  sugg.list(),
	}
}

// overallScore discounts the relevance fit by the strongest duplicate.
func overallScore(in Input) float64 {
	base := 1.0
	if in.Relevance != nil {
		base = in.Relevance.OverallScore
	}
	v := base * (1 - in.Duplicates.HighestConfidence())
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func duplicateWarning(m domain.DuplicateMatch, severity domain.Severity) domain.Warning {
	name := m.CandidateName
	if name == "" {
		name = m.CandidateID
	}
	var msg string
	switch m.MatchType {
	case domain.MatchExact:
		msg = fmt.Sprintf("identical file already uploaded as %s", name)
	case domain.MatchVisual:
		msg = fmt.Sprintf("visually identical to %s", name)
	default:
		msg = fmt.Sprintf("content closely matches %s (confidence %.2f)", name, m.Confidence)
	}
	return domain.Warning{
		Kind:              domain.WarningDuplicate,
		Severity:          severity,
		Message:           msg,
		Actionable:        true,
		RelatedDocumentID: m.CandidateID,
	}
}

func openExisting(m domain.DuplicateMatch) string {
	return fmt.Sprintf("open existing document %s instead of uploading again", m.CandidateID)
}

type suggestions struct {
	items []string
	seen  map[string]struct{}
}

func (s *suggestions) add(v string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *suggestions) list() []string {
	if s.items == nil {
		return []string{}
	}
	return s.items
}
