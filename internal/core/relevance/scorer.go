package relevance

import (
	"fmt"
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const (
	// NeutralScore is reported when nothing could be inspected. It sits
	// exactly on the fusion warn threshold so it is never penalized.
	NeutralScore = 0.5

	// MinEntityConfidence is the extraction confidence below which an
	// entity counts as absent.
	MinEntityConfidence = 0.2

	// A foreign context dominates when it outscores the declared one by
	// ForeignMargin and reaches ForeignMinScore on its own.
	ForeignMargin   = 0.25
	ForeignMinScore = 0.6
)

// Scorer compares extracted entities with per-context expectation profiles.
type Scorer struct {
	profiles Profiles
}

func NewScorer(profiles Profiles) *Scorer {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Scorer{profiles: profiles}
}

// Neutral is the degraded result used when content analysis is missing.
func Neutral(declared domain.DocumentContext) *domain.RelevanceAnalysis {
	return &domain.RelevanceAnalysis{
		OverallScore:     NeutralScore,
		DeclaredContext:  declared,
		MismatchWarnings: []domain.MismatchWarning{},
		Degraded:         true,
		Basis:            domain.RelevanceBasisNeutral,
	}
}

func (s *Scorer) Score(content *domain.ContentAnalysis, declared domain.DocumentContext) *domain.RelevanceAnalysis {
	if content == nil {
		return Neutral(declared)
	}
	profile, ok := s.profiles[declared]
	if !ok || profile.maxPositive()+profile.maxNegative() == 0 {
		return Neutral(declared)
	}

	result := &domain.RelevanceAnalysis{
		OverallScore:     score(profile, content),
		DeclaredContext:  declared,
		MismatchWarnings: []domain.MismatchWarning{},
		Basis:            domain.RelevanceBasisContent,
	}

	for _, e := range profile.Expect {
		if e.Strong && presence(content, e.Entity) == 0 {
			result.MismatchWarnings = append(result.MismatchWarnings, domain.MismatchWarning{
				Code:       domain.MismatchMissingExpected,
				Message:    fmt.Sprintf("expected %s for %s but none was found", labelOf(e.Entity), declared.Label()),
				EntityType: e.Entity,
			})
		}
	}

	if foreign, foreignScore, ok := s.dominantForeign(content, declared, result.OverallScore); ok {
		result.SuggestedContext = foreign
		result.MismatchWarnings = append(result.MismatchWarnings, domain.MismatchWarning{
			Code: domain.MismatchForeignContext,
			Message: fmt.Sprintf("content looks like %s (%.2f) rather than %s (%.2f)",
				foreign.Label(), foreignScore, declared.Label(), result.OverallScore),
			SuggestedContext: foreign,
		})
	}
	return result
}

func (s *Scorer) dominantForeign(content *domain.ContentAnalysis, declared domain.DocumentContext, declaredScore float64) (domain.DocumentContext, float64, bool) {
	var (
		best      domain.DocumentContext
		bestScore float64
	)
	for _, ctx := range domain.AllDocumentContexts() {
		if ctx == declared || ctx == domain.ContextGenericBusiness {
			continue
		}
		profile, ok := s.profiles[ctx]
		if !ok || profile.maxPositive()+profile.maxNegative() == 0 {
			continue
		}
		if sc := score(profile, content); sc > bestScore {
			best, bestScore = ctx, sc
		}
	}
	if best == "" || bestScore < ForeignMinScore || bestScore < declaredScore+ForeignMargin {
		return "", 0, false
	}
	return best, bestScore, true
}

func score(profile Profile, content *domain.ContentAnalysis) float64 {
	maxPos, maxNeg := profile.maxPositive(), profile.maxNegative()
	positive := 0.0
	for _, e := range profile.Expect {
		positive += e.Weight * presence(content, e.Entity)
	}
	negative := 0.0
	for _, e := range profile.Reject {
		negative += e.Weight * presence(content, e.Entity)
	}
	return clamp((positive + (maxNeg - negative)) / (maxPos + maxNeg))
}

func presence(content *domain.ContentAnalysis, t domain.EntityType) float64 {
	p := content.Presence(t)
	if p < MinEntityConfidence {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func labelOf(t domain.EntityType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
