package usecase

import (
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/decision"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// stageNotice records a stage that was enabled but could not contribute.
type stageNotice struct {
	stage string
	err   error
}

type assembly struct {
	mode         domain.AnalysisMode
	fingerprints domain.Fingerprints
	content      *domain.ContentAnalysis
	duplicates   *domain.DuplicateAnalysis
	relevance    *domain.RelevanceAnalysis
	decision     decision.Decision
	notices      []stageNotice
	started      time.Time
	finished     time.Time
}

var noticeMessages = map[string]string{
	StageDuplicateDetection: "duplicate detection was skipped because document storage is unavailable",
	StageContentAnalysis:    "content analysis was unavailable; relevance could not inspect the document",
}

var noticeSuggestions = map[string]string{
	StageDuplicateDetection: "re-run the analysis later to check for duplicates",
	StageContentAnalysis:    "re-run the analysis later for a content-based relevance check",
}

// assembleResult builds the immutable result. Slices are copied so later
// changes to stage outputs cannot leak into it.
func assembleResult(a assembly) *domain.AnalysisResult {
	warnings := make([]domain.Warning, 0, len(a.decision.Warnings)+len(a.notices))
	warnings = append(warnings, a.decision.Warnings...)
	suggestions := make([]string, 0, len(a.decision.Suggestions)+len(a.notices))
	suggestions = append(suggestions, a.decision.Suggestions...)

	for _, n := range a.notices {
		warnings = append(warnings, domain.Warning{
			Kind:       domain.WarningAnalysis,
			Severity:   domain.SeverityInfo,
			Message:    noticeMessages[n.stage],
			Actionable: false,
		})
		if s, ok := noticeSuggestions[n.stage]; ok {
			suggestions = append(suggestions, s)
		}
	}

	var phash *string
	if a.fingerprints.PerceptualHash != "" {
		v := a.fingerprints.PerceptualHash
		phash = &v
	}

	elapsed := a.finished.Sub(a.started)
	if elapsed < 0 {
		elapsed = 0
	}

	return &domain.AnalysisResult{
		OverallScore:      a.decision.OverallScore,
		RecommendedAction: a.decision.Action,
		Warnings:          warnings,
		Suggestions:       suggestions,
		Checksum:          a.fingerprints.Checksum,
		ContentAnalysis:   a.content,
		DuplicateAnalysis: copyDuplicates(a.duplicates),
		RelevanceAnalysis: a.relevance,
		PerceptualHash:    phash,
		ProcessingTimeMs:  elapsed.Milliseconds(),
		AnalysisTimestamp: a.finished.UTC(),
		Mode:              a.mode,
	}
}

func copyDuplicates(d *domain.DuplicateAnalysis) *domain.DuplicateAnalysis {
	if d == nil {
		return nil
	}
	out := *d
	out.Matches = append([]domain.DuplicateMatch(nil), d.Matches...)
	if out.Matches == nil {
		out.Matches = []domain.DuplicateMatch{}
	}
	return &out
}
