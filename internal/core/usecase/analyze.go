package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-intelligence/internal/core/decision"
	"github.com/kirillkom/document-intelligence/internal/core/dedup"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/core/relevance"
)

const (
	StageDuplicateDetection = "duplicate_detection"
	StageContentAnalysis    = "content_analysis"
)

var tracer = otel.Tracer("github.com/kirillkom/document-intelligence/internal/core/usecase")

// AnalysisSettings bounds the pipeline. Zero values fall back to defaults.
type AnalysisSettings struct {
	ContentTimeout     time.Duration
	QuickScope         domain.DuplicateScope
	QuickToleranceDays int
}

type AnalyzeDocumentUseCase struct {
	hasher       ports.Hasher
	locator      *dedup.CandidateLocator
	analyzer     ports.ContentAnalyzer
	scorer       *relevance.Scorer
	observer     ports.AnalysisObserver
	fullMatcher  *dedup.Matcher
	quickMatcher *dedup.Matcher
	settings     AnalysisSettings
	now          func() time.Time
}

func NewAnalyzeDocumentUseCase(
	hasher ports.Hasher,
	locator *dedup.CandidateLocator,
	analyzer ports.ContentAnalyzer,
	scorer *relevance.Scorer,
	observer ports.AnalysisObserver,
	settings AnalysisSettings,
) *AnalyzeDocumentUseCase {
	if settings.ContentTimeout <= 0 {
		settings.ContentTimeout = 20 * time.Second
	}
	if !settings.QuickScope.Valid() {
		settings.QuickScope = domain.ScopeCompany
	}
	if settings.QuickToleranceDays <= 0 {
		settings.QuickToleranceDays = domain.DefaultTemporalToleranceDays
	}
	if scorer == nil {
		scorer = relevance.NewScorer(nil)
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &AnalyzeDocumentUseCase{
		hasher:       hasher,
		locator:      locator,
		analyzer:     analyzer,
		scorer:       scorer,
		observer:     observer,
		fullMatcher:  dedup.NewMatcher(dedup.FullRules),
		quickMatcher: dedup.NewMatcher(dedup.QuickRules),
		settings:     settings,
		now:          time.Now,
	}
}

// stageOutputs collects phase one results. Each field is written by
// exactly one goroutine before the join.
type stageOutputs struct {
	fingerprints  domain.Fingerprints
	candidates    []domain.StoredDocument
	candidatesErr error
	content       *domain.ContentAnalysis
	contentErr    error
}

func (uc *AnalyzeDocumentUseCase) AnalyzeDocument(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	started := uc.now()
	ctx, span := tracer.Start(ctx, "analysis.full")
	defer span.End()

	req.FileMeta = normalizeFileMeta(req.FileBytes, req.FileMeta)
	if err := req.Validate(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	opts := req.Options
	span.SetAttributes(
		attribute.String("analysis.declared_context", string(req.DeclaredContext)),
		attribute.String("analysis.mime_type", req.FileMeta.MimeType),
		attribute.Bool("analysis.duplicates", opts.EnableDuplicateDetection),
		attribute.Bool("analysis.relevance", opts.EnableRelevanceAnalysis),
		attribute.Bool("analysis.content", opts.EnableContentAnalysis),
	)

	out, err := uc.runInputStages(ctx, req, opts.EnableDuplicateDetection, opts.EnableContentAnalysis)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var notices []stageNotice
	var content *domain.ContentAnalysis
	if opts.EnableContentAnalysis {
		if out.contentErr != nil {
			notices = append(notices, uc.degrade(ctx, StageContentAnalysis, out.fingerprints.Checksum, out.contentErr))
		} else {
			content = out.content
		}
	}

	var (
		duplicates *domain.DuplicateAnalysis
		rel        *domain.RelevanceAnalysis
	)
	if opts.EnableDuplicateDetection && out.candidatesErr != nil {
		notices = append(notices, uc.degrade(ctx, StageDuplicateDetection, out.fingerprints.Checksum, out.candidatesErr))
	}

	var g errgroup.Group
	if opts.EnableDuplicateDetection && out.candidatesErr == nil {
		g.Go(func() error {
			duplicates = uc.matchDuplicates(ctx, uc.fullMatcher, out.fingerprints, content, out.candidates, opts)
			return nil
		})
	}
	if opts.EnableRelevanceAnalysis {
		g.Go(func() error {
			_, relSpan := tracer.Start(ctx, "analysis.relevance")
			defer relSpan.End()
			rel = uc.scorer.Score(content, req.DeclaredContext)
			relSpan.SetAttributes(attribute.Float64("relevance.score", rel.OverallScore))
			return nil
		})
	}
	_ = g.Wait()

	d := decision.Decide(decision.Input{
		Duplicates:       duplicates,
		Relevance:        rel,
		Content:          content,
		VisualQualityLow: out.fingerprints.VisualQualityLow,
		Options:          opts,
	})

	result := assembleResult(assembly{
		mode:         domain.ModeFull,
		fingerprints: out.fingerprints,
		content:      content,
		duplicates:   duplicates,
		relevance:    rel,
		decision:     d,
		notices:      notices,
		started:      started,
		finished:     uc.now(),
	})
	uc.observe(result)
	span.SetAttributes(attribute.String("analysis.action", string(result.RecommendedAction)))
	return result, nil
}

// QuickAnalysis runs hashing and exact/visual duplicate detection plus a
// metadata relevance check. It never calls the content analyzer.
func (uc *AnalyzeDocumentUseCase) QuickAnalysis(
	ctx context.Context,
	fileBytes []byte,
	meta domain.FileMeta,
	declared domain.DocumentContext,
	identity domain.Identity,
) (*domain.AnalysisResult, error) {
	started := uc.now()
	ctx, span := tracer.Start(ctx, "analysis.quick")
	defer span.End()

	scope := uc.settings.QuickScope
	if scope == domain.ScopeCompany && identity.CompanyID == "" {
		scope = domain.ScopeUser
	}
	req := domain.AnalysisRequest{
		FileBytes:       fileBytes,
		FileMeta:        normalizeFileMeta(fileBytes, meta),
		DeclaredContext: declared,
		Identity:        identity,
		Options: domain.AnalysisOptions{
			EnableDuplicateDetection: true,
			EnableRelevanceAnalysis:  true,
			DuplicateScope:           scope,
			TemporalToleranceDays:    uc.settings.QuickToleranceDays,
		},
	}
	if err := req.Validate(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	out, err := uc.runInputStages(ctx, req, true, false)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var (
		notices    []stageNotice
		duplicates *domain.DuplicateAnalysis
	)
	if out.candidatesErr != nil {
		notices = append(notices, uc.degrade(ctx, StageDuplicateDetection, out.fingerprints.Checksum, out.candidatesErr))
	} else {
		duplicates = uc.matchDuplicates(ctx, uc.quickMatcher, out.fingerprints, nil, out.candidates, req.Options)
	}
	rel := relevance.ScoreMetadata(req.FileMeta, declared)

	d := decision.Decide(decision.Input{
		Duplicates:       duplicates,
		Relevance:        rel,
		VisualQualityLow: out.fingerprints.VisualQualityLow,
		Options:          req.Options,
	})
	result := assembleResult(assembly{
		mode:         domain.ModeQuick,
		fingerprints: out.fingerprints,
		duplicates:   duplicates,
		relevance:    rel,
		decision:     d,
		notices:      notices,
		started:      started,
		finished:     uc.now(),
	})
	uc.observe(result)
	return result, nil
}

// runInputStages hashes the input and then locates candidates, while the
// content analyzer runs alongside. The locator needs the checksum for its
// exact lookup. Only a hasher failure is returned as an error.
func (uc *AnalyzeDocumentUseCase) runInputStages(ctx context.Context, req domain.AnalysisRequest, locate, analyze bool) (*stageOutputs, error) {
	out := &stageOutputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fp, err := uc.hash(gctx, req)
		if err != nil {
			return err
		}
		out.fingerprints = fp
		if locate {
			out.candidates, out.candidatesErr = uc.locateCandidates(gctx, req, fp.Checksum)
		}
		return nil
	})

	if analyze {
		g.Go(func() error {
			out.content, out.contentErr = uc.analyzeContent(gctx, req.FileBytes, req.FileMeta.MimeType)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *AnalyzeDocumentUseCase) hash(ctx context.Context, req domain.AnalysisRequest) (domain.Fingerprints, error) {
	_, span := tracer.Start(ctx, "analysis.hash")
	defer span.End()
	fp, err := uc.hasher.Hash(req.FileBytes, req.FileMeta.MimeType)
	if err != nil {
		recordSpanError(span, err)
		if domain.IsKind(err, domain.ErrInvalidInput) || domain.IsKind(err, domain.ErrFatal) {
			return domain.Fingerprints{}, err
		}
		return domain.Fingerprints{}, domain.WrapError(domain.ErrFatal, "hash document", err)
	}
	return fp, nil
}

func (uc *AnalyzeDocumentUseCase) locateCandidates(ctx context.Context, req domain.AnalysisRequest, checksum string) ([]domain.StoredDocument, error) {
	ctx, span := tracer.Start(ctx, "analysis.locate_candidates")
	defer span.End()
	candidates, err := uc.locator.FindCandidates(ctx, dedup.CandidateQuery{
		Scope:           req.Options.DuplicateScope,
		Identity:        req.Identity,
		ExcludeID:       req.ExcludeDocumentID,
		IncludeArchived: req.Options.IncludeArchived,
		ToleranceDays:   req.Options.TemporalToleranceDays,
		Checksum:        checksum,
	})
	if err != nil {
		recordSpanError(span, err)
	}
	span.SetAttributes(attribute.Int("dedup.candidates", len(candidates)))
	return candidates, err
}

func (uc *AnalyzeDocumentUseCase) analyzeContent(ctx context.Context, fileBytes []byte, mimeType string) (*domain.ContentAnalysis, error) {
	ctx, span := tracer.Start(ctx, "analysis.content")
	defer span.End()

	if uc.analyzer == nil {
		return nil, domain.WrapError(domain.ErrContentAnalysisUnavailable, "analyze content", errors.New("no content analyzer configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, uc.settings.ContentTimeout)
	defer cancel()

	content, err := uc.analyzer.Analyze(ctx, fileBytes, mimeType)
	if err != nil {
		recordSpanError(span, err)
		if domain.IsKind(err, domain.ErrContentAnalysisUnavailable) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrContentAnalysisUnavailable, "analyze content", err)
	}
	if content == nil {
		return nil, domain.WrapError(domain.ErrContentAnalysisUnavailable, "analyze content", errors.New("analyzer returned no result"))
	}
	span.SetAttributes(
		attribute.Int("content.entities", len(content.Entities)),
		attribute.Float64("content.confidence", content.Confidence),
	)
	return content, nil
}

func (uc *AnalyzeDocumentUseCase) matchDuplicates(
	ctx context.Context,
	matcher *dedup.Matcher,
	fp domain.Fingerprints,
	content *domain.ContentAnalysis,
	candidates []domain.StoredDocument,
	opts domain.AnalysisOptions,
) *domain.DuplicateAnalysis {
	_, span := tracer.Start(ctx, "analysis.match_duplicates")
	defer span.End()

	matches := matcher.Match(dedup.Subject{Fingerprints: fp, Content: content}, candidates)
	span.SetAttributes(attribute.Int("dedup.matches", len(matches)))
	return &domain.DuplicateAnalysis{
		Matches:            matches,
		CandidatesCompared: len(candidates),
		Scope:              opts.DuplicateScope,
		ToleranceDays:      opts.TemporalToleranceDays,
		VisualChecked:      fp.PerceptualHash != "",
		ContentChecked:     content != nil && matcher == uc.fullMatcher,
	}
}

func (uc *AnalyzeDocumentUseCase) degrade(ctx context.Context, stage, checksum string, err error) stageNotice {
	slog.WarnContext(ctx, "stage_degraded", "stage", stage, "checksum", checksum, "error", err)
	uc.observer.ObserveDegradedStage(stage)
	return stageNotice{stage: stage, err: err}
}

func (uc *AnalyzeDocumentUseCase) observe(result *domain.AnalysisResult) {
	uc.observer.ObserveAnalysis(result.Mode, result.RecommendedAction, time.Duration(result.ProcessingTimeMs)*time.Millisecond)
	if result.DuplicateAnalysis == nil {
		return
	}
	for _, m := range result.DuplicateAnalysis.Matches {
		uc.observer.ObserveDuplicateMatch(m.MatchType)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, fmt.Sprint(err))
}

type noopObserver struct{}

func (noopObserver) ObserveAnalysis(domain.AnalysisMode, domain.Action, time.Duration) {}
func (noopObserver) ObserveDegradedStage(string)                                       {}
func (noopObserver) ObserveDuplicateMatch(domain.MatchType)                            {}
