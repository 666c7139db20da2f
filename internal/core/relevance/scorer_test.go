package relevance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func businessCard() *domain.ContentAnalysis {
	return &domain.ContentAnalysis{
		RawText:    "Jane Doe\nHead of Procurement\nAcme Ltd\njane@acme.test\n+1 555 010 9999",
		Confidence: 0.9,
		Entities: []domain.Entity{
			{Type: domain.EntityPersonName, Value: "Jane Doe", Confidence: 0.9},
			{Type: domain.EntityJobTitle, Value: "Head of Procurement", Confidence: 0.9},
			{Type: domain.EntityCompanyName, Value: "Acme Ltd", Confidence: 0.9},
			{Type: domain.EntityEmail, Value: "jane@acme.test", Confidence: 0.95},
			{Type: domain.EntityPhone, Value: "+1 555 010 9999", Confidence: 0.9},
		},
	}
}

func receipt() *domain.ContentAnalysis {
	return &domain.ContentAnalysis{
		Confidence: 0.85,
		Entities: []domain.Entity{
			{Type: domain.EntityVendorName, Value: "Corner Cafe", Confidence: 0.8},
			{Type: domain.EntityTotalAmount, Value: "12.40", Confidence: 0.9},
			{Type: domain.EntityDate, Value: "2026-03-01", Confidence: 0.9},
			{Type: domain.EntityTaxAmount, Value: "1.10", Confidence: 0.7},
		},
	}
}

func hasWarning(warnings []domain.MismatchWarning, code string) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestScoreBusinessCardDeclaredAsReceipt(t *testing.T) {
	result := NewScorer(nil).Score(businessCard(), domain.ContextExpenseReceipt)

	if result.OverallScore >= 0.25 {
		t.Fatalf("expected low score, got %v", result.OverallScore)
	}
	if !hasWarning(result.MismatchWarnings, domain.MismatchMissingExpected) {
		t.Fatalf("expected missing entity warning, got %+v", result.MismatchWarnings)
	}
	if !hasWarning(result.MismatchWarnings, domain.MismatchForeignContext) {
		t.Fatalf("expected foreign context warning, got %+v", result.MismatchWarnings)
	}
	if result.SuggestedContext != domain.ContextBusinessCard {
		t.Fatalf("expected business_card suggestion, got %q", result.SuggestedContext)
	}
	if result.Degraded {
		t.Fatalf("expected non-degraded result")
	}
}

func TestScoreMatchingReceipt(t *testing.T) {
	result := NewScorer(nil).Score(receipt(), domain.ContextExpenseReceipt)
	if result.OverallScore < 0.7 {
		t.Fatalf("expected high score, got %v", result.OverallScore)
	}
	if len(result.MismatchWarnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", result.MismatchWarnings)
	}
}

func TestScoreBusinessCardDeclaredAsInvoice(t *testing.T) {
	result := NewScorer(nil).Score(businessCard(), domain.ContextInvoice)
	if !hasWarning(result.MismatchWarnings, domain.MismatchForeignContext) {
		t.Fatalf("expected foreign context warning, got %+v", result.MismatchWarnings)
	}
}

func TestScoreDegradesWithoutContent(t *testing.T) {
	result := NewScorer(nil).Score(nil, domain.ContextInvoice)
	if result.OverallScore != NeutralScore || !result.Degraded {
		t.Fatalf("expected neutral degraded score, got %+v", result)
	}
	if len(result.MismatchWarnings) != 0 {
		t.Fatalf("expected no warnings when degraded")
	}
}

func TestScoreIgnoresLowConfidenceEntities(t *testing.T) {
	content := receipt()
	for i := range content.Entities {
		content.Entities[i].Confidence = 0.1
	}
	result := NewScorer(nil).Score(content, domain.ContextExpenseReceipt)
	if !hasWarning(result.MismatchWarnings, domain.MismatchMissingExpected) {
		t.Fatalf("expected low-confidence entities to count as absent")
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := NewScorer(nil)
	first := scorer.Score(businessCard(), domain.ContextContract)
	for i := 0; i < 20; i++ {
		next := scorer.Score(businessCard(), domain.ContextContract)
		if next.OverallScore != first.OverallScore || len(next.MismatchWarnings) != len(first.MismatchWarnings) {
			t.Fatalf("expected identical results across runs")
		}
		for j := range next.MismatchWarnings {
			if next.MismatchWarnings[j] != first.MismatchWarnings[j] {
				t.Fatalf("expected identical warning order")
			}
		}
	}
}

func TestLoadProfilesOverridesContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	raw := []byte(`profiles:
  business_card:
    expect:
      - entity: email
        weight: 1
        strong: true
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write profiles: %v", err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles() error = %v", err)
	}
	card := profiles[domain.ContextBusinessCard]
	if len(card.Expect) != 1 || card.Expect[0].Entity != domain.EntityEmail || !card.Expect[0].Strong {
		t.Fatalf("expected override profile, got %+v", card)
	}
	if len(profiles[domain.ContextInvoice].Expect) == 0 {
		t.Fatalf("expected untouched defaults for other contexts")
	}
}

func TestParseProfilesRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown context": "profiles:\n  passport:\n    expect:\n      - entity: email\n        weight: 1\n",
		"zero weight":     "profiles:\n  invoice:\n    expect:\n      - entity: email\n        weight: 0\n",
		"missing entity":  "profiles:\n  invoice:\n    reject:\n      - weight: 2\n",
		"bad yaml":        "profiles: [",
	}
	for name, raw := range cases {
		if _, err := ParseProfiles([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestScoreMetadata(t *testing.T) {
	cases := []struct {
		name      string
		meta      domain.FileMeta
		declared  domain.DocumentContext
		wantScore float64
		wantWarn  bool
		suggested domain.DocumentContext
	}{
		{"keyword match", domain.FileMeta{OriginalName: "receipt_0412.jpg", MimeType: "image/jpeg"}, domain.ContextExpenseReceipt, MetadataMatchScore, false, ""},
		{"digit suffix", domain.FileMeta{OriginalName: "INV2026-03.pdf", MimeType: "application/pdf"}, domain.ContextInvoice, MetadataMatchScore, false, ""},
		{"other context keyword", domain.FileMeta{OriginalName: "signed-contract.pdf", MimeType: "application/pdf"}, domain.ContextExpenseReceipt, MetadataMismatchScore, true, domain.ContextContract},
		{"implausible family", domain.FileMeta{OriginalName: "card.xlsx", MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}, domain.ContextBusinessCard, MetadataMismatchScore, true, ""},
		{"no signal", domain.FileMeta{OriginalName: "scan_001.png", MimeType: "image/png"}, domain.ContextInvoice, NeutralScore, false, ""},
	}
	for _, tc := range cases {
		result := ScoreMetadata(tc.meta, tc.declared)
		if result.OverallScore != tc.wantScore {
			t.Fatalf("%s: expected score %v, got %v", tc.name, tc.wantScore, result.OverallScore)
		}
		if (len(result.MismatchWarnings) > 0) != tc.wantWarn {
			t.Fatalf("%s: unexpected warnings %+v", tc.name, result.MismatchWarnings)
		}
		if result.SuggestedContext != tc.suggested {
			t.Fatalf("%s: expected suggestion %q, got %q", tc.name, tc.suggested, result.SuggestedContext)
		}
		if result.Basis != domain.RelevanceBasisMetadata {
			t.Fatalf("%s: expected metadata basis", tc.name)
		}
	}
}
