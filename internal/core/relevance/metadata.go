package relevance

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const (
	MetadataMatchScore    = 0.8
	MetadataMismatchScore = 0.3
)

var contextKeywords = map[domain.DocumentContext][]string{
	domain.ContextExpenseReceipt:   {"receipt", "receipts", "rcpt", "expense", "expenses"},
	domain.ContextInvoice:          {"invoice", "invoices", "inv", "bill"},
	domain.ContextContract:         {"contract", "agreement", "nda", "msa", "sow"},
	domain.ContextBusinessCard:     {"card", "vcard", "businesscard"},
	domain.ContextVendorDocument:   {"vendor", "supplier", "w9"},
	domain.ContextCustomerDocument: {"customer", "client"},
}

// Mime families that make sense for each context. Contexts not listed
// accept every family.
var plausibleFamilies = map[domain.DocumentContext][]domain.MimeFamily{
	domain.ContextExpenseReceipt: {domain.FamilyImage, domain.FamilyPDF, domain.FamilyText},
	domain.ContextBusinessCard:   {domain.FamilyImage, domain.FamilyPDF, domain.FamilyText},
	domain.ContextContract:       {domain.FamilyPDF, domain.FamilyWordDoc, domain.FamilyImage, domain.FamilyText},
}

// ScoreMetadata is the low-latency relevance check used by quick analysis.
// It only looks at the file name and mime family.
func ScoreMetadata(meta domain.FileMeta, declared domain.DocumentContext) *domain.RelevanceAnalysis {
	result := &domain.RelevanceAnalysis{
		OverallScore:     NeutralScore,
		DeclaredContext:  declared,
		MismatchWarnings: []domain.MismatchWarning{},
		Basis:            domain.RelevanceBasisMetadata,
	}

	if families, ok := plausibleFamilies[declared]; ok {
		family := domain.FamilyOf(meta.MimeType)
		if !containsFamily(families, family) {
			result.OverallScore = MetadataMismatchScore
			result.MismatchWarnings = append(result.MismatchWarnings, domain.MismatchWarning{
				Code:    domain.MismatchMetadata,
				Message: fmt.Sprintf("a %s file is unusual for %s", family, declared.Label()),
			})
			return result
		}
	}

	tokens := filenameTokens(meta.OriginalName)
	if hasKeyword(tokens, contextKeywords[declared]) {
		result.OverallScore = MetadataMatchScore
		return result
	}
	for _, ctx := range domain.AllDocumentContexts() {
		if ctx == declared {
			continue
		}
		if hasKeyword(tokens, contextKeywords[ctx]) {
			result.OverallScore = MetadataMismatchScore
			result.SuggestedContext = ctx
			result.MismatchWarnings = append(result.MismatchWarnings, domain.MismatchWarning{
				Code:             domain.MismatchMetadata,
				Message:          fmt.Sprintf("file name suggests %s rather than %s", ctx.Label(), declared.Label()),
				SuggestedContext: ctx,
			})
			return result
		}
	}
	return result
}

func filenameTokens(name string) map[string]struct{} {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
		// "inv2024" and "receipt01" style names.
		if trimmed := strings.TrimRightFunc(f, unicode.IsDigit); trimmed != "" {
			out[trimmed] = struct{}{}
		}
	}
	return out
}

func hasKeyword(tokens map[string]struct{}, keywords []string) bool {
	for _, k := range keywords {
		if _, ok := tokens[k]; ok {
			return true
		}
	}
	return false
}

func containsFamily(families []domain.MimeFamily, family domain.MimeFamily) bool {
	for _, f := range families {
		if f == family {
			return true
		}
	}
	return false
}
