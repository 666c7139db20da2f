package extractor

import (
	"context"
	"fmt"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor/spreadsheet"
)

// Mux routes extraction by mime family. Families without an extractor
// (images, legacy .doc) report content analysis as unavailable.
type Mux struct {
	byFamily map[domain.MimeFamily]ports.TextExtractor
}

func NewMux(byFamily map[domain.MimeFamily]ports.TextExtractor) *Mux {
	return &Mux{byFamily: byFamily}
}

// NewDefaultMux wires every built-in extractor.
func NewDefaultMux() *Mux {
	return NewMux(map[domain.MimeFamily]ports.TextExtractor{
		domain.FamilyText:        plaintext.NewExtractor(),
		domain.FamilyPDF:         pdf.NewExtractor(0),
		domain.FamilySpreadsheet: spreadsheet.NewExtractor(0),
		domain.FamilyWordDoc:     docx.NewExtractor(),
	})
}

func (m *Mux) Extract(ctx context.Context, fileBytes []byte, mimeType string) (string, error) {
	mimeType = domain.NormalizeMimeType(mimeType)
	if mimeType == "application/msword" {
		return "", domain.WrapError(domain.ErrContentAnalysisUnavailable, "extract text", fmt.Errorf("legacy word documents have no readable text layer"))
	}
	ex, ok := m.byFamily[domain.FamilyOf(mimeType)]
	if !ok {
		return "", domain.WrapError(domain.ErrContentAnalysisUnavailable, "extract text", fmt.Errorf("no text extractor for %s", mimeType))
	}
	text, err := ex.Extract(ctx, fileBytes, mimeType)
	if err != nil {
		if domain.IsKind(err, domain.ErrContentAnalysisUnavailable) || ctx.Err() != nil {
			return "", err
		}
		return "", domain.WrapError(domain.ErrContentAnalysisUnavailable, "extract text", err)
	}
	return text, nil
}
