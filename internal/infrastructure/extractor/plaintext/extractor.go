package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the body as text. A UTF-8 byte order mark is dropped and
// CRLF line endings are normalized.
func (e *Extractor) Extract(ctx context.Context, fileBytes []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw := bytes.TrimPrefix(fileBytes, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrContentAnalysisUnavailable, "extract plain text", fmt.Errorf("%s body is not valid utf-8", mimeType))
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if domain.NormalizeMimeType(mimeType) == "text/csv" {
		text = strings.ReplaceAll(text, ",", " ")
	}
	return strings.TrimSpace(text), nil
}
