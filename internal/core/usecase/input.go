package usecase

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// normalizeFileMeta cleans caller metadata and sniffs the mime type from
// content when it is missing or generic.
func normalizeFileMeta(fileBytes []byte, meta domain.FileMeta) domain.FileMeta {
	meta = meta.Normalized()
	if needsSniffing(meta.MimeType) && len(fileBytes) > 0 {
		meta.MimeType = domain.NormalizeMimeType(mimetype.Detect(fileBytes).String())
	}
	return meta
}

func needsSniffing(mimeType string) bool {
	switch mimeType {
	case "", "application/octet-stream", "binary/octet-stream", "application/unknown":
		return true
	default:
		return false
	}
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "/" {
		return "document.bin"
	}
	return base
}
