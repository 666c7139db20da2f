package ollama

import (
	"strings"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const maxSnippet = 4000

func entityTypeList() string {
	names := make([]string, 0, len(domain.AllEntityTypes))
	for _, t := range domain.AllEntityTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func buildEntityPrompt(text string) string {
	snippet := text
	if r := []rune(snippet); len(r) > maxSnippet {
		snippet = string(r[:maxSnippet])
	}

	return `You extract business entities from documents.
Return strict JSON object with keys:
entities (array of objects with keys type, value, confidence), confidence (number from 0 to 1, how legible and complete the document is).
Allowed entity types: ` + entityTypeList() + `.
Only report values that appear in the document. No markdown, no extra keys.

Document:
` + snippet
}

func buildVisionPrompt() string {
	return `You read photographed or scanned business documents.
Return strict JSON object with keys:
raw_text (string, all legible text), entities (array of objects with keys type, value, confidence), confidence (number from 0 to 1, how legible the image is).
Allowed entity types: ` + entityTypeList() + `.
Only report values visible in the image. No markdown, no extra keys.`
}
