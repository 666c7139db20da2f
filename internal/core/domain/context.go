package domain

import (
	"fmt"
	"strings"
)

// DocumentContext is the business purpose a caller declares for a file.
type DocumentContext string

const (
	ContextExpenseReceipt   DocumentContext = "expense_receipt"
	ContextVendorDocument   DocumentContext = "vendor_document"
	ContextCustomerDocument DocumentContext = "customer_document"
	ContextBusinessCard     DocumentContext = "business_card"
	ContextInvoice          DocumentContext = "invoice"
	ContextContract         DocumentContext = "contract"
	ContextGenericBusiness  DocumentContext = "generic_business"
)

var allContexts = []DocumentContext{
	ContextExpenseReceipt,
	ContextVendorDocument,
	ContextCustomerDocument,
	ContextBusinessCard,
	ContextInvoice,
	ContextContract,
	ContextGenericBusiness,
}

// AllDocumentContexts returns every context in declaration order.
func AllDocumentContexts() []DocumentContext {
	out := make([]DocumentContext, len(allContexts))
	copy(out, allContexts)
	return out
}

func (c DocumentContext) Valid() bool {
	for _, known := range allContexts {
		if c == known {
			return true
		}
	}
	return false
}

func (c DocumentContext) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

func ParseDocumentContext(raw string) (DocumentContext, error) {
	c := DocumentContext(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", invalidInput("parse document context", "unknown document context %q", raw)
	}
	return c, nil
}

// MimeFamily groups mime types by how their content can be inspected.
type MimeFamily string

const (
	FamilyImage       MimeFamily = "image"
	FamilyPDF         MimeFamily = "pdf"
	FamilyText        MimeFamily = "text"
	FamilySpreadsheet MimeFamily = "spreadsheet"
	FamilyWordDoc     MimeFamily = "word"
)

type mimeSpec struct {
	family     MimeFamily
	extensions []string
}

var supportedMimeTypes = map[string]mimeSpec{
	"image/jpeg":      {FamilyImage, []string{"jpg", "jpeg"}},
	"image/png":       {FamilyImage, []string{"png"}},
	"image/gif":       {FamilyImage, []string{"gif"}},
	"image/webp":      {FamilyImage, []string{"webp"}},
	"image/bmp":       {FamilyImage, []string{"bmp"}},
	"image/tiff":      {FamilyImage, []string{"tif", "tiff"}},
	"application/pdf": {FamilyPDF, []string{"pdf"}},
	"text/plain":      {FamilyText, []string{"txt", "text"}},
	"text/csv":        {FamilyText, []string{"csv"}},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {FamilySpreadsheet, []string{"xlsx"}},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {FamilyWordDoc, []string{"docx"}},
	"application/msword": {FamilyWordDoc, []string{"doc"}},
}

// NormalizeMimeType lowercases and strips parameters ("; charset=utf-8").
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}

func IsSupportedMimeType(mimeType string) bool {
	_, ok := supportedMimeTypes[NormalizeMimeType(mimeType)]
	return ok
}

func FamilyOf(mimeType string) MimeFamily {
	return supportedMimeTypes[NormalizeMimeType(mimeType)].family
}

// IsImageRepresentable reports whether a perceptual hash can be computed.
func IsImageRepresentable(mimeType string) bool {
	return FamilyOf(mimeType) == FamilyImage
}

func allowedExtension(mimeType, ext string) bool {
	spec, ok := supportedMimeTypes[NormalizeMimeType(mimeType)]
	if !ok {
		return false
	}
	for _, allowed := range spec.extensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// FileMeta describes an uploaded file as declared by the caller.
type FileMeta struct {
	OriginalName string `json:"original_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	Extension    string `json:"extension"`
}

// Normalized fills the extension from the name and cleans the mime type.
func (m FileMeta) Normalized() FileMeta {
	out := m
	out.OriginalName = strings.TrimSpace(m.OriginalName)
	out.MimeType = NormalizeMimeType(m.MimeType)
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(m.Extension), "."))
	if ext == "" {
		if idx := strings.LastIndex(out.OriginalName, "."); idx >= 0 && idx < len(out.OriginalName)-1 {
			ext = strings.ToLower(out.OriginalName[idx+1:])
		}
	}
	out.Extension = ext
	return out
}

// Validate checks the metadata against the actual byte length.
func (m FileMeta) Validate(byteLen int) error {
	const op = "validate file metadata"
	if m.OriginalName == "" {
		return invalidInput(op, "original name is required")
	}
	if !IsSupportedMimeType(m.MimeType) {
		return invalidInput(op, "unsupported mime type %q", m.MimeType)
	}
	if m.Size < 0 {
		return invalidInput(op, "negative size %d", m.Size)
	}
	if m.Size > 0 && m.Size != int64(byteLen) {
		return invalidInput(op, "declared size %d does not match %d bytes", m.Size, byteLen)
	}
	if m.Extension != "" && !allowedExtension(m.MimeType, m.Extension) {
		return invalidInput(op, "extension %q does not match mime type %s", m.Extension, m.MimeType)
	}
	return nil
}

func (m FileMeta) String() string {
	return fmt.Sprintf("%s (%s, %d bytes)", m.OriginalName, m.MimeType, m.Size)
}
