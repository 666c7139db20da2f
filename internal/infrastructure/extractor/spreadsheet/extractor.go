package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Extractor flattens every sheet of an XLSX workbook into lines of
// space-separated cell values.
type Extractor struct {
	maxRows int
}

func NewExtractor(maxRows int) *Extractor {
	if maxRows <= 0 {
		maxRows = 2000
	}
	return &Extractor{maxRows: maxRows}
}

func (e *Extractor) Extract(ctx context.Context, fileBytes []byte, _ string) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var (
		b    strings.Builder
		rows int
	)
	for _, sheet := range f.GetSheetList() {
		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range sheetRows {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			if rows >= e.maxRows {
				return strings.TrimSpace(b.String()), nil
			}
			line := strings.TrimSpace(strings.Join(nonEmpty(row), " "))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
			rows++
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func nonEmpty(cells []string) []string {
	out := cells[:0:0]
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
