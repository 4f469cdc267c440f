package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxRowsPerSheet = 200

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract renders every sheet as "# <sheet>" followed by tab separated rows.
func (e *Extractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet %s: %w", filename, err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		b.WriteString("# ")
		b.WriteString(sheet)
		b.WriteString("\n")
		for i, row := range rows {
			if i >= maxRowsPerSheet {
				break
			}
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}
