package converter

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XlsxConverter renders each worksheet as a Markdown table
type XlsxConverter struct{}

// NewXlsxConverter creates an XlsxConverter
func NewXlsxConverter() *XlsxConverter {
	return &XlsxConverter{}
}

func (c *XlsxConverter) Accepts(info StreamInfo) bool {
	return info.Extension == ".xlsx" || strings.HasPrefix(info.MIMEType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func (c *XlsxConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var md strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		fmt.Fprintf(&md, "## %s\n\n", sheet)
		md.WriteString(renderMarkdownTable(rows))
		md.WriteString("\n")
	}

	return &Result{Markdown: strings.TrimSpace(md.String())}, nil
}
