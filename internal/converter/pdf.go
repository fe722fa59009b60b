package converter

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFConverter extracts the text layer of a PDF page by page
type PDFConverter struct{}

// NewPDFConverter creates a PDFConverter
func NewPDFConverter() *PDFConverter {
	return &PDFConverter{}
}

func (c *PDFConverter) Accepts(info StreamInfo) bool {
	return info.Extension == ".pdf" || strings.HasPrefix(info.MIMEType, "application/pdf")
}

func (c *PDFConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (result *Result, err error) {
	// The parser panics on some malformed cross reference tables
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var md strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		md.WriteString(text)
		md.WriteString("\n\n")
	}

	return &Result{Markdown: strings.TrimSpace(md.String())}, nil
}
