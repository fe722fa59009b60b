package converter

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
)

// CSVConverter renders CSV as a Markdown table
type CSVConverter struct{}

// NewCSVConverter creates a CSVConverter
func NewCSVConverter() *CSVConverter {
	return &CSVConverter{}
}

func (c *CSVConverter) Accepts(info StreamInfo) bool {
	return info.Extension == ".csv" || strings.HasPrefix(info.MIMEType, "text/csv") || strings.HasPrefix(info.MIMEType, "application/csv")
}

func (c *CSVConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	r := csv.NewReader(strings.NewReader(decodeText(data, info.Charset)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}

	return &Result{Markdown: renderMarkdownTable(records)}, nil
}

// renderMarkdownTable renders rows as a Markdown table using the first row as header
func renderMarkdownTable(records [][]string) string {
	if len(records) == 0 {
		return ""
	}

	numCols := 0
	for _, row := range records {
		numCols = max(numCols, len(row))
	}

	var b strings.Builder
	writeRow := func(row []string) {
		b.WriteString("|")
		for i := range numCols {
			cell := ""
			if i < len(row) {
				cell = escapeCell(row[i])
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}

	writeRow(records[0])
	b.WriteString("|")
	for range numCols {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range records[1:] {
		writeRow(row)
	}

	return b.String()
}

func escapeCell(cell string) string {
	cell = strings.ReplaceAll(cell, "|", "\\|")
	return strings.Join(strings.Fields(cell), " ")
}
