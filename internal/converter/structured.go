package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// JSONConverter pretty prints JSON inside a fenced code block
type JSONConverter struct{}

// NewJSONConverter creates a JSONConverter
func NewJSONConverter() *JSONConverter {
	return &JSONConverter{}
}

func (c *JSONConverter) Accepts(info StreamInfo) bool {
	return info.Extension == ".json" || strings.HasPrefix(info.MIMEType, "application/json")
}

func (c *JSONConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(data), "", "  "); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return &Result{Markdown: fence("json", out.String())}, nil
}

// XMLConverter wraps well formed XML in a fenced code block
type XMLConverter struct{}

// NewXMLConverter creates an XMLConverter
func NewXMLConverter() *XMLConverter {
	return &XMLConverter{}
}

func (c *XMLConverter) Accepts(info StreamInfo) bool {
	switch info.MIMEType {
	case "application/xml", "text/xml":
		return true
	}
	return info.Extension == ".xml"
}

func (c *XMLConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	text := decodeText(data, info.Charset)

	decoder := xml.NewDecoder(strings.NewReader(text))
	for {
		if _, err := decoder.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse XML: %w", err)
		}
	}

	return &Result{Markdown: fence("xml", strings.TrimSpace(text))}, nil
}

func fence(lang, body string) string {
	return "```" + lang + "\n" + body + "\n```"
}
