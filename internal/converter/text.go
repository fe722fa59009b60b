package converter

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// PlainTextConverter passes text and Markdown through after charset decoding
type PlainTextConverter struct{}

// NewPlainTextConverter creates a PlainTextConverter
func NewPlainTextConverter() *PlainTextConverter {
	return &PlainTextConverter{}
}

func (c *PlainTextConverter) Accepts(info StreamInfo) bool {
	switch info.Extension {
	case ".txt", ".text", ".md", ".markdown":
		return true
	}
	return strings.HasPrefix(info.MIMEType, "text/")
}

func (c *PlainTextConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	return &Result{Markdown: decodeText(data, info.Charset)}, nil
}

// decodeText returns data as UTF-8, honouring a declared charset and falling back to
// statistical detection for legacy encodings.
func decodeText(data []byte, charset string) string {
	if charset != "" {
		if text, ok := decodeWith(data, charset); ok {
			return text
		}
	}

	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff")
	}

	detector := chardet.NewTextDetector()
	if result, err := detector.DetectBest(data); err == nil && result != nil {
		if text, ok := decodeWith(data, result.Charset); ok {
			return text
		}
	}

	return strings.ToValidUTF8(string(data), "\uFFFD")
}

func decodeWith(data []byte, charset string) (string, bool) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", false
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
