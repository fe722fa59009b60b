package converter

import (
	"context"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

// noiseSelectors are stripped before conversion since they rarely carry document content
var noiseSelectors = []string{
	"script", "style", "noscript", "iframe", "embed", "object",
	"nav", "form", "button", "select", "canvas", "svg", "video", "audio",
}

// HTMLConverter converts HTML pages to Markdown
type HTMLConverter struct {
	conv *converter.Converter
}

// NewHTMLConverter creates an HTMLConverter with table support
func NewHTMLConverter() *HTMLConverter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithHeadingStyle("atx"),
			),
			table.NewTablePlugin(),
		),
	)
	return &HTMLConverter{conv: conv}
}

func (c *HTMLConverter) Accepts(info StreamInfo) bool {
	switch info.Extension {
	case ".html", ".htm":
		return true
	}
	return strings.HasPrefix(info.MIMEType, "text/html") || strings.HasPrefix(info.MIMEType, "application/xhtml")
}

func (c *HTMLConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	return c.ConvertString(decodeText(data, info.Charset))
}

// ConvertString converts an HTML document held in memory
func (c *HTMLConverter) ConvertString(htmlContent string) (*Result, error) {
	if strings.TrimSpace(htmlContent) == "" {
		return &Result{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(strings.Join(noiseSelectors, ", ")).Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	markdown, err := c.conv.ConvertString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	return &Result{Markdown: strings.TrimSpace(markdown), Title: title}, nil
}
