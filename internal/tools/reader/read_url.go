package reader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/classify"
	"github.com/sammcj/md-server/internal/orchestrator"
)

// ReadURLTool fetches a web page or remote document and returns it as markdown
type ReadURLTool struct {
	converter Converter
	now       func() time.Time
}

// NewReadURLTool creates the read_url tool
func NewReadURLTool(converter Converter) *ReadURLTool {
	return &ReadURLTool{converter: converter, now: time.Now}
}

// Definition returns the tool's definition for MCP registration
func (t *ReadURLTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"read_url",
		mcp.WithDescription(`Fetches a URL and returns its content as markdown.

Works with web pages and with documents served over HTTP (PDF, DOCX, XLSX, PPTX, CSV, JSON, XML, plain text).
Private network addresses and cloud metadata endpoints are refused.

Set render_js for pages that build their content with JavaScript; this needs a Chromium based browser on the server and falls back to a plain fetch with a warning when none is available.`),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to read (http or https)"),
		),
		mcp.WithString("output_format",
			mcp.Description("Output format: markdown (default) or json with metadata"),
			mcp.Enum(formatMarkdown, formatJSON),
		),
		mcp.WithNumber("max_length",
			mcp.Description("Maximum number of characters to return; longer output is truncated with '...'"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Timeout in seconds (default and maximum: server setting)"),
		),
		mcp.WithBoolean("include_frontmatter",
			mcp.Description("Prepend YAML frontmatter with source metadata to markdown output (default: true)"),
		),
		mcp.WithBoolean("render_js",
			mcp.Description("Render JavaScript with a headless browser before conversion (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

type cachedOutcome struct {
	outcome *orchestrator.Outcome
	expires time.Time
}

// Execute executes the read_url tool
func (t *ReadURLTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	rawURL, _ := args["url"].(string)
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return invalidArgs(fmt.Errorf("missing required parameter: url")), nil
	}

	common, err := parseCommonArgs(args)
	if err != nil {
		return invalidArgs(err), nil
	}
	renderJS, _ := args["render_js"].(bool)

	opts := common.options()
	opts.RenderJS = renderJS

	key := fmt.Sprintf("read_url:%s:%t:%d", rawURL, renderJS, common.MaxLength)
	if out, ok := t.cached(cache, key); ok {
		logger.WithField("url", rawURL).Debug("Serving read_url result from cache")
		return render(out, common)
	}

	logger.WithFields(logrus.Fields{
		"url":       rawURL,
		"render_js": renderJS,
	}).Debug("Executing read_url tool")

	out := t.converter.Convert(ctx, &classify.Request{URL: rawURL, Options: opts})
	if out.Err == nil && cache != nil {
		cache.Store(key, cachedOutcome{outcome: out, expires: t.now().Add(resultTTL)})
	}

	return render(out, common)
}

func (t *ReadURLTool) cached(cache *sync.Map, key string) (*orchestrator.Outcome, bool) {
	if cache == nil {
		return nil, false
	}
	value, ok := cache.Load(key)
	if !ok {
		return nil, false
	}
	entry, ok := value.(cachedOutcome)
	if !ok || t.now().After(entry.expires) {
		cache.Delete(key)
		return nil, false
	}
	return entry.outcome, true
}
