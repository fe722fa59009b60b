package reader

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/classify"
)

// ReadFileTool converts a base64 encoded document to markdown
type ReadFileTool struct {
	converter Converter
}

// NewReadFileTool creates the read_file tool
func NewReadFileTool(converter Converter) *ReadFileTool {
	return &ReadFileTool{converter: converter}
}

// Definition returns the tool's definition for MCP registration
func (t *ReadFileTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"read_file",
		mcp.WithDescription(`Converts a document to markdown. The document is passed base64 encoded.

The format is detected from the content; the filename is only a hint used to tell Office formats and text variants apart.`),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Base64 encoded file content"),
		),
		mcp.WithString("filename",
			mcp.Description("Original filename, used as a format hint (e.g. report.docx)"),
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
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the read_file tool
func (t *ReadFileTool) Execute(ctx context.Context, logger *logrus.Logger, _ *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	content, _ := args["content"].(string)
	if content == "" {
		return invalidArgs(fmt.Errorf("missing required parameter: content")), nil
	}
	filename, _ := args["filename"].(string)

	common, err := parseCommonArgs(args)
	if err != nil {
		return invalidArgs(err), nil
	}

	logger.WithFields(logrus.Fields{
		"filename":     filename,
		"encoded_size": len(content),
	}).Debug("Executing read_file tool")

	out := t.converter.Convert(ctx, &classify.Request{
		Content:  content,
		Filename: filename,
		Options:  common.options(),
	})
	return render(out, common)
}
