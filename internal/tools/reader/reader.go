// Package reader provides the read_url and read_file MCP tools
package reader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/sammcj/md-server/internal/classify"
	"github.com/sammcj/md-server/internal/orchestrator"
	"github.com/sammcj/md-server/internal/taxonomy"
	"github.com/sammcj/md-server/internal/tools"
)

const (
	formatMarkdown = "markdown"
	formatJSON     = "json"

	// resultTTL bounds how long read_url keeps a converted page in the shared cache
	resultTTL = 5 * time.Minute
)

// Converter runs a conversion request
type Converter interface {
	Convert(ctx context.Context, req *classify.Request) *orchestrator.Outcome
}

// commonArgs are the arguments shared by both tools
type commonArgs struct {
	OutputFormat       string
	MaxLength          int
	Timeout            time.Duration
	IncludeFrontmatter bool
}

func parseCommonArgs(args map[string]any) (commonArgs, error) {
	parsed := commonArgs{
		OutputFormat:       formatMarkdown,
		IncludeFrontmatter: true,
	}

	if v, ok := args["output_format"].(string); ok && v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != formatMarkdown && v != formatJSON {
			return parsed, fmt.Errorf("output_format must be 'markdown' or 'json', got '%s'", v)
		}
		parsed.OutputFormat = v
	}
	if v, ok := args["max_length"].(float64); ok {
		if v < 0 {
			return parsed, fmt.Errorf("max_length must not be negative")
		}
		parsed.MaxLength = int(v)
	}
	if v, ok := args["timeout"].(float64); ok {
		if v < 0 {
			return parsed, fmt.Errorf("timeout must not be negative")
		}
		parsed.Timeout = time.Duration(v * float64(time.Second))
	}
	if v, ok := args["include_frontmatter"].(bool); ok {
		parsed.IncludeFrontmatter = v
	}
	return parsed, nil
}

func (a commonArgs) options() classify.Options {
	return classify.Options{
		Timeout:            a.Timeout,
		MaxLength:          a.MaxLength,
		IncludeFrontmatter: a.IncludeFrontmatter,
	}
}

// frontmatter is the YAML header prepended to markdown output
type frontmatter struct {
	Source         string   `yaml:"source"`
	SourceType     string   `yaml:"source_type"`
	DetectedFormat string   `yaml:"detected_format,omitempty"`
	Title          string   `yaml:"title,omitempty"`
	SourceSize     int      `yaml:"source_size"`
	MarkdownSize   int      `yaml:"markdown_size"`
	Warnings       []string `yaml:"warnings,omitempty"`
}

// withFrontmatter prepends YAML metadata between --- fences
func withFrontmatter(markdown string, meta orchestrator.Metadata) (string, error) {
	header, err := yaml.Marshal(frontmatter{
		Source:         meta.Source,
		SourceType:     meta.SourceType,
		DetectedFormat: meta.DetectedFormat,
		Title:          meta.Title,
		SourceSize:     meta.SourceSize,
		MarkdownSize:   meta.MarkdownSize,
		Warnings:       meta.Warnings,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	return "---\n" + string(header) + "---\n\n" + markdown, nil
}

type jsonResult struct {
	Success  bool                  `json:"success"`
	Markdown string                `json:"markdown"`
	Metadata orchestrator.Metadata `json:"metadata"`
}

// render turns an outcome into a tool result in the requested format
func render(out *orchestrator.Outcome, args commonArgs) (*mcp.CallToolResult, error) {
	if out.Err != nil {
		return tools.ErrorResult(out.Err), nil
	}

	if args.OutputFormat == formatJSON {
		return tools.NewToolResultJSON(jsonResult{
			Success:  true,
			Markdown: out.Markdown,
			Metadata: out.Metadata,
		})
	}

	text := out.Markdown
	if args.IncludeFrontmatter {
		var err error
		if text, err = withFrontmatter(out.Markdown, out.Metadata); err != nil {
			return nil, err
		}
	}
	return mcp.NewToolResultText(text), nil
}

func invalidArgs(err error) *mcp.CallToolResult {
	return tools.ErrorResult(taxonomy.InvalidInput("Invalid parameters: " + err.Error()))
}
