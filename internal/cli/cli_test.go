package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/md-server/internal/registry"
	"github.com/sammcj/md-server/internal/testutil"
)

type recordingTool struct {
	def     mcp.Tool
	args    map[string]any
	failing bool
}

func (r *recordingTool) Definition() mcp.Tool {
	return r.def
}

func (r *recordingTool) Execute(_ context.Context, _ *logrus.Logger, _ *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	r.args = args
	if r.failing {
		return mcp.NewToolResultError("CONVERSION_FAILED"), nil
	}
	return mcp.NewToolResultText("# converted"), nil
}

func setupTools(t *testing.T) (*recordingTool, *recordingTool) {
	t.Helper()
	readURL := &recordingTool{def: mcp.NewTool("read_url",
		mcp.WithDescription("Fetch a URL and convert it to markdown\nMore detail."),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL to read")),
		mcp.WithString("output_format", mcp.Enum("markdown", "json")),
		mcp.WithNumber("max_length"),
		mcp.WithBoolean("render_js"),
	)}
	readFile := &recordingTool{def: mcp.NewTool("read_file",
		mcp.WithDescription("Convert a base64 document to markdown"),
		mcp.WithString("content", mcp.Required()),
		mcp.WithString("filename"),
	)}

	registry.Init(testutil.CreateTestLogger())
	registry.Register(readURL)
	registry.Register(readFile)
	return readURL, readFile
}

func TestRunner_ListTools(t *testing.T) {
	setupTools(t)

	tests := []struct {
		name   string
		output OutputFormat
		check  func(t *testing.T, out string)
	}{
		{
			name:   "text",
			output: OutputText,
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "read_url")
				assert.Contains(t, out, "Fetch a URL and convert it to markdown")
				assert.NotContains(t, out, "More detail")
			},
		},
		{
			name:   "json",
			output: OutputJSON,
			check: func(t *testing.T, out string) {
				var entries []map[string]string
				require.NoError(t, json.Unmarshal([]byte(out), &entries))
				require.Len(t, entries, 2)
				assert.Equal(t, "read_file", entries[0]["name"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			r := NewRunner(testutil.CreateTestLogger(), &sync.Map{}, tt.output, &out)
			require.NoError(t, r.ListTools())
			tt.check(t, out.String())
		})
	}
}

func TestRunner_HelpTool(t *testing.T) {
	setupTools(t)

	var out bytes.Buffer
	r := NewRunner(testutil.CreateTestLogger(), &sync.Map{}, OutputText, &out)

	require.NoError(t, r.HelpTool("read-url"))
	help := out.String()
	assert.Contains(t, help, "Tool: read_url")
	assert.Contains(t, help, "--url")
	assert.Contains(t, help, "(required)")
	assert.Contains(t, help, "--output-format")
	assert.Contains(t, help, "[markdown|json]")

	assert.Error(t, r.HelpTool("nope"))
}

func TestRunner_RunTool(t *testing.T) {
	readURL, _ := setupTools(t)

	tests := []struct {
		name     string
		args     []string
		wantArgs map[string]any
		wantErr  bool
	}{
		{
			name:     "flags with coercion",
			args:     []string{"--url=https://example.com", "--max-length", "500", "--render-js"},
			wantArgs: map[string]any{"url": "https://example.com", "max_length": 500.0, "render_js": true},
		},
		{
			name:     "json object",
			args:     []string{`{"url":"https://example.com","output_format":"json"}`},
			wantArgs: map[string]any{"url": "https://example.com", "output_format": "json"},
		},
		{
			name:     "flags win over json",
			args:     []string{"--url=https://flag.example", `{"url":"https://json.example"}`},
			wantArgs: map[string]any{"url": "https://flag.example"},
		},
		{
			name:     "explicit boolean",
			args:     []string{"--url=https://example.com", "--render-js=false"},
			wantArgs: map[string]any{"url": "https://example.com", "render_js": false},
		},
		{name: "missing value", args: []string{"--url"}, wantErr: true},
		{name: "stray argument", args: []string{"https://example.com"}, wantErr: true},
		{name: "bad json", args: []string{"{not json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readURL.args = nil
			var out bytes.Buffer
			r := NewRunner(testutil.CreateTestLogger(), &sync.Map{}, OutputText, &out)

			err := r.RunTool(context.Background(), "read_url", tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantArgs, readURL.args)
			assert.Equal(t, "# converted\n", out.String())
		})
	}
}

func TestRunner_RunTool_File(t *testing.T) {
	_, readFile := setupTools(t)

	var out bytes.Buffer
	r := NewRunner(testutil.CreateTestLogger(), &sync.Map{}, OutputText, &out)
	r.readFile = func(path string) ([]byte, error) {
		if path == "/docs/report.pdf" {
			return []byte("%PDF-1.7"), nil
		}
		return nil, errors.New("no such file")
	}

	require.NoError(t, r.RunTool(context.Background(), "read_file", []string{"--file=/docs/report.pdf"}))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.7")), readFile.args["content"])
	assert.Equal(t, "report.pdf", readFile.args["filename"])
	assert.NotContains(t, readFile.args, "file")

	assert.Error(t, r.RunTool(context.Background(), "read_file", []string{"--file=/missing"}))
}

func TestRunner_RunTool_Failures(t *testing.T) {
	readURL, _ := setupTools(t)
	readURL.failing = true

	var out bytes.Buffer
	r := NewRunner(testutil.CreateTestLogger(), &sync.Map{}, OutputJSON, &out)

	err := r.RunTool(context.Background(), "read_url", []string{"--url=https://example.com"})
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, out.String(), "CONVERSION_FAILED")

	err = r.RunTool(context.Background(), "read_uri", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: read_file, read_url")
}
