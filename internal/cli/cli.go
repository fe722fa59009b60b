// Package cli runs the registered MCP tools directly from the command line, without
// starting an MCP server. Results are rendered the same way an MCP client would see them.
package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/registry"
)

// OutputFormat controls how tool results are rendered
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// ErrToolFailed is returned when a tool ran but reported an error result
var ErrToolFailed = errors.New("tool returned an error")

// fileFlag reads a local file into the content and filename arguments of read_file
const fileFlag = "file"

// Runner executes tools from the registry
type Runner struct {
	logger *logrus.Logger
	cache  *sync.Map
	output OutputFormat
	out    io.Writer
	// readFile is swapped in tests
	readFile func(string) ([]byte, error)
}

// NewRunner creates a Runner writing to out
func NewRunner(logger *logrus.Logger, cache *sync.Map, output OutputFormat, out io.Writer) *Runner {
	return &Runner{logger: logger, cache: cache, output: output, out: out, readFile: os.ReadFile}
}

// ListTools prints the registered tools with the first line of their description
func (r *Runner) ListTools() error {
	names := registry.GetEnabledToolNames()

	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		tool, ok := registry.GetTool(name)
		if !ok {
			continue
		}
		entries = append(entries, entry{Name: name, Description: firstLine(tool.Definition().Description)})
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, entries)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Description)
	}
	return w.Flush()
}

// HelpTool prints the parameters of a single tool as command line flags
func (r *Runner) HelpTool(name string) error {
	def, ok := lookup(name)
	if !ok {
		return unknownTool(name)
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, def)
	}

	_, _ = fmt.Fprintf(r.out, "Tool: %s\n\n", def.Name)
	if def.Description != "" {
		_, _ = fmt.Fprintf(r.out, "%s\n\n", def.Description)
	}

	props := def.InputSchema.Properties
	if len(props) == 0 {
		_, _ = fmt.Fprintln(r.out, "No parameters.")
		return nil
	}

	required := make(map[string]bool, len(def.InputSchema.Required))
	for _, name := range def.InputSchema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	slices.Sort(names)

	_, _ = fmt.Fprintln(r.out, "Parameters:")
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, pName := range names {
		pMap, ok := props[pName].(map[string]any)
		if !ok {
			continue
		}
		pType, _ := pMap["type"].(string)
		pDesc, _ := pMap["description"].(string)

		suffix := ""
		if required[pName] {
			suffix = " (required)"
		}
		_, _ = fmt.Fprintf(w, "  --%s\t%s\t%s%s%s\n", toFlagName(pName), pType, firstLine(pDesc), suffix, formatEnum(pMap))
	}
	if def.Name == "read_file" {
		_, _ = fmt.Fprintf(w, "  --%s\tstring\tPath of a local file, sent as content and filename\n", fileFlag)
	}
	return w.Flush()
}

// RunTool executes a tool with arguments given as --key=value flags, bare --flag booleans
// or a single JSON object. Flags win over JSON keys.
func (r *Runner) RunTool(ctx context.Context, name string, args []string) error {
	def, ok := lookup(name)
	if !ok {
		return unknownTool(name)
	}

	params, err := parseArgs(args, def)
	if err != nil {
		return fmt.Errorf("argument error: %w", err)
	}

	if path, ok := params[fileFlag].(string); ok {
		delete(params, fileFlag)
		data, err := r.readFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		params["content"] = base64.StdEncoding.EncodeToString(data)
		if _, set := params["filename"]; !set {
			params["filename"] = filepath.Base(path)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"tool": def.Name,
		"args": len(params),
	}).Debug("Running tool from command line")

	result, err := registry.Execute(ctx, def.Name, params)
	if err != nil {
		return fmt.Errorf("tool error: %w", err)
	}
	return r.renderResult(result)
}

func lookup(name string) (mcp.Tool, bool) {
	for _, candidate := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		if tool, ok := registry.GetTool(candidate); ok {
			return tool.Definition(), true
		}
	}
	return mcp.Tool{}, false
}

func unknownTool(name string) error {
	return fmt.Errorf("unknown tool: %s (available: %s)", name, strings.Join(registry.GetEnabledToolNames(), ", "))
}

// schemaInfo maps flag names to parameters and parameters to their JSON schema types
type schemaInfo struct {
	types       map[string]string
	flagToParam map[string]string
}

func buildSchemaInfo(def mcp.Tool) schemaInfo {
	info := schemaInfo{
		types:       make(map[string]string, len(def.InputSchema.Properties)),
		flagToParam: make(map[string]string, len(def.InputSchema.Properties)),
	}
	for name, prop := range def.InputSchema.Properties {
		if pm, ok := prop.(map[string]any); ok {
			if t, ok := pm["type"].(string); ok {
				info.types[name] = t
			}
		}
		info.flagToParam[toFlagName(name)] = name
	}
	return info
}

func (s schemaInfo) param(flagName string) string {
	if actual, ok := s.flagToParam[flagName]; ok {
		return actual
	}
	return strings.ReplaceAll(flagName, "-", "_")
}

func parseArgs(args []string, def mcp.Tool) (map[string]any, error) {
	params := make(map[string]any)
	schema := buildSchemaInfo(def)
	var fromJSON map[string]any

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case strings.HasPrefix(arg, "{"):
			if err := json.Unmarshal([]byte(arg), &fromJSON); err != nil {
				return nil, fmt.Errorf("invalid JSON argument: %w", err)
			}

		case strings.HasPrefix(arg, "--"):
			stripped := strings.TrimPrefix(arg, "--")
			if flagName, raw, found := strings.Cut(stripped, "="); found {
				name := schema.param(flagName)
				params[name] = coerceValue(raw, schema.types[name])
				continue
			}

			name := schema.param(stripped)
			if schema.types[name] == "boolean" {
				params[name] = true
				continue
			}
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("flag --%s requires a value", stripped)
			}
			params[name] = coerceValue(args[i], schema.types[name])

		default:
			return nil, fmt.Errorf("unexpected argument: %s (use --key=value flags or pass a JSON object)", arg)
		}
	}

	for k, v := range fromJSON {
		if _, exists := params[k]; !exists {
			params[k] = v
		}
	}
	return params, nil
}

// coerceValue converts a flag value to the type the schema declares
func coerceValue(raw, schemaType string) any {
	switch schemaType {
	case "number", "integer":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
		switch strings.ToLower(raw) {
		case "yes":
			return true
		case "no":
			return false
		}
	}
	return raw
}

func (r *Runner) renderResult(result *mcp.CallToolResult) error {
	if result == nil {
		return nil
	}

	if r.output == OutputJSON {
		if err := writeJSON(r.out, result); err != nil {
			return err
		}
	} else {
		for _, content := range result.Content {
			if text, ok := content.(mcp.TextContent); ok {
				_, _ = fmt.Fprintln(r.out, text.Text)
			}
		}
	}

	if result.IsError {
		return ErrToolFailed
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	before, _, _ := strings.Cut(s, "\n")
	return before
}

func toFlagName(s string) string {
	return strings.ReplaceAll(s, "_", "-")
}

func formatEnum(pMap map[string]any) string {
	var vals []string
	switch enum := pMap["enum"].(type) {
	case []string:
		vals = enum
	case []any:
		for _, v := range enum {
			vals = append(vals, fmt.Sprint(v))
		}
	}
	if len(vals) == 0 {
		return ""
	}
	return " [" + strings.Join(vals, "|") + "]"
}
