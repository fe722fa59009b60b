package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/taxonomy"
)

// Tool is the interface that all MCP tool implementations must satisfy
type Tool interface {
	// Definition returns the tool's definition for MCP registration
	Definition() mcp.Tool

	// Execute executes the tool's logic using shared resources (logger, cache) and parsed arguments
	Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error)
}

// toolError is the JSON shape of a failed tool call
type toolError struct {
	Success bool `json:"success"`
	Error   struct {
		Code        string         `json:"code"`
		Message     string         `json:"message"`
		Suggestions []string       `json:"suggestions,omitempty"`
		Details     map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// ErrorResult renders a taxonomy error as an MCP error result
func ErrorResult(err *taxonomy.Error) *mcp.CallToolResult {
	var body toolError
	body.Error.Code = err.Code()
	body.Error.Message = err.Message
	body.Error.Suggestions = err.Suggestions
	body.Error.Details = err.Details

	encoded, marshalErr := json.MarshalIndent(body, "", "  ")
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", err.Code(), err.Message))
	}
	return mcp.NewToolResultError(string(encoded))
}

// NewToolResultJSON renders data as an indented JSON text result
func NewToolResultJSON(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}
