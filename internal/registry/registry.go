package registry

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/taxonomy"
	"github.com/sammcj/md-server/internal/tools"
)

var (
	// toolRegistry is a map of tool names to tool implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is a set of tool names to disable
	disabledTools = make(map[string]bool)

	mu sync.RWMutex

	// logger is the shared logger instance
	logger *logrus.Logger

	// cache is the shared cache instance
	cache *sync.Map
)

// Init initialises the registry and shared resources
func Init(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
	cache = &sync.Map{}
	toolRegistry = make(map[string]tools.Tool)

	parseDisabledTools()
}

// parseDisabledTools reads MD_SERVER_DISABLED_TOOLS, a comma separated list of tool names
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	for tool := range strings.SplitSeq(os.Getenv("MD_SERVER_DISABLED_TOOLS"), ",") {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled")
		}
	}
}

// Register adds a tool implementation to the registry unless it is disabled
func Register(tool tools.Tool) {
	mu.Lock()
	defer mu.Unlock()

	toolName := tool.Definition().Name
	if disabledTools[toolName] {
		if logger != nil {
			logger.WithField("tool", toolName).Debug("Tool not registered (disabled)")
		}
		return
	}

	toolRegistry[toolName] = tool
	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool successfully registered")
	}
}

// GetTool retrieves a tool by name
func GetTool(name string) (tools.Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()

	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns all registered tools
func GetEnabledTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()

	enabled := make(map[string]tools.Tool, len(toolRegistry))
	for name, tool := range toolRegistry {
		enabled[name] = tool
	}
	return enabled
}

// GetEnabledToolNames returns a sorted list of registered tool names
func GetEnabledToolNames() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	return logger
}

// GetCache returns the shared cache instance
func GetCache() *sync.Map {
	return cache
}

// Execute runs the named tool. Unknown names produce an UNKNOWN_TOOL error result listing
// the registered tools.
func Execute(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	tool, ok := GetTool(name)
	if !ok {
		return tools.ErrorResult(taxonomy.UnknownOperation(name, GetEnabledToolNames())), nil
	}
	return tool.Execute(ctx, GetLogger(), GetCache(), args)
}
