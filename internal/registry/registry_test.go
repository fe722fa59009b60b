package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/md-server/internal/testutil"
)

type mockTool struct {
	name string
}

func (m *mockTool) Definition() mcp.Tool {
	return mcp.NewTool(m.name, mcp.WithDescription("mock tool"))
}

func (m *mockTool) Execute(_ context.Context, _ *logrus.Logger, _ *sync.Map, _ map[string]any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("ran " + m.name), nil
}

func TestRegisterAndExecute(t *testing.T) {
	Init(testutil.CreateTestLogger())
	Register(&mockTool{name: "read_url"})
	Register(&mockTool{name: "read_file"})

	assert.Equal(t, []string{"read_file", "read_url"}, GetEnabledToolNames())
	assert.Len(t, GetEnabledTools(), 2)
	assert.NotNil(t, GetCache())
	assert.NotNil(t, GetLogger())

	result, err := Execute(context.Background(), "read_url", nil)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "ran read_url", result.Content[0].(mcp.TextContent).Text)
}

func TestExecute_UnknownTool(t *testing.T) {
	Init(testutil.CreateTestLogger())
	Register(&mockTool{name: "read_url"})
	Register(&mockTool{name: "read_file"})

	result, err := Execute(context.Background(), "read_ur", nil)
	require.NoError(t, err)
	require.True(t, result.IsError)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "UNKNOWN_TOOL")
	assert.Contains(t, text, "Did you mean 'read_url'?")
}

func TestDisabledTools(t *testing.T) {
	defer testutil.WithEnv(t, "MD_SERVER_DISABLED_TOOLS", "read_file, other")()

	Init(testutil.CreateTestLogger())
	Register(&mockTool{name: "read_url"})
	Register(&mockTool{name: "read_file"})

	_, ok := GetTool("read_file")
	assert.False(t, ok)
	_, ok = GetTool("read_url")
	assert.True(t, ok)
}
