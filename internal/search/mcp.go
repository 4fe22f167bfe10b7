package search

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolName is the tool the search MCP server registers.
const ToolName = "web_search"

// MCPClient runs searches through the search MCP server started as a
// subprocess over stdio.
type MCPClient struct {
	client  *mcp.Client
	session *mcp.ClientSession
}

func NewMCPClient() *MCPClient {
	return &MCPClient{}
}

// Connect starts the server binary at serverPath and opens a session.
// env is appended to the current environment of the subprocess.
func (m *MCPClient) Connect(ctx context.Context, serverPath string, env ...string) error {
	log.Printf("🔗 Connecting to search MCP server via stdio")

	m.client = mcp.NewClient(&mcp.Implementation{
		Name:    "assistant-relay",
		Version: "1.0.0",
	}, nil)

	if serverPath == "" {
		serverPath = "./search-mcp-server"
	}
	cmd := exec.CommandContext(ctx, serverPath)
	cmd.Env = append(os.Environ(), env...)

	session, err := m.client.Connect(ctx, mcp.NewCommandTransport(cmd))
	if err != nil {
		return fmt.Errorf("failed to connect to search MCP server: %w", err)
	}
	m.session = session
	log.Printf("✅ Connected to search MCP server")
	return nil
}

func (m *MCPClient) Close() error {
	if m.session != nil {
		return m.session.Close()
	}
	return nil
}

func (m *MCPClient) Search(ctx context.Context, req Request) (string, error) {
	if m.session == nil {
		return "", fmt.Errorf("search MCP session not connected")
	}
	result, err := m.session.CallTool(ctx, &mcp.CallToolParams{
		Name: ToolName,
		Arguments: map[string]any{
			"query":        req.Query,
			"search_depth": req.Depth,
			"max_tokens":   req.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("search MCP call failed: %w", err)
	}

	var text strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("search tool returned error: %s", text.String())
	}
	return text.String(), nil
}
