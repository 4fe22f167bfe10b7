package search

import (
	"context"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type WebSearchParams struct {
	Query       string `json:"query" mcp:"the search query"`
	SearchDepth string `json:"search_depth,omitempty" mcp:"basic or advanced, defaults to advanced"`
	MaxTokens   int    `json:"max_tokens,omitempty" mcp:"token budget for the returned context, defaults to 8000"`
}

// ToolServer exposes a Provider as the web_search MCP tool.
type ToolServer struct {
	provider Provider
}

func NewToolServer(p Provider) *ToolServer {
	return &ToolServer{provider: p}
}

// NewMCPServer builds an MCP server with the web_search tool registered.
func (s *ToolServer) NewMCPServer(version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "assistant-relay-search-mcp",
		Version: version,
	}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolName,
		Description: "Searches the web and returns a JSON list of {url, content} sources trimmed to a token budget",
	}, s.WebSearch)
	return server
}

func (s *ToolServer) WebSearch(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[WebSearchParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.Query == "" {
		return toolError("query is required"), nil
	}
	req := Request{Query: args.Query, Depth: args.SearchDepth, MaxTokens: args.MaxTokens}
	if req.Depth == "" {
		req.Depth = DepthAdvanced
	}
	if req.Depth != DepthBasic && req.Depth != DepthAdvanced {
		return toolError(fmt.Sprintf("unsupported search_depth %q", req.Depth)), nil
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	log.Printf("🔎 MCP Server: searching %q (depth=%s, max_tokens=%d)", req.Query, req.Depth, req.MaxTokens)
	out, err := s.provider.Search(ctx, req)
	if err != nil {
		return toolError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: out}},
	}, nil
}

func toolError(msg string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
