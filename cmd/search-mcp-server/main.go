package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"assistant-relay/internal/search"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	apiKey := os.Getenv("TAVILY_API_KEY")
	if apiKey == "" {
		log.Fatal("❌ TAVILY_API_KEY environment variable is required")
	}

	log.Printf("🚀 Starting search MCP server")
	tools := search.NewToolServer(search.NewTavily(apiKey, os.Getenv("TAVILY_BASE_URL")))
	server := tools.NewMCPServer("1.0.0")

	log.Printf("📋 Registered tool: %s", search.ToolName)
	log.Printf("🔗 Starting server on stdin/stdout...")
	if err := server.Run(context.Background(), mcp.NewStdioTransport()); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
