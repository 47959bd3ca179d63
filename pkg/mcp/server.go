// Package mcp exposes the tool registry over the Model Context Protocol.
// Calls received over MCP go through the full execution pipeline, so
// remote callers get validation, rate limiting, caching, circuit
// breaking, and retry exactly like local callers.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/angleito/seiron-runtime/pkg/tools"
)

// Server wraps the mcp-go server around a tool engine.
type Server struct {
	mcpServer *server.MCPServer
	engine    *tools.Engine
}

// NewServer creates an MCP server that dispatches tool calls through the
// given engine. Every active registration is exported with its schema.
func NewServer(name, version string, engine *tools.Engine) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version),
		engine:    engine,
	}
	for _, reg := range engine.Registry().List() {
		if reg.Status() == tools.StatusInactive {
			continue
		}
		s.exportTool(reg)
	}
	return s
}

func (s *Server) exportTool(reg *tools.Registration) {
	name := reg.Tool.Name()

	schema, err := json.Marshal(reg.Tool.Schema().JSONSchema())
	if err != nil {
		schema = []byte(`{"type":"object"}`)
	}
	tool := mcp.NewToolWithRawSchema(name, reg.Tool.Description(), schema)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		return s.dispatch(ctx, name, args), nil
	})
}

// dispatch runs one MCP tool call through the engine and converts the
// outcome to an MCP result. Failures are reported as tool errors, never
// as protocol errors.
func (s *Server) dispatch(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	result := s.engine.Execute(ctx, name, args, tools.WithSource("mcp"))
	if !result.Success {
		encoded, err := json.Marshal(result.Error)
		if err != nil {
			return mcp.NewToolResultError(result.Error.Error())
		}
		return mcp.NewToolResultError(string(encoded))
	}

	if text, ok := result.Data.(string); ok {
		return mcp.NewToolResultText(text)
	}
	encoded, err := json.Marshal(result.Data)
	if err != nil {
		return mcp.NewToolResultError("tool produced an unencodable result")
	}
	return mcp.NewToolResultText(string(encoded))
}

// ServeStdio starts the server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
