package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/angleito/seiron-runtime/pkg/tools"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// ToolAdapter wraps a remote MCP tool so it can be registered in the
// local registry and executed through the engine like any other tool.
type ToolAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
	schema tools.Schema
}

// NewToolAdapter builds a tools.Tool backed by an MCP tool definition
// and caller.
func NewToolAdapter(tool mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if tool.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &ToolAdapter{
		tool:   tool,
		caller: caller,
		schema: schemaFromMCP(tool),
	}, nil
}

func (t *ToolAdapter) Name() string        { return t.tool.Name }
func (t *ToolAdapter) Description() string { return t.tool.Description }
func (t *ToolAdapter) Category() string    { return "mcp" }
func (t *ToolAdapter) Schema() tools.Schema {
	return t.schema
}

// Execute invokes the remote MCP tool.
func (t *ToolAdapter) Execute(ctx context.Context, params map[string]any) (any, error) {
	result, err := t.caller.CallTool(ctx, t.tool.Name, params)
	if err != nil {
		return nil, err
	}
	return toolResultToOutput(result)
}

// schemaFromMCP converts an MCP input schema into the local parameter
// model. Constraints beyond type and required are not round-tripped; the
// remote side enforces its own schema.
func schemaFromMCP(tool mcp.Tool) tools.Schema {
	schema := tool.InputSchema

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var params []tools.Param
	for name, raw := range schema.Properties {
		p := tools.Param{Name: name, Required: required[name]}
		if prop, ok := raw.(map[string]any); ok {
			if typ, ok := prop["type"].(string); ok {
				p.Type = paramType(typ)
			}
			if desc, ok := prop["description"].(string); ok {
				p.Description = desc
			}
		}
		params = append(params, p)
	}
	return tools.Schema{Params: params}
}

func paramType(jsonType string) tools.ParamType {
	switch jsonType {
	case "number", "integer":
		return tools.TypeNumber
	case "boolean":
		return tools.TypeBoolean
	case "array":
		return tools.TypeArray
	case "object":
		return tools.TypeObject
	default:
		return tools.TypeString
	}
}

func toolResultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New("mcp tool result is nil")
	}

	if result.IsError {
		return nil, fmt.Errorf("mcp tool returned error: %s", extractTextContent(result.Content))
	}

	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}

	if text := extractTextContent(result.Content); text != "" {
		return text, nil
	}

	return result, nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ tools.Tool = (*ToolAdapter)(nil)
