// Package mcpserver publishes the tool registry over the Model Context Protocol.
// Calls go through the same dispatcher as HTTP and the assistant.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
)

const (
	ServerName    = "chative-commerce-tools"
	ServerVersion = "1.0.0"

	// Reserved argument keys carrying the caller context; they never reach the tool.
	CallerTextArg = "callerText"
	CallerIDArg   = "callerId"
)

type ToolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// New returns an MCP server with one tool per registry entry.
func New(registry *toolx.Registry, dispatcher contractx.Dispatcher) (*server.MCPServer, error) {
	if registry == nil || dispatcher == nil {
		return nil, errors.New("registry and dispatcher are required")
	}

	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(true))
	for _, t := range registry.Tools() {
		s.AddTool(Describe(t), Handler(t.Name, dispatcher))
	}
	return s, nil
}

// Describe converts a registry tool into its MCP definition.
func Describe(t *toolx.Tool) mcp.Tool {
	props, required := t.SchemaProperties()
	props[CallerTextArg] = map[string]any{
		"type":        "string",
		"description": "Verbatim text of the end user's message",
	}
	props[CallerIDArg] = map[string]any{
		"type":        "string",
		"description": "Identity of the end user",
	}

	desc := t.Description
	if t.Elevated() {
		desc += " Requires elevated privilege."
	}
	return mcp.Tool{
		Name:        t.Name,
		Description: desc,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}
}

// Handler dispatches one MCP call. The envelope is returned as text so the
// client sees the same result shape as every other surface.
func Handler(name string, dispatcher contractx.Dispatcher) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		for k, v := range req.GetArguments() {
			args[k] = v
		}

		caller := contractx.CallerContext{
			Text:     popString(args, CallerTextArg),
			CallerID: popString(args, CallerIDArg),
		}

		env := dispatcher.Dispatch(ctx, name, args, caller)
		payload, err := json.Marshal(env)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("component", "mcp").Str("tool", name).Msg("encode envelope failed")
			return mcp.NewToolResultError("internal error"), nil
		}

		result := mcp.NewToolResultText(string(payload))
		result.IsError = !env.OK()
		return result, nil
	}
}

func popString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	delete(args, key)
	return strings.TrimSpace(v)
}
