package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhenke/tiefsee/pkg/deepseek"
	"github.com/rhenke/tiefsee/pkg/observability"
)

// Name and Version identify this server during the MCP handshake.
const (
	Name    = "tiefsee"
	Version = "0.1.0"
)

// Server wires the DeepSeek client into MCP tool, resource, and prompt
// handlers.
type Server struct {
	api *deepseek.Client
}

// New creates the MCP server with all tools, resources, and prompts
// registered.
func New(client *deepseek.Client) *mcp.Server {
	s := &Server{api: client}

	server := mcp.NewServer(
		&mcp.Implementation{Name: Name, Version: Version},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_models",
		Description: "List available DeepSeek models (GET /models)",
	}, s.handleListModels)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_user_balance",
		Description: "Retrieve DeepSeek account balance (GET /user/balance)",
	}, s.handleGetUserBalance)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat_completion",
		Description: "Call DeepSeek chat completions (POST /chat/completions) with optional reasoner fallback",
	}, s.handleChatCompletion)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "completion",
		Description: "Call DeepSeek text/FIM completions (POST /completions) with automatic beta-base retry",
	}, s.handleCompletion)

	s.addEndpointsResource(server)
	s.addChatStarterPrompt(server)

	return server
}

// toolResult renders a value as a JSON text content tool result.
func toolResult(tool string, v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(tool, err), nil
	}
	observability.ToolCallsTotal.WithLabelValues(tool, "ok").Inc()
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

// toolError reports a failed tool call as an error result rather than a
// protocol error, so the upstream message reaches the calling agent.
func toolError(tool string, err error) *mcp.CallToolResult {
	observability.ToolCallsTotal.WithLabelValues(tool, "error").Inc()
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func (s *Server) handleListModels(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
	models, err := s.api.ListModels(ctx)
	if err != nil {
		return toolError("list_models", err), struct{}{}, nil
	}
	res, err := toolResult("list_models", models)
	return res, struct{}{}, err
}

func (s *Server) handleGetUserBalance(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
	balance, err := s.api.GetUserBalance(ctx)
	if err != nil {
		return toolError("get_user_balance", err), struct{}{}, nil
	}
	res, err := toolResult("get_user_balance", balance)
	return res, struct{}{}, err
}
