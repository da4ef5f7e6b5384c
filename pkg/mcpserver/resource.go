package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// EndpointsResourceURI identifies the static endpoint manifest resource.
const EndpointsResourceURI = "deepseek://api/endpoints"

// EndpointInfo is one entry of the endpoint manifest, mapping an upstream
// API endpoint to the tool that fronts it.
type EndpointInfo struct {
	Endpoint    string `json:"endpoint"`
	Method      string `json:"method"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
}

// endpointManifest lists the upstream endpoints this server exposes.
var endpointManifest = []EndpointInfo{
	{
		Endpoint:    "/chat/completions",
		Method:      "POST",
		Tool:        "chat_completion",
		Description: "Chat Completions API (streaming and non-streaming)",
	},
	{
		Endpoint:    "/completions",
		Method:      "POST",
		Tool:        "completion",
		Description: "Text/FIM Completions API (streaming and non-streaming)",
	},
	{
		Endpoint:    "/models",
		Method:      "GET",
		Tool:        "list_models",
		Description: "List available DeepSeek models",
	},
	{
		Endpoint:    "/user/balance",
		Method:      "GET",
		Tool:        "get_user_balance",
		Description: "Retrieve account balance",
	},
}

func (s *Server) addEndpointsResource(server *mcp.Server) {
	server.AddResource(&mcp.Resource{
		URI:         EndpointsResourceURI,
		Name:        "api_endpoints",
		Description: "Manifest of DeepSeek API endpoints exposed as tools",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		data, err := json.MarshalIndent(map[string]any{"endpoints": endpointManifest}, "", "  ")
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      EndpointsResourceURI,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	})
}

func (s *Server) addChatStarterPrompt(server *mcp.Server) {
	server.AddPrompt(&mcp.Prompt{
		Name:        "deepseek_chat_starter",
		Description: "Starter prompt for a DeepSeek chat task",
		Arguments: []*mcp.PromptArgument{
			{Name: "task", Description: "The task to perform", Required: true},
			{Name: "style", Description: "Response style (default: helpful)"},
			{Name: "model", Description: "Model to suggest (default: configured default model)"},
		},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		task := req.Params.Arguments["task"]
		style := req.Params.Arguments["style"]
		if style == "" {
			style = "helpful"
		}
		model := req.Params.Arguments["model"]
		if model == "" {
			model = s.api.Config().DefaultModel
		}

		text := fmt.Sprintf("Use model: %s\nStyle: %s\nTask: %s", model, style, task)
		return &mcp.GetPromptResult{
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: text}},
			},
		}, nil
	})
}
