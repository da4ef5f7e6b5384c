package mcpserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhenke/tiefsee/pkg/deepseek"
)

// ChatCompletionInput is the argument schema of the chat_completion tool.
// Absent optional fields are omitted from the upstream payload entirely;
// extra_body entries are merged last and may override any field.
type ChatCompletionInput struct {
	Messages            []map[string]any `json:"messages" jsonschema_description:"Conversation messages, each with role and content"`
	Model               string           `json:"model,omitempty" jsonschema_description:"Model name; defaults to the configured default model"`
	Stream              bool             `json:"stream,omitempty" jsonschema_description:"Stream server-side and aggregate chunks client-side"`
	Temperature         *float64         `json:"temperature,omitempty" jsonschema_description:"Sampling temperature"`
	TopP                *float64         `json:"top_p,omitempty" jsonschema_description:"Nucleus sampling probability mass"`
	MaxTokens           *int             `json:"max_tokens,omitempty" jsonschema_description:"Maximum tokens to generate"`
	MaxCompletionTokens *int             `json:"max_completion_tokens,omitempty" jsonschema_description:"Maximum completion tokens"`
	Stop                any              `json:"stop,omitempty" jsonschema_description:"Stop sequence string or list of strings"`
	ResponseFormat      map[string]any   `json:"response_format,omitempty" jsonschema_description:"Response format specification, e.g. {\"type\":\"json_object\"}"`
	Tools               []map[string]any `json:"tools,omitempty" jsonschema_description:"Tool definitions offered to the model"`
	ToolChoice          any              `json:"tool_choice,omitempty" jsonschema_description:"Tool choice directive"`
	Thinking            map[string]any   `json:"thinking,omitempty" jsonschema_description:"Thinking/reasoning control options"`
	ExtraBody           map[string]any   `json:"extra_body,omitempty" jsonschema_description:"Raw fields merged into the request payload last; overrides anything"`
}

// CompletionInput is the argument schema of the completion tool.
type CompletionInput struct {
	Prompt      string         `json:"prompt" jsonschema_description:"Text to complete"`
	Model       string         `json:"model,omitempty" jsonschema_description:"Model name; defaults to the configured default model"`
	Stream      bool           `json:"stream,omitempty" jsonschema_description:"Stream server-side and aggregate chunks client-side"`
	Suffix      *string        `json:"suffix,omitempty" jsonschema_description:"Suffix after the completion (fill-in-the-middle)"`
	Temperature *float64       `json:"temperature,omitempty" jsonschema_description:"Sampling temperature"`
	TopP        *float64       `json:"top_p,omitempty" jsonschema_description:"Nucleus sampling probability mass"`
	MaxTokens   *int           `json:"max_tokens,omitempty" jsonschema_description:"Maximum tokens to generate"`
	Stop        any            `json:"stop,omitempty" jsonschema_description:"Stop sequence string or list of strings"`
	ExtraBody   map[string]any `json:"extra_body,omitempty" jsonschema_description:"Raw fields merged into the request payload last; overrides anything"`
}

func (s *Server) handleChatCompletion(ctx context.Context, req *mcp.CallToolRequest, input ChatCompletionInput) (*mcp.CallToolResult, struct{}, error) {
	if len(input.Messages) == 0 {
		return toolError("chat_completion", errors.New("messages must not be empty")), struct{}{}, nil
	}

	result, err := s.api.CreateChatCompletion(ctx, deepseek.ChatParams{
		Messages:            input.Messages,
		Model:               input.Model,
		Stream:              input.Stream,
		Temperature:         input.Temperature,
		TopP:                input.TopP,
		MaxTokens:           input.MaxTokens,
		MaxCompletionTokens: input.MaxCompletionTokens,
		Stop:                input.Stop,
		ResponseFormat:      input.ResponseFormat,
		Tools:               input.Tools,
		ToolChoice:          input.ToolChoice,
		Thinking:            input.Thinking,
		Extra:               input.ExtraBody,
	})
	if err != nil {
		return toolError("chat_completion", err), struct{}{}, nil
	}

	res, err := toolResult("chat_completion", result)
	return res, struct{}{}, err
}

func (s *Server) handleCompletion(ctx context.Context, req *mcp.CallToolRequest, input CompletionInput) (*mcp.CallToolResult, struct{}, error) {
	if input.Prompt == "" {
		return toolError("completion", errors.New("prompt must not be empty")), struct{}{}, nil
	}

	result, err := s.api.CreateCompletion(ctx, deepseek.CompletionParams{
		Prompt:      input.Prompt,
		Model:       input.Model,
		Stream:      input.Stream,
		Suffix:      input.Suffix,
		Temperature: input.Temperature,
		TopP:        input.TopP,
		MaxTokens:   input.MaxTokens,
		Stop:        input.Stop,
		Extra:       input.ExtraBody,
	})
	if err != nil {
		return toolError("completion", err), struct{}{}, nil
	}

	res, err := toolResult("completion", result)
	return res, struct{}{}, err
}
