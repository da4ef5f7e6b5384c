package deepseek

// ChatParams holds the optional named parameters for a chat completion
// call. Pointer fields distinguish "absent" from zero values; absent fields
// are omitted from the request payload entirely. Extra is a free-form
// mapping merged into the payload last and may overwrite any field,
// including model, serving as the escape hatch for forward-compatible fields.
//
// Parameter values are not validated locally; the upstream API validates
// and its error is reported verbatim.
type ChatParams struct {
	Messages            []map[string]any
	Model               string
	Stream              bool
	Temperature         *float64
	TopP                *float64
	MaxTokens           *int
	MaxCompletionTokens *int
	Stop                any
	ResponseFormat      map[string]any
	Tools               []map[string]any
	ToolChoice          any
	Thinking            map[string]any
	Extra               map[string]any
}

// payload assembles the request body. Only explicitly supplied fields are
// present; model defaults to defaultModel when unset.
func (p ChatParams) payload(defaultModel string) map[string]any {
	body := map[string]any{
		"messages": p.Messages,
		"stream":   p.Stream,
	}

	model := p.Model
	if model == "" {
		model = defaultModel
	}
	body["model"] = model

	if p.Temperature != nil {
		body["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		body["top_p"] = *p.TopP
	}
	if p.MaxTokens != nil {
		body["max_tokens"] = *p.MaxTokens
	}
	if p.MaxCompletionTokens != nil {
		body["max_completion_tokens"] = *p.MaxCompletionTokens
	}
	if p.Stop != nil {
		body["stop"] = p.Stop
	}
	if p.ResponseFormat != nil {
		body["response_format"] = p.ResponseFormat
	}
	if p.Tools != nil {
		body["tools"] = p.Tools
	}
	if p.ToolChoice != nil {
		body["tool_choice"] = p.ToolChoice
	}
	if p.Thinking != nil {
		body["thinking"] = p.Thinking
	}

	for k, v := range p.Extra {
		body[k] = v
	}

	return body
}

// CompletionParams holds the optional named parameters for a plain (FIM)
// completion call. Semantics match ChatParams: absent fields are omitted,
// Extra is merged last and wins.
type CompletionParams struct {
	Prompt      string
	Model       string
	Stream      bool
	Suffix      *string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stop        any
	Extra       map[string]any
}

func (p CompletionParams) payload(defaultModel string) map[string]any {
	body := map[string]any{
		"prompt": p.Prompt,
		"stream": p.Stream,
	}

	model := p.Model
	if model == "" {
		model = defaultModel
	}
	body["model"] = model

	if p.Suffix != nil {
		body["suffix"] = *p.Suffix
	}
	if p.Temperature != nil {
		body["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		body["top_p"] = *p.TopP
	}
	if p.MaxTokens != nil {
		body["max_tokens"] = *p.MaxTokens
	}
	if p.Stop != nil {
		body["stop"] = p.Stop
	}

	for k, v := range p.Extra {
		body[k] = v
	}

	return body
}
