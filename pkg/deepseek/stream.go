package deepseek

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// StreamChunk is one decoded SSE event from a streaming completion
// response. Chat chunks carry incremental content in choices[].delta,
// plain completion chunks in choices[].text.
type StreamChunk struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Choices []ChunkChoice   `json:"choices"`
	Usage   json.RawMessage `json:"usage"`
}

// ChunkChoice is a single choice entry inside a stream chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	Text         *string    `json:"text"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta holds the incremental message fragments of a chat chunk.
type ChunkDelta struct {
	Content          *string `json:"content"`
	ReasoningContent *string `json:"reasoning_content"`
}

// readSSEChunks consumes a server-sent-events body to completion and
// returns the decoded chunks in arrival order.
//
// Lines without the "data:" prefix (heartbeats, comments, blank lines) are
// skipped. The literal "[DONE]" marker ends the stream early and is not an
// error. Individual data lines that fail to parse as JSON are dropped
// silently so a partial line does not abort an otherwise-good stream.
func readSSEChunks(body io.Reader) ([]StreamChunk, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var chunks []StreamChunk
	for scanner.Scan() {
		line := scanner.Text()

		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return chunks, nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			slog.Debug("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", truncate(data, 200),
			)
			continue
		}
		chunks = append(chunks, chunk)
	}

	if err := scanner.Err(); err != nil {
		return nil, newTransportError(err)
	}
	return chunks, nil
}

// AggregateChatChunks reconstructs a whole chat completion response from
// streamed chunks, matching the shape of the non-streaming endpoint.
// Content is the in-order concatenation of all delta.content fragments;
// reasoning fragments are concatenated separately and the field is omitted
// when none appeared. finish_reason and usage are the last non-null values
// seen. An empty chunk slice yields a minimal valid empty response.
func AggregateChatChunks(chunks []StreamChunk, fallbackModel string) map[string]any {
	now := time.Now().Unix()

	if len(chunks) == 0 {
		return map[string]any{
			"id":      fmt.Sprintf("chatcmpl-stream-%d", now),
			"object":  "chat.completion",
			"created": now,
			"model":   fallbackModel,
			"choices": []any{
				map[string]any{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": ""},
					"finish_reason": nil,
				},
			},
			"usage": nil,
		}
	}

	first := chunks[0]
	last := chunks[len(chunks)-1]

	var content, reasoning strings.Builder
	var sawReasoning bool
	var finishReason *string

	for _, chunk := range chunks {
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != nil {
				content.WriteString(*choice.Delta.Content)
			}
			if choice.Delta.ReasoningContent != nil {
				reasoning.WriteString(*choice.Delta.ReasoningContent)
				sawReasoning = true
			}
			if choice.FinishReason != nil {
				finishReason = choice.FinishReason
			}
		}
	}

	message := map[string]any{
		"role":    "assistant",
		"content": content.String(),
	}
	if sawReasoning {
		message["reasoning_content"] = reasoning.String()
	}

	return map[string]any{
		"id":      chunkID(first, "chatcmpl-stream", now),
		"object":  "chat.completion",
		"created": chunkCreated(first, last, now),
		"model":   chunkModel(first, fallbackModel),
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       message,
				"finish_reason": finishValue(finishReason),
			},
		},
		"usage": usageValue(last.Usage),
	}
}

// AggregateCompletionChunks is the plain-completion analogue of
// AggregateChatChunks: it concatenates choices[].text fragments and has no
// reasoning field.
func AggregateCompletionChunks(chunks []StreamChunk, fallbackModel string) map[string]any {
	now := time.Now().Unix()

	if len(chunks) == 0 {
		return map[string]any{
			"id":      fmt.Sprintf("cmpl-stream-%d", now),
			"object":  "text_completion",
			"created": now,
			"model":   fallbackModel,
			"choices": []any{
				map[string]any{"index": 0, "text": "", "finish_reason": nil},
			},
			"usage": nil,
		}
	}

	first := chunks[0]
	last := chunks[len(chunks)-1]

	var text strings.Builder
	var finishReason *string

	for _, chunk := range chunks {
		for _, choice := range chunk.Choices {
			if choice.Text != nil {
				text.WriteString(*choice.Text)
			}
			if choice.FinishReason != nil {
				finishReason = choice.FinishReason
			}
		}
	}

	return map[string]any{
		"id":      chunkID(first, "cmpl-stream", now),
		"object":  "text_completion",
		"created": chunkCreated(first, last, now),
		"model":   chunkModel(first, fallbackModel),
		"choices": []any{
			map[string]any{
				"index":         0,
				"text":          text.String(),
				"finish_reason": finishValue(finishReason),
			},
		},
		"usage": usageValue(last.Usage),
	}
}

func chunkID(first StreamChunk, prefix string, now int64) string {
	if first.ID != "" {
		return first.ID
	}
	return fmt.Sprintf("%s-%d", prefix, now)
}

func chunkCreated(first, last StreamChunk, now int64) int64 {
	if last.Created != 0 {
		return last.Created
	}
	if first.Created != 0 {
		return first.Created
	}
	return now
}

func chunkModel(first StreamChunk, fallbackModel string) string {
	if first.Model != "" {
		return first.Model
	}
	return fallbackModel
}

// finishValue converts a *string finish reason to its JSON value (nil when
// no chunk carried one).
func finishValue(reason *string) any {
	if reason == nil {
		return nil
	}
	return *reason
}

// usageValue decodes the raw usage field of the last chunk, preserving its
// structure. Absent or null usage stays null in the aggregate.
func usageValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var usage any
	if err := json.Unmarshal(raw, &usage); err != nil {
		return nil
	}
	return usage
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
