// Command mock-backend runs a deterministic DeepSeek-compatible API server
// for manual testing. It serves the four endpoints the MCP tools front,
// streaming and non-streaming, including the /beta completions path.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", handleChatCompletions)
	mux.HandleFunc("POST /completions", handleCompletions)
	mux.HandleFunc("POST /beta/completions", handleCompletions)
	mux.HandleFunc("GET /models", handleModels)
	mux.HandleFunc("GET /user/balance", handleBalance)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Prompt   string        `json:"prompt"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// --- Handlers ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = "deepseek-chat"
	}

	// Simulate a transient reasoner outage so the fallback path can be
	// exercised end to end.
	if model == "deepseek-reasoner" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"reasoner temporarily unavailable","type":"server_error"}}`))
		return
	}

	text := replyFor(lastUserMessage(&req))

	if req.Stream {
		streamChat(w, model, text)
		return
	}

	resp := map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	writeJSON(w, resp)
}

func handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	// The stable path rejects FIM completions, steering clients to /beta
	// the way the real API does.
	if !strings.HasPrefix(r.URL.Path, "/beta/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"completions requires the beta base url","type":"invalid_request_error"}}`))
		return
	}

	model := req.Model
	if model == "" {
		model = "deepseek-chat"
	}
	text := " world"

	if req.Stream {
		streamCompletion(w, model, text)
		return
	}

	resp := map[string]any{
		"id":      "cmpl-mock",
		"object":  "text_completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{
			map[string]any{"index": 0, "text": text, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 4, "completion_tokens": 2, "total_tokens": 6},
	}
	writeJSON(w, resp)
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "deepseek-chat", "object": "model", "owned_by": "deepseek"},
			{"id": "deepseek-reasoner", "object": "model", "owned_by": "deepseek"},
		},
	})
}

func handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"is_available": true,
		"balance_infos": []map[string]any{
			{"currency": "USD", "total_balance": "42.00", "granted_balance": "0.00", "topped_up_balance": "42.00"},
		},
	})
}

// --- Streaming ---

func streamChat(w http.ResponseWriter, model, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	for _, token := range tokenize(text) {
		writeChunk(w, map[string]any{
			"id":      "chatcmpl-mock-stream",
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   model,
			"choices": []any{
				map[string]any{"index": 0, "delta": map[string]any{"content": token}, "finish_reason": nil},
			},
		})
		flusher.Flush()
	}

	writeChunk(w, map[string]any{
		"id":      "chatcmpl-mock-stream",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{
			map[string]any{"index": 0, "delta": map[string]any{}, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	flusher.Flush()

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func streamCompletion(w http.ResponseWriter, model, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	for _, token := range tokenize(text) {
		writeChunk(w, map[string]any{
			"id":      "cmpl-mock-stream",
			"object":  "text_completion",
			"created": time.Now().Unix(),
			"model":   model,
			"choices": []any{
				map[string]any{"index": 0, "text": token, "finish_reason": nil},
			},
		})
		flusher.Flush()
	}

	writeChunk(w, map[string]any{
		"id":      "cmpl-mock-stream",
		"object":  "text_completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{
			map[string]any{"index": 0, "text": "", "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 4, "completion_tokens": 2, "total_tokens": 6},
	})
	flusher.Flush()

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeChunk(w http.ResponseWriter, chunk map[string]any) {
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func tokenize(text string) []string {
	words := strings.SplitAfter(text, " ")
	out := make([]string, 0, len(words))
	for _, word := range words {
		if word != "" {
			out = append(out, word)
		}
	}
	return out
}

func replyFor(prompt string) string {
	if strings.Contains(strings.ToLower(prompt), "count from 1 to 5") {
		return "1, 2, 3, 4, 5"
	}
	return "Hello, nice day!"
}

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			if s, ok := req.Messages[i].Content.(string); ok {
				return s
			}
		}
	}
	return ""
}
