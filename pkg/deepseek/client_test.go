package deepseek

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		APIKey:                 "test-key",
		BaseURL:                baseURL,
		Timeout:                5 * time.Second,
		DefaultModel:           "deepseek-chat",
		EnableReasonerFallback: true,
		FallbackModel:          "deepseek-chat",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client := NewClient(cfg)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"deepseek-chat"}]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	raw, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "deepseek-chat" {
		t.Errorf("unexpected models response: %s", raw)
	}
}

func TestGetUserBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/balance" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"is_available":true}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	raw, err := client.GetUserBalance(context.Background())
	if err != nil {
		t.Fatalf("GetUserBalance failed: %v", err)
	}
	if !strings.Contains(string(raw), "is_available") {
		t.Errorf("unexpected balance response: %s", raw)
	}
}

func TestRequestJSONErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	_, err := client.ListModels(context.Background())

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Message != "invalid api key" {
		t.Errorf("message = %q, want upstream message", apiErr.Message)
	}
	if apiErr.Status == nil || *apiErr.Status != 401 {
		t.Errorf("status = %v, want 401", apiErr.Status)
	}
}

func TestRequestJSONInvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"truncated":`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	_, err := client.ListModels(context.Background())

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status == nil || *apiErr.Status != 200 {
		t.Errorf("status = %v, want original 200", apiErr.Status)
	}
	if !strings.Contains(apiErr.Message, "invalid JSON") {
		t.Errorf("message = %q, want invalid JSON mention", apiErr.Message)
	}
	// The decoder's own error must be carried along, not swallowed.
	if !strings.Contains(apiErr.Message, "unexpected end of JSON input") {
		t.Errorf("message = %q, want the parse error detail", apiErr.Message)
	}
}

func TestTransportErrorHasNoStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	client := testClient(t, server.URL, nil)
	_, err := client.ListModels(context.Background())

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != nil {
		t.Errorf("status = %v, want nil for transport-level failure", *apiErr.Status)
	}
	if apiErr.Message == "" {
		t.Error("transport error message must not be empty")
	}
}

func TestCreateChatCompletionDefaultsModel(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	result, err := client.CreateChatCompletion(context.Background(), ChatParams{
		Messages: []map[string]any{{"role": "user", "content": "hi"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}

	if gotBody["model"] != "deepseek-chat" {
		t.Errorf("request model = %v, want configured default", gotBody["model"])
	}
	if gotBody["stream"] != false {
		t.Errorf("request stream = %v, want false", gotBody["stream"])
	}
	if result.Fallback != nil {
		t.Errorf("fallback = %v, want nil on success", result.Fallback)
	}
	if result.StreamChunkCount != nil {
		t.Errorf("stream_chunk_count = %v, want nil on JSON path", *result.StreamChunkCount)
	}
}

func TestCreateChatCompletionReasonerFallback(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		model, _ := body["model"].(string)
		requests = append(requests, model)

		if model == "deepseek-reasoner" {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
			return
		}
		fmt.Fprintf(w, `{"id":"chatcmpl-fb","object":"chat.completion","model":%q,"choices":[]}`, model)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	result, err := client.CreateChatCompletion(context.Background(), ChatParams{
		Messages: []map[string]any{{"role": "user", "content": "hi"}},
		Model:    "deepseek-reasoner",
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected exactly 2 requests (original + one retry), got %d", len(requests))
	}
	if requests[0] != "deepseek-reasoner" || requests[1] != "deepseek-chat" {
		t.Errorf("request models = %v, want [deepseek-reasoner deepseek-chat]", requests)
	}

	if result.Fallback == nil {
		t.Fatal("expected fallback annotation")
	}
	if result.Fallback.FromModel != "deepseek-reasoner" || result.Fallback.ToModel != "deepseek-chat" {
		t.Errorf("fallback = %+v, want reasoner -> chat", result.Fallback)
	}
	if result.Fallback.Reason != "rate limit exceeded" {
		t.Errorf("fallback reason = %q, want triggering error message", result.Fallback.Reason)
	}
}

func TestCreateChatCompletionNoFallbackForOtherModels(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	_, err := client.CreateChatCompletion(context.Background(), ChatParams{
		Messages: []map[string]any{{"role": "user", "content": "hi"}},
		Model:    "deepseek-chat",
	})

	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if count != 1 {
		t.Errorf("expected exactly 1 request, got %d", count)
	}
}

func TestCreateChatCompletionNoSecondFallback(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"still down"}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	_, err := client.CreateChatCompletion(context.Background(), ChatParams{
		Messages: []map[string]any{{"role": "user", "content": "hi"}},
		Model:    "deepseek-reasoner",
	})

	if err == nil {
		t.Fatal("expected retry error to propagate")
	}
	if count != 2 {
		t.Errorf("expected exactly 2 requests (no second fallback), got %d", count)
	}
	apiErr := err.(*APIError)
	if apiErr.Message != "still down" {
		t.Errorf("propagated message = %q, want the retry's error", apiErr.Message)
	}
}

func TestCreateChatCompletionStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"chatcmpl-s","model":"deepseek-chat","created":1700000000,"choices":[{"index":0,"delta":{"content":"HELLO_"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"chatcmpl-s","model":"deepseek-chat","created":1700000001,"choices":[{"index":0,"delta":{"content":"WORLD"},"finish_reason":"stop"}],"usage":{"total_tokens":5}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	result, err := client.CreateChatCompletion(context.Background(), ChatParams{
		Messages: []map[string]any{{"role": "user", "content": "hi"}},
		Stream:   true,
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}

	if result.StreamChunkCount == nil || *result.StreamChunkCount != 2 {
		t.Fatalf("stream_chunk_count = %v, want 2", result.StreamChunkCount)
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
		Usage map[string]any `json:"usage"`
	}
	if err := json.Unmarshal(result.Response, &resp); err != nil {
		t.Fatalf("unmarshal aggregated response: %v", err)
	}
	if resp.Choices[0].Message.Content != "HELLO_WORLD" {
		t.Errorf("content = %q, want HELLO_WORLD", resp.Choices[0].Message.Content)
	}
	if resp.Choices[0].FinishReason == nil || *resp.Choices[0].FinishReason != "stop" {
		t.Errorf("finish_reason = %v, want stop", resp.Choices[0].FinishReason)
	}
	if resp.Usage["total_tokens"] != float64(5) {
		t.Errorf("usage = %v, want last chunk's usage", resp.Usage)
	}
}

func TestCreateChatCompletionStreamingErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad stream request"}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	_, err := client.CreateChatCompletion(context.Background(), ChatParams{
		Messages: []map[string]any{{"role": "user", "content": "hi"}},
		Stream:   true,
	})

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Message != "bad stream request" {
		t.Errorf("message = %q, want upstream message from raw body", apiErr.Message)
	}
	if apiErr.Status == nil || *apiErr.Status != 400 {
		t.Errorf("status = %v, want 400", apiErr.Status)
	}
}

func TestCreateCompletionBetaRetry(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if !strings.HasPrefix(r.URL.Path, "/beta/") {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"completions requires the beta base url"}}`))
			return
		}
		w.Write([]byte(`{"id":"cmpl-1","object":"text_completion","choices":[{"index":0,"text":" world","finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	result, err := client.CreateCompletion(context.Background(), CompletionParams{Prompt: "hello"})
	if err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/completions" || paths[1] != "/beta/completions" {
		t.Errorf("paths = %v, want [/completions /beta/completions]", paths)
	}
	if !result.UsedBetaBase {
		t.Error("expected used_beta_base to be true")
	}
}

func TestCreateCompletionBetaRetryOnlyOnce(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"use the beta base url"}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	_, err := client.CreateCompletion(context.Background(), CompletionParams{Prompt: "hello"})

	if err == nil {
		t.Fatal("expected second failure to propagate")
	}
	if count != 2 {
		t.Errorf("expected exactly 2 requests (single beta retry), got %d", count)
	}
}

func TestCreateCompletionNoBetaRetryForUnrelatedErrors(t *testing.T) {
	var count int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	_, err := client.CreateCompletion(context.Background(), CompletionParams{Prompt: "hello"})

	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if count != 1 {
		t.Errorf("expected exactly 1 request, got %d", count)
	}
}

func TestCreateCompletionStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"cmpl-s","model":"deepseek-chat","choices":[{"index":0,"text":"one "}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"cmpl-s","model":"deepseek-chat","choices":[{"index":0,"text":"two","finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	result, err := client.CreateCompletion(context.Background(), CompletionParams{
		Prompt: "count",
		Stream: true,
	})
	if err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	if result.StreamChunkCount == nil || *result.StreamChunkCount != 2 {
		t.Fatalf("stream_chunk_count = %v, want 2", result.StreamChunkCount)
	}

	var resp struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(result.Response, &resp); err != nil {
		t.Fatalf("unmarshal aggregated response: %v", err)
	}
	if resp.Choices[0].Text != "one two" {
		t.Errorf("text = %q, want %q", resp.Choices[0].Text, "one two")
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	cfg := client.Config()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("base URL = %q, want default", cfg.BaseURL)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want default", cfg.Timeout)
	}
	if cfg.DefaultModel != DefaultModel {
		t.Errorf("default model = %q, want %q", cfg.DefaultModel, DefaultModel)
	}
	if cfg.FallbackModel != DefaultFallbackModel {
		t.Errorf("fallback model = %q, want %q", cfg.FallbackModel, DefaultFallbackModel)
	}
}

func TestNewClientNormalizesBaseURL(t *testing.T) {
	client := NewClient(Config{APIKey: "k", BaseURL: "https://api.deepseek.com///"})
	if got := client.Config().BaseURL; got != "https://api.deepseek.com" {
		t.Errorf("base URL = %q, want trailing slashes stripped", got)
	}
}
