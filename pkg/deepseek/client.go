package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhenke/tiefsee/pkg/observability"
)

const (
	// DefaultBaseURL is the public DeepSeek API endpoint.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultModel is used when a call supplies no model.
	DefaultModel = "deepseek-chat"

	// DefaultFallbackModel is the reasoner-fallback target.
	DefaultFallbackModel = "deepseek-chat"

	// DefaultTimeout bounds a whole call: connect, first byte, and full
	// body or stream drain.
	DefaultTimeout = 120 * time.Second

	userAgent = "tiefsee/0.1.0"
)

// Config holds the immutable client settings. Created once at process
// start; never mutated afterwards.
type Config struct {
	APIKey                 string
	BaseURL                string
	Timeout                time.Duration
	DefaultModel           string
	EnableReasonerFallback bool
	FallbackModel          string
}

// Client performs HTTP requests against the DeepSeek API. Each logical
// call, including its at-most-one fallback retry, runs sequentially; no
// concurrent transport calls are issued on behalf of one call.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a Client from the given configuration, filling in
// defaults for unset fields.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = NormalizeBaseURL(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultFallbackModel
	}

	return &Client{
		cfg: cfg,
		// The timeout covers the full exchange, streaming included. A
		// stalled stream surfaces as a transport-level failure.
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// FallbackInfo records a silent model substitution so callers can detect it.
type FallbackInfo struct {
	FromModel string `json:"from_model"`
	ToModel   string `json:"to_model"`
	Reason    string `json:"reason"`
}

// ChatCompletionResult is the outcome of a chat completion call.
// StreamChunkCount is nil for non-streaming calls.
type ChatCompletionResult struct {
	Response         json.RawMessage `json:"response"`
	Fallback         *FallbackInfo   `json:"fallback"`
	StreamChunkCount *int            `json:"stream_chunk_count"`
}

// CompletionResult is the outcome of a plain completion call.
type CompletionResult struct {
	Response         json.RawMessage `json:"response"`
	UsedBetaBase     bool            `json:"used_beta_base"`
	StreamChunkCount *int            `json:"stream_chunk_count"`
}

// ListModels returns the raw response of GET /models.
func (c *Client) ListModels(ctx context.Context) (json.RawMessage, error) {
	return c.requestJSON(ctx, http.MethodGet, "/models", nil, "")
}

// GetUserBalance returns the raw response of GET /user/balance.
func (c *Client) GetUserBalance(ctx context.Context) (json.RawMessage, error) {
	return c.requestJSON(ctx, http.MethodGet, "/user/balance", nil, "")
}

// CreateChatCompletion issues POST /chat/completions, streaming or not
// depending on params.Stream. When the reasoner model fails transiently and
// fallback is enabled, the call is retried once with the fallback model and
// the result is annotated with the substitution.
func (c *Client) CreateChatCompletion(ctx context.Context, params ChatParams) (*ChatCompletionResult, error) {
	payload := params.payload(c.cfg.DefaultModel)
	model, _ := payload["model"].(string)

	response, chunkCount, err := c.chatOrCompletionRequest(ctx, "/chat/completions", payload, "")
	if err == nil {
		return &ChatCompletionResult{Response: response, StreamChunkCount: chunkCount}, nil
	}

	apiErr, ok := err.(*APIError)
	if !ok || !shouldReasonerFallback(c.cfg, model, apiErr) {
		return nil, err
	}

	slog.Info("retrying chat completion with fallback model",
		"from_model", model,
		"to_model", c.cfg.FallbackModel,
		"reason", apiErr.Message,
	)
	observability.FallbackTotal.WithLabelValues("reasoner").Inc()

	fallbackPayload := clonePayload(payload)
	fallbackPayload["model"] = c.cfg.FallbackModel

	response, chunkCount, retryErr := c.chatOrCompletionRequest(ctx, "/chat/completions", fallbackPayload, "")
	if retryErr != nil {
		return nil, retryErr
	}

	return &ChatCompletionResult{
		Response: response,
		Fallback: &FallbackInfo{
			FromModel: model,
			ToModel:   c.cfg.FallbackModel,
			Reason:    apiErr.Message,
		},
		StreamChunkCount: chunkCount,
	}, nil
}

// CreateCompletion issues POST /completions. When the upstream error hints
// at the alternate beta base path, the call is retried once against it and
// the result is flagged accordingly.
func (c *Client) CreateCompletion(ctx context.Context, params CompletionParams) (*CompletionResult, error) {
	payload := params.payload(c.cfg.DefaultModel)

	response, chunkCount, err := c.chatOrCompletionRequest(ctx, "/completions", payload, "")
	if err == nil {
		return &CompletionResult{Response: response, StreamChunkCount: chunkCount}, nil
	}

	apiErr, ok := err.(*APIError)
	if !ok || !shouldRetryOnBeta(apiErr) {
		return nil, err
	}

	betaBase := BuildBetaBaseURL(c.cfg.BaseURL)
	slog.Info("retrying completion against beta base", "base_url", betaBase, "reason", apiErr.Message)
	observability.FallbackTotal.WithLabelValues("beta_base").Inc()

	response, chunkCount, retryErr := c.chatOrCompletionRequest(ctx, "/completions", payload, betaBase)
	if retryErr != nil {
		return nil, retryErr
	}

	return &CompletionResult{
		Response:         response,
		UsedBetaBase:     true,
		StreamChunkCount: chunkCount,
	}, nil
}

// chatOrCompletionRequest dispatches one logical completion call. The
// payload's stream field alone decides between a single JSON exchange and
// client-side aggregation of a full SSE stream. The chunk count is nil on
// the JSON path.
func (c *Client) chatOrCompletionRequest(ctx context.Context, path string, payload map[string]any, baseURLOverride string) (json.RawMessage, *int, error) {
	stream, _ := payload["stream"].(bool)
	if !stream {
		response, err := c.requestJSON(ctx, http.MethodPost, path, payload, baseURLOverride)
		return response, nil, err
	}

	chunks, err := c.requestSSE(ctx, http.MethodPost, path, payload, baseURLOverride)
	if err != nil {
		return nil, nil, err
	}

	model, _ := payload["model"].(string)
	var aggregated map[string]any
	if path == "/chat/completions" {
		aggregated = AggregateChatChunks(chunks, model)
	} else {
		aggregated = AggregateCompletionChunks(chunks, model)
	}
	observability.StreamChunksTotal.WithLabelValues(path).Add(float64(len(chunks)))

	response, err := json.Marshal(aggregated)
	if err != nil {
		return nil, nil, newTransportError(err)
	}

	count := len(chunks)
	return response, &count, nil
}

// requestJSON performs a single request/response exchange and returns the
// raw JSON body. Non-2xx statuses and unparseable 2xx bodies both yield a
// classified APIError.
func (c *Client) requestJSON(ctx context.Context, method, path string, body map[string]any, baseURLOverride string) (json.RawMessage, error) {
	start := time.Now()
	resp, err := c.do(ctx, method, path, body, baseURLOverride, "application/json")
	if err != nil {
		observability.APIRequestsTotal.WithLabelValues(path, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	defer func() {
		observability.APIRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.APIRequestsTotal.WithLabelValues(path, statusClass(resp.StatusCode)).Inc()
		return nil, mapHTTPError(resp)
	}
	observability.APIRequestsTotal.WithLabelValues(path, statusClass(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		status := resp.StatusCode
		return nil, &APIError{
			Message: fmt.Sprintf("DeepSeek API returned invalid JSON: %s", err.Error()),
			Status:  &status,
		}
	}

	return json.RawMessage(data), nil
}

// requestSSE performs a request expecting a server-sent-events response and
// consumes it to completion. A non-2xx status is detected before event
// parsing begins and classified from the raw body text.
func (c *Client) requestSSE(ctx context.Context, method, path string, body map[string]any, baseURLOverride string) ([]StreamChunk, error) {
	start := time.Now()
	resp, err := c.do(ctx, method, path, body, baseURLOverride, "text/event-stream")
	if err != nil {
		observability.APIRequestsTotal.WithLabelValues(path, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	defer func() {
		observability.APIRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	observability.APIRequestsTotal.WithLabelValues(path, statusClass(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, mapHTTPErrorFromText(resp.StatusCode, string(data))
	}

	return readSSEChunks(resp.Body)
}

// do builds and sends one HTTP request. Network-level failures are wrapped
// as APIError without a status code.
func (c *Client) do(ctx context.Context, method, path string, body map[string]any, baseURLOverride, accept string) (*http.Response, error) {
	baseURL := c.cfg.BaseURL
	if baseURLOverride != "" {
		baseURL = NormalizeBaseURL(baseURLOverride)
	}
	url := baseURL + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, newTransportError(fmt.Errorf("marshaling request body: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, newTransportError(err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(err)
	}
	return resp, nil
}

// clonePayload shallow-copies a payload so a fallback retry can swap the
// model without mutating the original request.
func clonePayload(payload map[string]any) map[string]any {
	clone := make(map[string]any, len(payload))
	for k, v := range payload {
		clone[k] = v
	}
	return clone
}

// statusClass renders an HTTP status as a metric label like "2xx".
func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
