package deepseek

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError represents a failed DeepSeek API call. Status is nil for
// transport-level failures (DNS, connect, timeout) where no HTTP response
// was received. Payload holds the parsed JSON error body when the upstream
// returned one.
type APIError struct {
	Message string
	Status  *int
	Payload any
}

// Error implements the error interface. The message is never empty.
func (e *APIError) Error() string {
	return e.Message
}

// newTransportError wraps a network-level error (no response received)
// into an APIError without a status code.
func newTransportError(err error) *APIError {
	return &APIError{Message: fmt.Sprintf("DeepSeek API request failed: %s", err.Error())}
}

// mapHTTPError converts a non-2xx HTTP response into an APIError.
// The message is extracted from the body with decreasing priority:
// error.message, top-level message, raw body text, synthesized status line.
func mapHTTPError(resp *http.Response) *APIError {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		data = nil
	}
	return mapHTTPErrorFromText(resp.StatusCode, string(data))
}

// mapHTTPErrorFromText builds an APIError from an HTTP status code and the
// raw response body text. Used directly on the streaming path, where the
// body has already been drained before SSE parsing started.
func mapHTTPErrorFromText(status int, text string) *APIError {
	var payload any
	message := text

	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		if m := extractErrorMessage(payload); m != "" {
			message = m
		}
	} else {
		payload = nil
	}

	if message == "" {
		message = fmt.Sprintf("DeepSeek API error (status %d)", status)
	}

	return &APIError{Message: message, Status: &status, Payload: payload}
}

// extractErrorMessage pulls a human-readable message out of a parsed error
// body. It checks the nested error.message field first, then a top-level
// message field. Returns "" when neither is a string.
func extractErrorMessage(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ""
	}

	if errObj, ok := obj["error"].(map[string]any); ok {
		if msg, ok := errObj["message"].(string); ok {
			return msg
		}
	}

	if msg, ok := obj["message"].(string); ok {
		return msg
	}

	return ""
}
