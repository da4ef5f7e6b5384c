package deepseek

import (
	"testing"
)

func TestMapHTTPErrorFromTextNestedMessage(t *testing.T) {
	err := mapHTTPErrorFromText(429, `{"error":{"message":"rate limit exceeded","type":"rate_limit_error"}}`)

	if err.Message != "rate limit exceeded" {
		t.Errorf("message = %q, want nested error.message", err.Message)
	}
	if err.Status == nil || *err.Status != 429 {
		t.Errorf("status = %v, want 429", err.Status)
	}
	if err.Payload == nil {
		t.Error("payload should be retained for parseable bodies")
	}
}

func TestMapHTTPErrorFromTextTopLevelMessage(t *testing.T) {
	err := mapHTTPErrorFromText(400, `{"message":"model is required"}`)

	if err.Message != "model is required" {
		t.Errorf("message = %q, want top-level message", err.Message)
	}
}

func TestMapHTTPErrorFromTextRawBody(t *testing.T) {
	err := mapHTTPErrorFromText(502, "Bad Gateway")

	if err.Message != "Bad Gateway" {
		t.Errorf("message = %q, want raw body text", err.Message)
	}
	if err.Payload != nil {
		t.Errorf("payload = %v, want nil for unparseable body", err.Payload)
	}
}

func TestMapHTTPErrorFromTextEmptyBody(t *testing.T) {
	err := mapHTTPErrorFromText(503, "")

	if err.Message != "DeepSeek API error (status 503)" {
		t.Errorf("message = %q, want synthesized status message", err.Message)
	}
	if err.Status == nil || *err.Status != 503 {
		t.Errorf("status = %v, want 503", err.Status)
	}
}

func TestMapHTTPErrorFromTextJSONWithoutMessage(t *testing.T) {
	body := `{"error":{"code":"oops"}}`
	err := mapHTTPErrorFromText(500, body)

	// No extractable message: the raw text is kept, and the payload too.
	if err.Message != body {
		t.Errorf("message = %q, want raw body", err.Message)
	}
	if err.Payload == nil {
		t.Error("payload should be retained")
	}
}

func TestExtractErrorMessage(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    string
	}{
		{"nested", map[string]any{"error": map[string]any{"message": "inner"}}, "inner"},
		{"top level", map[string]any{"message": "outer"}, "outer"},
		{
			"nested wins over top level",
			map[string]any{"error": map[string]any{"message": "inner"}, "message": "outer"},
			"inner",
		},
		{"non-string nested", map[string]any{"error": map[string]any{"message": 42}}, ""},
		{"not an object", []any{"message"}, ""},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractErrorMessage(tc.payload); got != tc.want {
				t.Errorf("extractErrorMessage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAPIErrorNeverEmptyMessage(t *testing.T) {
	err := newTransportError(errSentinel{})
	if err.Error() == "" {
		t.Error("transport error must carry a non-empty message")
	}
	if err.Status != nil {
		t.Errorf("transport error status = %v, want nil", err.Status)
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "dial tcp: connection refused" }
