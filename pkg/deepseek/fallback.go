package deepseek

import "strings"

// ReasonerModel is the model name eligible for reasoner fallback: when a
// transient failure hits this model, the call is retried once with the
// configured fallback model.
const ReasonerModel = "deepseek-reasoner"

// retriableStatusCodes are the HTTP statuses considered transient for the
// reasoner fallback. A nil status (transport-level failure) is also
// considered transient.
var retriableStatusCodes = map[int]bool{
	408: true,
	409: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// betaHintTokens are the case-insensitive substrings in an upstream error
// message that suggest the completions endpoint wants the /beta base path.
// The upstream gives no structured signal for this, only message text.
var betaHintTokens = []string{"beta", "base url", "base_url", "/beta"}

// NormalizeBaseURL strips trailing slashes from a base URL. Idempotent.
func NormalizeBaseURL(value string) string {
	return strings.TrimRight(value, "/")
}

// BuildBetaBaseURL returns the alternate "beta" base path for the given
// base URL. Idempotent: a base already ending in /beta is returned as-is.
func BuildBetaBaseURL(baseURL string) string {
	normalized := NormalizeBaseURL(baseURL)
	if strings.HasSuffix(normalized, "/beta") {
		return normalized
	}
	return normalized + "/beta"
}

// shouldReasonerFallback reports whether a failed chat completion on the
// given model should be retried once with cfg.FallbackModel. All conditions
// must hold: fallback enabled, the requested model is the reasoner model,
// the fallback model actually differs, and the error is transient (no
// status, or a retriable status).
func shouldReasonerFallback(cfg Config, model string, err *APIError) bool {
	if !cfg.EnableReasonerFallback {
		return false
	}
	if model != ReasonerModel {
		return false
	}
	if cfg.FallbackModel == model {
		return false
	}
	if err.Status == nil {
		return true
	}
	return retriableStatusCodes[*err.Status]
}

// shouldRetryOnBeta reports whether a failed plain completion should be
// retried once against the beta base path, based on the error message text.
func shouldRetryOnBeta(err *APIError) bool {
	text := strings.ToLower(err.Message)
	for _, token := range betaHintTokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
