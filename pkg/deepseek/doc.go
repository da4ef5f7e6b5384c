// Package deepseek implements a thin client for the DeepSeek HTTP API.
// It builds request payloads from sparse optional parameters, classifies
// upstream failures, aggregates streamed SSE chunks into whole responses,
// and applies a narrow single-retry fallback policy (reasoner model
// degradation for chat, beta-base retry for plain completions).
package deepseek
