// Package config provides unified configuration for the tiefsee MCP server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DEEPSEEK_* / MCP_* names)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the tiefsee MCP server.
type Config struct {
	DeepSeek      DeepSeekConfig      `yaml:"deepseek"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DeepSeekConfig holds upstream API client settings.
type DeepSeekConfig struct {
	APIKey                 string        `yaml:"api_key"`      // required
	APIKeyFile             string        `yaml:"api_key_file"` // _file variant for api_key
	BaseURL                string        `yaml:"base_url"`     // default: https://api.deepseek.com
	Timeout                time.Duration `yaml:"timeout"`      // default: 120s, bounds the whole call
	DefaultModel           string        `yaml:"default_model"`
	EnableReasonerFallback bool          `yaml:"enable_reasoner_fallback"` // default: true
	FallbackModel          string        `yaml:"fallback_model"`
}

// ServerConfig holds MCP transport settings.
type ServerConfig struct {
	Transport string `yaml:"transport"` // "stdio" or "streamable-http", default: "stdio"
	HTTPHost  string `yaml:"http_host"` // default: 127.0.0.1
	HTTPPort  int    `yaml:"http_port"` // default: 3001
	HTTPPath  string `yaml:"http_path"` // default: /mcp
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings, served only in
// streamable-http mode.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		DeepSeek: DeepSeekConfig{
			BaseURL:                "https://api.deepseek.com",
			Timeout:                120 * time.Second,
			DefaultModel:           "deepseek-chat",
			EnableReasonerFallback: true,
			FallbackModel:          "deepseek-chat",
		},
		Server: ServerConfig{
			Transport: "stdio",
			HTTPHost:  "127.0.0.1",
			HTTPPort:  3001,
			HTTPPath:  "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
