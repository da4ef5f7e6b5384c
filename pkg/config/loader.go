package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, TIEFSEE_CONFIG env, ./config.yaml, /etc/tiefsee/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. TIEFSEE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/tiefsee/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check TIEFSEE_CONFIG env var.
	if envPath := os.Getenv("TIEFSEE_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/tiefsee/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The
// DEEPSEEK_* names match the variables the upstream client has always used;
// the MCP_* names configure the host transport.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		cfg.DeepSeek.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("DEEPSEEK_BASE_URL"); v != "" {
		cfg.DeepSeek.BaseURL = v
	}
	if v := os.Getenv("DEEPSEEK_REQUEST_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.DeepSeek.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("DEEPSEEK_DEFAULT_MODEL"); v != "" {
		cfg.DeepSeek.DefaultModel = v
	}
	if v := os.Getenv("DEEPSEEK_FALLBACK_MODEL"); v != "" {
		cfg.DeepSeek.FallbackModel = v
	}
	if v := os.Getenv("DEEPSEEK_ENABLE_REASONER_FALLBACK"); v != "" {
		cfg.DeepSeek.EnableReasonerFallback = parseBool(v, cfg.DeepSeek.EnableReasonerFallback)
	}

	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.Server.Transport = v
	}
	if v := os.Getenv("MCP_HTTP_HOST"); v != "" {
		cfg.Server.HTTPHost = v
	}
	if v := os.Getenv("MCP_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("MCP_HTTP_PATH"); v != "" {
		cfg.Server.HTTPPath = v
	}
}

// parseBool interprets the usual truthy spellings; anything else is false.
func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. The value field wins when both are set.
func resolveFileReferences(cfg *Config) error {
	// deepseek.api_key_file -> deepseek.api_key
	if cfg.DeepSeek.APIKeyFile != "" && cfg.DeepSeek.APIKey == "" {
		val, err := readSecretFile(cfg.DeepSeek.APIKeyFile)
		if err != nil {
			return fmt.Errorf("deepseek.api_key_file: %w", err)
		}
		cfg.DeepSeek.APIKey = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
