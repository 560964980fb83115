// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Tutor       TutorConfig
	Sandbox     SandboxConfig
}

// TutorConfig selects and configures the LLM backing the tutor agent.
type TutorConfig struct {
	Provider  string // "openai", "anthropic" or "mock"
	Model     string
	APIKey    string
	BaseURL   string // optional OpenAI-compatible endpoint override
	MaxTokens int
	Timeout   time.Duration
}

// SandboxConfig controls the code-execution sandbox.
type SandboxConfig struct {
	Enabled bool
	Image   string
	Runtime string // Docker runtime: "" = default (runc), "runsc" = gVisor
	Timeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/codelab.db"),
		Tutor: TutorConfig{
			Provider:  getEnv("TUTOR_PROVIDER", "openai"),
			Model:     getEnv("TUTOR_MODEL", ""),
			APIKey:    getEnv("TUTOR_API_KEY", ""),
			BaseURL:   getEnv("TUTOR_BASE_URL", ""),
			MaxTokens: getEnvInt("TUTOR_MAX_TOKENS", 1024),
			Timeout:   time.Duration(getEnvInt("TUTOR_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Sandbox: SandboxConfig{
			Enabled: getEnvBool("SANDBOX_ENABLED", true),
			Image:   getEnv("SANDBOX_IMAGE", "python:3.12-alpine"),
			Runtime: getEnv("SANDBOX_RUNTIME", ""),
			Timeout: time.Duration(getEnvInt("SANDBOX_TIMEOUT_SECONDS", 15)) * time.Second,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Tutor.Provider == "" {
		return fmt.Errorf("TUTOR_PROVIDER cannot be empty")
	}
	if c.Tutor.MaxTokens <= 0 {
		return fmt.Errorf("TUTOR_MAX_TOKENS must be > 0")
	}
	if c.Sandbox.Enabled && c.Sandbox.Image == "" {
		return fmt.Errorf("SANDBOX_IMAGE cannot be empty when the sandbox is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
