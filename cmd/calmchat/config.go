package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/alexschlessinger/calmchat/llm"
	"github.com/alexschlessinger/calmchat/sessions"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the resolved service configuration
type Config struct {
	// HTTP
	Address string

	// Upstream
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// Sessions, after defaults, config file and flags are applied
	Session *sessions.SessionConfig

	Debug bool
}

// Environment variable parsing functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadAPIKeys reads every provider key from the environment
func loadAPIKeys() map[string]string {
	keys := make(map[string]string, len(llm.Providers))
	for _, provider := range llm.Providers {
		if key := os.Getenv(llm.EnvVarNameForProvider(provider)); key != "" {
			keys[provider] = key
		}
	}
	return keys
}

// loadSessionConfigFile reads session parameters from a YAML file and
// applies them onto a copy of base. Keys present in the file win even
// when zero, so "ttl: 0s" disables expiry. Unknown keys are rejected so
// typos don't silently fall back to defaults.
func loadSessionConfigFile(path string, base *sessions.SessionConfig) (*sessions.SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := *base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// parseConfig extracts configuration from command-line flags.
// Session parameters are layered: defaults, then the config file, then
// flags or their environment variables.
func parseConfig(cmd *cli.Command) (*Config, error) {
	session := sessions.DefaultConfig()

	if path := cmd.String("config"); path != "" {
		var err error
		session, err = loadSessionConfigFile(path, session)
		if err != nil {
			return nil, err
		}
	}

	// Assigned directly so an explicit zero (e.g. --ttl 0) is honoured
	if cmd.IsSet("max-history") {
		session.MaxHistory = cmd.Int("max-history")
	}
	if cmd.IsSet("context-window") {
		session.ContextWindow = cmd.Int("context-window")
	}
	if cmd.IsSet("ttl") {
		session.TTL = cmd.Duration("ttl")
	}
	if cmd.IsSet("sweep-interval") {
		session.SweepInterval = cmd.Duration("sweep-interval")
	}
	if cmd.IsSet("system") {
		session.SystemPrompt = cmd.String("system")
	}

	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	config := &Config{
		Address:     cmd.String("addr"),
		Model:       cmd.String("model"),
		BaseURL:     cmd.String("baseurl"),
		Temperature: cmd.Float64("temp"),
		MaxTokens:   cmd.Int("maxtokens"),
		Timeout:     cmd.Duration("timeout"),
		Session:     session,
		Debug:       cmd.Bool("debug"),
	}

	if _, _, err := llm.ParseModel(config.Model); err != nil {
		return nil, err
	}
	if config.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", config.Timeout)
	}
	if config.MaxTokens <= 0 {
		return nil, fmt.Errorf("maxtokens must be positive, got %d", config.MaxTokens)
	}
	return config, nil
}
