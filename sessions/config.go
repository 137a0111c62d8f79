package sessions

import (
	"errors"
	"fmt"
	"time"
)

// Default session parameters
const (
	DefaultMaxHistory    = 20
	DefaultContextWindow = 10
	DefaultTTL           = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// DefaultSystemPrompt is the persona sent to the upstream model with every turn
const DefaultSystemPrompt = "You are a warm, supportive mental wellness companion. " +
	"Listen carefully, respond with empathy, and offer practical, gentle coping ideas. " +
	"You are not a substitute for professional care: if someone mentions self-harm or " +
	"being in danger, encourage them to contact local emergency services or a crisis line."

// SessionConfig holds configuration for session management
type SessionConfig struct {
	// MaxHistory is the maximum number of messages kept per session.
	// Oldest messages are dropped first.
	MaxHistory int `yaml:"max_history"`

	// ContextWindow is how many prior messages are rendered into a turn's prompt
	ContextWindow int `yaml:"context_window"`

	// TTL is the idle duration after which a session expires.
	// 0 means no expiration.
	TTL time.Duration `yaml:"ttl"`

	// SweepInterval is the period of the background expiry sweep
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// SystemPrompt is the persona preamble handed to the completion service
	SystemPrompt string `yaml:"system_prompt"`
}

// DefaultConfig returns a SessionConfig with the product defaults
func DefaultConfig() *SessionConfig {
	return &SessionConfig{
		MaxHistory:    DefaultMaxHistory,
		ContextWindow: DefaultContextWindow,
		TTL:           DefaultTTL,
		SweepInterval: DefaultSweepInterval,
		SystemPrompt:  DefaultSystemPrompt,
	}
}

// Validate reports the first invalid parameter
func (c *SessionConfig) Validate() error {
	switch {
	case c.MaxHistory < 1:
		return fmt.Errorf("max history must be at least 1, got %d", c.MaxHistory)
	case c.ContextWindow < 0:
		return fmt.Errorf("context window cannot be negative, got %d", c.ContextWindow)
	case c.TTL < 0:
		return fmt.Errorf("ttl cannot be negative, got %v", c.TTL)
	case c.SweepInterval < 0:
		return fmt.Errorf("sweep interval cannot be negative, got %v", c.SweepInterval)
	case c.TTL > 0 && c.SweepInterval == 0:
		return errors.New("sweep interval is required when ttl is set")
	}
	return nil
}
