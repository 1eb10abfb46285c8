package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type Config struct {
	// NATS configuration
	NatsURL            string
	NatsTurnSubject    string
	NatsExecuteSubject string
	NatsOptionsSubject string
	NatsQueueGroup     string
	NatsTimeout        time.Duration

	// Oracle configuration
	LLMProvider         string
	AnthropicAPIKey     string
	AnthropicModel      string
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIBaseURL       string
	OracleTimeout       time.Duration
	OracleMaxTokens     int
	OracleTemperature   float64
	OracleMinConfidence float64

	// State configuration
	RedisURL        string
	StateTTL        time.Duration
	HistoryTTL      time.Duration
	StateMaxRetries int
	OptionsCacheTTL time.Duration

	// Heuristic switches
	ResidualTextFallback bool
	StickyLock           bool

	// Service configuration
	ServiceName string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
}

var defaults = map[string]interface{}{
	"NATS_URL":               "nats://localhost:4222",
	"NATS_TURN_SUBJECT":      "hr.intent.turn",
	"NATS_EXECUTE_SUBJECT":   "hr.action.execute",
	"NATS_OPTIONS_SUBJECT":   "hr.options.get",
	"NATS_QUEUE_GROUP":       "hrbuddy-intent",
	"NATS_TIMEOUT":           "30s",
	"LLM_PROVIDER":           ProviderAnthropic,
	"ANTHROPIC_MODEL":        "claude-3-5-sonnet-20241022",
	"OPENAI_MODEL":           "gpt-4o-mini",
	"ORACLE_TIMEOUT":         "20s",
	"ORACLE_MAX_TOKENS":      2000,
	"ORACLE_TEMPERATURE":     0.1,
	"ORACLE_MIN_CONFIDENCE":  0.5,
	"REDIS_URL":              "redis://localhost:6379/0",
	"STATE_TTL":              "30m",
	"HISTORY_TTL":            "24h",
	"STATE_MAX_RETRIES":      5,
	"OPTIONS_CACHE_TTL":      "30m",
	"RESIDUAL_TEXT_FALLBACK": true,
	"STICKY_LOCK":            true,
	"SERVICE_NAME":           "hrbuddy-intent",
	"HTTP_ADDR":              ":8080",
	"LOG_LEVEL":              "info",
	"LOG_FORMAT":             "console",
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	v := Defaults()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		NatsURL:            v.GetString("NATS_URL"),
		NatsTurnSubject:    v.GetString("NATS_TURN_SUBJECT"),
		NatsExecuteSubject: v.GetString("NATS_EXECUTE_SUBJECT"),
		NatsOptionsSubject: v.GetString("NATS_OPTIONS_SUBJECT"),
		NatsQueueGroup:     v.GetString("NATS_QUEUE_GROUP"),
		NatsTimeout:        v.GetDuration("NATS_TIMEOUT"),

		LLMProvider:         strings.ToLower(v.GetString("LLM_PROVIDER")),
		AnthropicAPIKey:     v.GetString("ANTHROPIC_API_KEY"),
		AnthropicModel:      v.GetString("ANTHROPIC_MODEL"),
		OpenAIAPIKey:        v.GetString("OPENAI_API_KEY"),
		OpenAIModel:         v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL:       v.GetString("OPENAI_BASE_URL"),
		OracleTimeout:       v.GetDuration("ORACLE_TIMEOUT"),
		OracleMaxTokens:     v.GetInt("ORACLE_MAX_TOKENS"),
		OracleTemperature:   v.GetFloat64("ORACLE_TEMPERATURE"),
		OracleMinConfidence: v.GetFloat64("ORACLE_MIN_CONFIDENCE"),

		RedisURL:        v.GetString("REDIS_URL"),
		StateTTL:        v.GetDuration("STATE_TTL"),
		HistoryTTL:      v.GetDuration("HISTORY_TTL"),
		StateMaxRetries: v.GetInt("STATE_MAX_RETRIES"),
		OptionsCacheTTL: v.GetDuration("OPTIONS_CACHE_TTL"),

		ResidualTextFallback: v.GetBool("RESIDUAL_TEXT_FALLBACK"),
		StickyLock:           v.GetBool("STICKY_LOCK"),

		ServiceName: v.GetString("SERVICE_NAME"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks provider credentials and numeric bounds
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=%s", c.LLMProvider)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=%s", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.OracleTimeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive")
	}
	if c.OracleMinConfidence < 0 || c.OracleMinConfidence > 1 {
		return fmt.Errorf("ORACLE_MIN_CONFIDENCE must be within [0,1]")
	}
	if c.StateMaxRetries < 1 {
		return fmt.Errorf("STATE_MAX_RETRIES must be at least 1")
	}
	if c.StateTTL <= 0 {
		return fmt.Errorf("STATE_TTL must be positive")
	}
	return nil
}

// Defaults returns a viper instance carrying only the built-in defaults
func Defaults() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}
