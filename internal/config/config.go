package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"

	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
)

// Config contains all runtime settings for the chat service. Upstream model
// identifiers normally come from the parameter store at first use; AGENT_ID,
// AGENT_ALIAS_ID and MODEL_ID pin them for local runs.
type Config struct {
	StateTable          string
	UserIndex           string
	ConversationTTL     time.Duration
	ParamPrefix         string
	MaxMessageLength    int
	TierTimeout         time.Duration
	DirectModelProvider string
	MaxTokens           int
	Temperature         float64
	LogLevel            string
	BindAddr            string
	Store               string
	MetricsNamespace    string

	AgentID      string
	AgentAliasID string
	ModelID      string
}

// PinnedSettings reports whether every upstream identifier was supplied
// through the environment.
func (c Config) PinnedSettings() bool {
	return c.AgentID != "" && c.AgentAliasID != "" && c.ModelID != ""
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		StateTable:          envTrim("STATE_TABLE"),
		UserIndex:           envOrDefault("USER_INDEX", "userId-timestamp-index"),
		ParamPrefix:         strings.TrimRight(envTrim("PARAM_PREFIX"), "/"),
		DirectModelProvider: strings.ToLower(envOrDefault("DIRECT_MODEL_PROVIDER", ProviderBedrock)),
		LogLevel:            strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		BindAddr:            envOrDefault("BIND_ADDR", ":8080"),
		Store:               strings.ToLower(envOrDefault("STORE", StoreDynamoDB)),
		MetricsNamespace:    envOrDefault("METRICS_NAMESPACE", "healthcare_assistant"),
		AgentID:             envTrim("AGENT_ID"),
		AgentAliasID:        envTrim("AGENT_ALIAS_ID"),
		ModelID:             envTrim("MODEL_ID"),
		Temperature:         0.3,
	}

	ttlDays, err := intFromEnv("CONVERSATION_TTL_DAYS", 30)
	if err != nil {
		return Config{}, err
	}
	if ttlDays <= 0 {
		return Config{}, fmt.Errorf("CONVERSATION_TTL_DAYS must be positive")
	}
	cfg.ConversationTTL = time.Duration(ttlDays) * 24 * time.Hour

	if cfg.MaxMessageLength, err = intFromEnv("MAX_MESSAGE_LENGTH", 2000); err != nil {
		return Config{}, err
	}
	if cfg.MaxMessageLength <= 0 {
		return Config{}, fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	if cfg.MaxTokens, err = intFromEnv("MAX_TOKENS", 1000); err != nil {
		return Config{}, err
	}
	if cfg.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("MAX_TOKENS must be positive")
	}
	if cfg.TierTimeout, err = durationFromEnv("TIER_TIMEOUT", 25*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.TierTimeout <= 0 {
		return Config{}, fmt.Errorf("TIER_TIMEOUT must be positive")
	}
	if cfg.Temperature, err = floatFromEnv("TEMPERATURE", cfg.Temperature); err != nil {
		return Config{}, err
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return Config{}, fmt.Errorf("TEMPERATURE must be within [0, 1]")
	}

	switch cfg.Store {
	case StoreDynamoDB:
		if cfg.StateTable == "" {
			return Config{}, fmt.Errorf("STATE_TABLE is required when STORE=%s", StoreDynamoDB)
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("STORE must be %q or %q", StoreDynamoDB, StoreMemory)
	}

	switch cfg.DirectModelProvider {
	case ProviderBedrock:
		if cfg.ParamPrefix == "" && !cfg.PinnedSettings() {
			return Config{}, fmt.Errorf("PARAM_PREFIX is required unless AGENT_ID, AGENT_ALIAS_ID and MODEL_ID are set")
		}
	case ProviderOpenAI:
		// The API token always lives in the parameter store.
		if cfg.ParamPrefix == "" {
			return Config{}, fmt.Errorf("PARAM_PREFIX is required when DIRECT_MODEL_PROVIDER=%s", ProviderOpenAI)
		}
	default:
		return Config{}, fmt.Errorf("DIRECT_MODEL_PROVIDER must be %q or %q", ProviderBedrock, ProviderOpenAI)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := envTrim(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrim(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrim(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrim(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrim(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
