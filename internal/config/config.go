// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the chatbridge gateway.
// It's loaded once at startup and never mutated afterwards — handlers and
// providers all read from the same immutable snapshot.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Chat      ChatConfig       `koanf:"chat"`
	Providers []ProviderConfig `koanf:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ChatConfig holds completion behavior settings.
type ChatConfig struct {
	// HistoryWindow is how many trailing conversation turns get forwarded
	// to a provider. Everything older is silently dropped — it's a cost
	// and latency cap, not a storage limit. Defaults to 3.
	HistoryWindow int `koanf:"history_window"`
}

// ProviderConfig holds the settings for a single LLM provider.
//
// The providers key in config.yaml is a LIST, not a map — the order of
// entries IS the fallback order. The first provider is always tried first,
// and nothing at runtime ever reorders them.
type ProviderConfig struct {
	Name            string  `koanf:"name"`
	Model           string  `koanf:"model"`
	BaseURL         string  `koanf:"base_url"`
	Temperature     float64 `koanf:"temperature"`
	MaxOutputTokens int     `koanf:"max_output_tokens"`
	TopP            float64 `koanf:"top_p"`
	TopK            int     `koanf:"top_k"`

	// APIKeyEnv names the environment variable holding the credential —
	// the config file never contains the secret itself, just a pointer
	// to it. This is the same indirection as putting GOOGLE_AI_API_KEY
	// in .env and referencing process.env.GOOGLE_AI_API_KEY in Node.
	APIKeyEnv string `koanf:"api_key_env"`

	// APIKey is the resolved credential, filled in by Load from the
	// environment. An empty value is NOT an error: it means this provider
	// is unavailable and the fallback chain will skip it. Somebody running
	// with only one key configured is a normal, supported setup.
	APIKey string `koanf:"-"`
}

// defaultHistoryWindow bounds the conversation context sent upstream when
// the config file doesn't say otherwise.
const defaultHistoryWindow = 3

// Load reads configuration from a YAML file, layers environment variable
// overrides on top, resolves provider credentials, and returns a fully
// populated Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	// This is the equivalent of require('dotenv').config() in Node.
	_ = godotenv.Load()

	// Create a new koanf instance. The "." delimiter tells koanf how to
	// separate nested keys internally (e.g., "server.port").
	k := koanf.New(".")

	// Load the YAML config file. file.Provider reads the file,
	// yaml.Parser() decodes the YAML format into koanf's internal map.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// Layer environment variables on top. Any env var starting with
	// "CHATBRIDGE_" can override a config value. The callback transforms
	// the env var name into a koanf key path:
	//   CHATBRIDGE_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("CHATBRIDGE_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "CHATBRIDGE_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// Unmarshal the loaded key-value pairs into our Config struct.
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Chat.HistoryWindow == 0 {
		cfg.Chat.HistoryWindow = defaultHistoryWindow
	}

	// Resolve each provider's credential from the environment, exactly
	// once. After this point nobody reads os.Getenv again — availability
	// is frozen into the snapshot, which keeps the fallback chain's
	// behavior stable for the life of the process and makes it trivial
	// to hand a fake Config to tests.
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Name == "" {
			return nil, fmt.Errorf("provider %d: name is required", i)
		}
		if p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
	}

	return &cfg, nil
}
