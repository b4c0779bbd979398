// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads service configuration from defaults, an optional
// YAML file, a .env file and the environment, in increasing precedence.
//
// Environment variables use the JURIS_ prefix with dots replaced by
// underscores (server.port is JURIS_SERVER_PORT). The conventional
// provider variables OPENAI_API_KEY, ANTHROPIC_API_KEY, WEAVIATE_URL and
// OLLAMA_URL are honoured as well.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/Juris/services/llm"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigurationError reports a missing or invalid setting. It is fatal at
// startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// IsConfigurationError reports whether err is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

const (
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendOllama    = "ollama"

	SearchWeaviate = "weaviate"
	SearchChromem  = "chromem"

	ToolsDirectory = "directory"
	ToolsMCP       = "mcp"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	State     StateConfig     `mapstructure:"state"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	GinMode     string   `mapstructure:"gin_mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LLMConfig struct {
	Backend     string        `mapstructure:"backend"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float32       `mapstructure:"temperature"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	Burst       int           `mapstructure:"burst"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	CacheSize int    `mapstructure:"cache_size"`
}

type SearchConfig struct {
	Backend        string        `mapstructure:"backend"`
	WeaviateURL    string        `mapstructure:"weaviate_url"`
	WeaviateAPIKey string        `mapstructure:"weaviate_api_key"`
	Class          string        `mapstructure:"class"`
	ChromemPath    string        `mapstructure:"chromem_path"`
	TopK           int           `mapstructure:"top_k"`
	ExcerptChars   int           `mapstructure:"excerpt_chars"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type ToolsConfig struct {
	Backend string        `mapstructure:"backend"`
	MCPURL  string        `mapstructure:"mcp_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StateConfig struct {
	Path     string        `mapstructure:"path"`
	InMemory bool          `mapstructure:"in_memory"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type PolicyConfig struct {
	Redact bool `mapstructure:"redact"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Metrics      bool   `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Dir enables daily JSON log files alongside stderr. Empty disables them.
	Dir string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	v.SetDefault("llm.backend", BackendOpenAI)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.rate_limit", 5)
	v.SetDefault("llm.burst", 5)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.cache_size", 512)

	v.SetDefault("search.backend", SearchWeaviate)
	v.SetDefault("search.weaviate_url", "")
	v.SetDefault("search.weaviate_api_key", "")
	v.SetDefault("search.class", "LegalDocument")
	v.SetDefault("search.chromem_path", "")
	v.SetDefault("search.top_k", 3)
	v.SetDefault("search.excerpt_chars", 1500)
	v.SetDefault("search.timeout", 10*time.Second)

	v.SetDefault("tools.backend", ToolsDirectory)
	v.SetDefault("tools.mcp_url", "")
	v.SetDefault("tools.timeout", 15*time.Second)

	v.SetDefault("state.path", "./data/juris")
	v.SetDefault("state.in_memory", false)
	v.SetDefault("state.timeout", 3*time.Second)

	v.SetDefault("auth.session_ttl", 7*24*time.Hour)
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("policy.redact", true)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.metrics", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.dir", "")
}

// Load reads configuration. path may be empty. The result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("JURIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("search.weaviate_url", "JURIS_SEARCH_WEAVIATE_URL", "WEAVIATE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigurationError{Key: "config", Reason: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Key: "config", Reason: err.Error()}
	}
	cfg.applyProviderEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyProviderEnv fills provider settings from their conventional
// unprefixed variables.
func (c *Config) applyProviderEnv() {
	c.LLM.Backend = strings.ToLower(strings.TrimSpace(c.LLM.Backend))
	c.Search.Backend = strings.ToLower(strings.TrimSpace(c.Search.Backend))
	c.Tools.Backend = strings.ToLower(strings.TrimSpace(c.Tools.Backend))

	if c.LLM.APIKey == "" {
		switch c.LLM.Backend {
		case BackendOpenAI:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case BackendAnthropic:
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if c.LLM.Backend == BackendOllama && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = os.Getenv("OLLAMA_URL")
	}
}

// Validate returns a *ConfigurationError for the first problem found.
func (c *Config) Validate() error {
	switch c.LLM.Backend {
	case BackendOpenAI:
		if llm.ResolveSecret(c.LLM.APIKey, "openai_api_key") == "" {
			return &ConfigurationError{Key: "llm.api_key", Reason: "required for the openai backend (or set OPENAI_API_KEY)"}
		}
	case BackendAnthropic:
		if llm.ResolveSecret(c.LLM.APIKey, "anthropic_api_key") == "" {
			return &ConfigurationError{Key: "llm.api_key", Reason: "required for the anthropic backend (or set ANTHROPIC_API_KEY)"}
		}
	case BackendOllama:
		if c.LLM.BaseURL == "" {
			return &ConfigurationError{Key: "llm.base_url", Reason: "required for the ollama backend (or set OLLAMA_URL)"}
		}
	default:
		return &ConfigurationError{Key: "llm.backend", Reason: fmt.Sprintf("unknown backend %q", c.LLM.Backend)}
	}

	switch c.Search.Backend {
	case SearchWeaviate:
		if c.Search.WeaviateURL == "" {
			return &ConfigurationError{Key: "search.weaviate_url", Reason: "required for the weaviate backend (or set WEAVIATE_URL)"}
		}
	case SearchChromem:
	default:
		return &ConfigurationError{Key: "search.backend", Reason: fmt.Sprintf("unknown backend %q", c.Search.Backend)}
	}

	switch c.Tools.Backend {
	case ToolsDirectory:
	case ToolsMCP:
		if c.Tools.MCPURL == "" {
			return &ConfigurationError{Key: "tools.mcp_url", Reason: "required for the mcp backend"}
		}
	default:
		return &ConfigurationError{Key: "tools.backend", Reason: fmt.Sprintf("unknown backend %q", c.Tools.Backend)}
	}

	if !c.State.InMemory && strings.TrimSpace(c.State.Path) == "" {
		return &ConfigurationError{Key: "state.path", Reason: "required unless state.in_memory is set"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigurationError{Key: "server.port", Reason: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
