// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with the provider variables
// cleared.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "WEAVIATE_URL", "OLLAMA_URL"} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEAVIATE_URL", "http://weaviate:8080")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, BackendOpenAI, cfg.LLM.Backend)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "http://weaviate:8080", cfg.Search.WeaviateURL)
	assert.Equal(t, "LegalDocument", cfg.Search.Class)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, 1500, cfg.Search.ExcerptChars)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Tools.Timeout)
	assert.Equal(t, 3*time.Second, cfg.State.Timeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.True(t, cfg.Policy.Redact)
	assert.True(t, cfg.Telemetry.Metrics)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Log.Dir)
}

func TestLoad_PrefixedEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("JURIS_LLM_BACKEND", "ollama")
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("JURIS_SERVER_PORT", "9000")
	t.Setenv("JURIS_SEARCH_BACKEND", "chromem")
	t.Setenv("JURIS_STATE_IN_MEMORY", "true")
	t.Setenv("JURIS_SEARCH_TIMEOUT", "2s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, BackendOllama, cfg.LLM.Backend)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL)
	assert.Equal(t, SearchChromem, cfg.Search.Backend)
	assert.True(t, cfg.State.InMemory)
	assert.Equal(t, 2*time.Second, cfg.Search.Timeout)
}

func TestLoad_LogDirOverride(t *testing.T) {
	isolate(t)
	t.Setenv("JURIS_LLM_BACKEND", "ollama")
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("JURIS_SEARCH_BACKEND", "chromem")
	t.Setenv("JURIS_LOG_DIR", "/var/log/juris")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/log/juris", cfg.Log.Dir)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "juris.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  backend: anthropic
  api_key: sk-ant-test
search:
  backend: chromem
  top_k: 5
tools:
  backend: mcp
  mcp_url: http://tools:8090/mcp
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendAnthropic, cfg.LLM.Backend)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, ToolsMCP, cfg.Tools.Backend)
	assert.Equal(t, "http://tools:8090/mcp", cfg.Tools.MCPURL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("JURIS_LOG_LEVEL=debug\nJURIS_SEARCH_BACKEND=chromem\nOPENAI_API_KEY=sk-dotenv\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("JURIS_LOG_LEVEL")
		os.Unsetenv("JURIS_SEARCH_BACKEND")
	})
	// An empty OPENAI_API_KEY from isolate is already set and wins over .env.
	os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sk-dotenv", cfg.LLM.APIKey)
}

func TestLoad_MissingFileIsConfigurationError(t *testing.T) {
	isolate(t)

	_, err := Load("/nonexistent/juris.yaml")

	assert.True(t, IsConfigurationError(err))
}

func TestValidate_ConfigurationErrors(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{Port: 8000},
			LLM:    LLMConfig{Backend: BackendOpenAI, APIKey: "sk"},
			Search: SearchConfig{Backend: SearchWeaviate, WeaviateURL: "http://w"},
			Tools:  ToolsConfig{Backend: ToolsDirectory},
			State:  StateConfig{Path: "./data"},
		}
	}
	require.NoError(t, func() error { c := valid(); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key"},
		{"unknown llm backend", func(c *Config) { c.LLM.Backend = "gemini" }, "llm.backend"},
		{"ollama without url", func(c *Config) { c.LLM.Backend = BackendOllama }, "llm.base_url"},
		{"weaviate without url", func(c *Config) { c.Search.WeaviateURL = "" }, "search.weaviate_url"},
		{"unknown search backend", func(c *Config) { c.Search.Backend = "pinecone" }, "search.backend"},
		{"mcp without url", func(c *Config) { c.Tools.Backend = ToolsMCP }, "tools.mcp_url"},
		{"unknown tools backend", func(c *Config) { c.Tools.Backend = "grpc" }, "tools.backend"},
		{"empty state path", func(c *Config) { c.State.Path = " " }, "state.path"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestValidate_InMemoryStateNeedsNoPath(t *testing.T) {
	c := Config{
		Server: ServerConfig{Port: 1},
		LLM:    LLMConfig{Backend: BackendOllama, BaseURL: "http://o"},
		Search: SearchConfig{Backend: SearchChromem},
		Tools:  ToolsConfig{Backend: ToolsDirectory},
		State:  StateConfig{InMemory: true},
	}

	assert.NoError(t, c.Validate())
}
