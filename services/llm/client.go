// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm holds the text-generation adapters. Every backend returns a
// plain string; structured output is layered on top by GenerateStructured.
package llm

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/sashabaranov/go-openai/jsonschema"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// Schema asks the backend to constrain its output to a JSON document.
	// Backends without native support fall back to prompt instructions.
	Schema *ResponseSchema `json:"-"`
}

// ResponseSchema names a JSON schema for structured output.
type ResponseSchema struct {
	Name       string
	Definition *jsonschema.Definition
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}

// Embedder turns text into a vector. The signature matches chromem-go's
// EmbeddingFunc so implementations plug into either search backend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ResolveSecret returns value, or the contents of /run/secrets/<name> when
// value is empty.
func ResolveSecret(value, name string) string {
	if value != "" {
		return value
	}
	path := "/run/secrets/" + name
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	slog.Info("Read API key from secrets mount", "path", path)
	return strings.TrimSpace(string(content))
}

// Float32 is a helper for building GenerationParams literals.
func Float32(v float32) *float32 { return &v }

// Int is a helper for building GenerationParams literals.
func Int(v int) *int { return &v }
