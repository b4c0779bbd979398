// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Normalizer is implemented by structured output types that canonicalize
// model output (casing, aliases, nil slices) before validation.
type Normalizer interface {
	Normalize()
}

// SchemaFor derives the JSON schema for T from its struct tags.
func SchemaFor[T any]() (*ResponseSchema, error) {
	var zero T
	def, err := jsonschema.GenerateSchemaForType(zero)
	if err != nil {
		return nil, fmt.Errorf("derive schema for %s: %w", schemaName[T](), err)
	}
	return &ResponseSchema{Name: schemaName[T](), Definition: def}, nil
}

func schemaName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Name() == "" {
		return "response"
	}
	return t.Name()
}

// GenerateStructured asks client for a T and returns it parsed, normalized
// and validated.
//
// # Description
//
// The schema for T is attached to params so that backends with native
// structured output constrain the model. Whatever comes back goes through
// DecodeStructured, which tolerates code fences, surrounding prose and
// minor JSON damage.
//
// # Outputs
//
//   - *T: The validated object.
//   - error: Always a *GenerationError, with Stage set to transport, parse
//     or validation.
//
// # Examples
//
//	out, err := llm.GenerateStructured[datatypes.RouterOutput](ctx, client, msgs, params)
//	if llm.IsGenerationError(err) { ...fall back... }
func GenerateStructured[T any](ctx context.Context, client LLMClient, messages []datatypes.Message, params GenerationParams) (*T, error) {
	name := schemaName[T]()
	schema, err := SchemaFor[T]()
	if err != nil {
		return nil, &GenerationError{Stage: StageParse, Schema: name, Err: err}
	}
	params.Schema = schema

	raw, err := client.Chat(ctx, messages, params)
	if err != nil {
		return nil, &GenerationError{Stage: StageTransport, Schema: name, Err: err}
	}
	return DecodeStructured[T](raw)
}

// DecodeStructured parses raw model output into a validated T.
func DecodeStructured[T any](raw string) (*T, error) {
	name := schemaName[T]()
	candidate := extractJSONObject(raw)
	if candidate == "" {
		return nil, &GenerationError{Stage: StageParse, Schema: name, Err: fmt.Errorf("empty model output")}
	}

	var out T
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return nil, &GenerationError{Stage: StageParse, Schema: name, Err: err}
		}
		out = *new(T)
		if err := json.Unmarshal([]byte(repaired), &out); err != nil {
			return nil, &GenerationError{Stage: StageParse, Schema: name, Err: err}
		}
		slog.Debug("Repaired malformed structured output", "schema", name)
	}

	if n, ok := any(&out).(Normalizer); ok {
		n.Normalize()
	}
	if err := datatypes.Validate(&out); err != nil {
		return nil, &GenerationError{Stage: StageValidation, Schema: name, Err: err}
	}
	return &out, nil
}

// extractJSONObject strips markdown fences and any prose around the
// outermost JSON object.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	if start >= 0 {
		// Truncated object; leave it for the repair pass.
		return s[start:]
	}
	return s
}
