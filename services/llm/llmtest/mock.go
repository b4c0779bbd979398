// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llmtest provides an in-memory LLMClient for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/AleutianAI/Juris/services/llm"
	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
)

// MockLLMClient replays canned responses and records every call.
//
// Responses are consumed in order; once exhausted the last one repeats.
// ChatFunc, when set, takes precedence over Responses and Err.
type MockLLMClient struct {
	mu sync.Mutex

	Responses []string
	Err       error
	ChatFunc  func(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error)

	CallCount    int
	LastMessages []datatypes.Message
	LastParams   llm.GenerationParams
}

// NewMockLLMClient returns a mock that answers with responses in order.
func NewMockLLMClient(responses ...string) *MockLLMClient {
	return &MockLLMClient{Responses: responses}
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return m.Chat(ctx, []datatypes.Message{{Role: datatypes.RoleUser, Content: prompt}}, params)
}

func (m *MockLLMClient) Chat(ctx context.Context, messages []datatypes.Message, params llm.GenerationParams) (string, error) {
	m.mu.Lock()
	idx := m.CallCount
	m.CallCount++
	m.LastMessages = append([]datatypes.Message{}, messages...)
	m.LastParams = params
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, params)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Calls returns the number of Chat/Generate invocations so far.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

var _ llm.LLMClient = (*MockLLMClient)(nil)
