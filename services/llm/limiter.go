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
	"fmt"
	"time"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"golang.org/x/time/rate"
)

// RateLimitedClient bounds the request rate and per-call duration of an
// underlying LLMClient. It is shared by every conversation thread.
type RateLimitedClient struct {
	next    LLMClient
	limiter *rate.Limiter
	timeout time.Duration
}

// NewRateLimitedClient wraps next. rps <= 0 disables rate limiting;
// timeout <= 0 disables the per-call deadline.
func NewRateLimitedClient(next LLMClient, rps float64, burst int, timeout time.Duration) *RateLimitedClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

func (c *RateLimitedClient) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}
	return ctx, cancel, nil
}

// Generate implements the LLMClient interface
func (c *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, cancel, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()
	return c.next.Generate(ctx, prompt, params)
}

// Chat implements the LLMClient interface
func (c *RateLimitedClient) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	ctx, cancel, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()
	return c.next.Chat(ctx, messages, params)
}

var _ LLMClient = (*RateLimitedClient)(nil)
