// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/Juris/services/llm"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultEmbedTimeout bounds a shared upstream embedding call.
const DefaultEmbedTimeout = 30 * time.Second

// CachedEmbedder memoizes query embeddings and coalesces concurrent
// requests for the same text into one upstream call.
//
// The upstream call runs detached from any single caller's context, so a
// caller that gives up does not fail the others waiting on the same text.
type CachedEmbedder struct {
	next  llm.Embedder
	cache *lru.Cache[string, []float32]
	group singleflight.Group

	// Timeout bounds the shared upstream call. Zero means DefaultEmbedTimeout.
	Timeout time.Duration

	// OnHit, when set, is called on every cache hit.
	OnHit func()
}

// NewCachedEmbedder wraps next with an LRU of the given size.
func NewCachedEmbedder(next llm.Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

// Embed implements llm.Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		if c.OnHit != nil {
			c.OnHit()
		}
		return vec, nil
	}

	ch := c.group.DoChan(text, func() (interface{}, error) {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = DefaultEmbedTimeout
		}
		upstream, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		vec, err := c.next.Embed(upstream, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(text, vec)
		return vec, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ llm.Embedder = (*CachedEmbedder)(nil)
