// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search is the retrieval capability: ranked statute excerpts for a
// query, optionally restricted to a set of jurisdiction tags.
//
// Two backends implement Searcher. WeaviateSearcher talks to a Weaviate
// cluster with caller-supplied query vectors. ChromemSearcher keeps an
// embedded chromem-go collection for local deployments and tests.
package search

import (
	"context"
	"fmt"
)

// Metadata keys carried by every indexed document.
const (
	MetaSource       = "source"
	MetaJurisdiction = "jurisdiction"
	MetaURL          = "url"
)

// Document is one ranked search hit.
type Document struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float32           `json:"score"`
}

// Filter restricts results by metadata. An empty Jurisdictions slice means
// no restriction; otherwise a document matches when its jurisdiction tag
// equals any listed value.
type Filter struct {
	Jurisdictions []string
}

// IsEmpty reports whether the filter restricts nothing.
func (f Filter) IsEmpty() bool {
	return len(f.Jurisdictions) == 0
}

// Searcher returns up to k documents ranked by relevance, best first.
// Failures are reported as *SearchError.
type Searcher interface {
	Search(ctx context.Context, query string, filter Filter, k int) ([]Document, error)
}

// SearchError reports a retrieval backend fault: unreachable, rejected
// filter, or an unreadable response.
type SearchError struct {
	Backend string
	Op      string
	Err     error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s search %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}
