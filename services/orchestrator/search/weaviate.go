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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/AleutianAI/Juris/services/llm"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// DefaultClassName is the Weaviate class holding statute chunks.
const DefaultClassName = "LegalDocument"

const backendWeaviate = "weaviate"

// WeaviateConfig configures a WeaviateSearcher.
type WeaviateConfig struct {
	// URL is the cluster address, e.g. http://weaviate:8080.
	URL       string
	APIKey    string
	ClassName string
}

// WeaviateSearcher runs near-vector queries against a Weaviate class.
type WeaviateSearcher struct {
	client    *weaviate.Client
	embedder  llm.Embedder
	className string
}

// NewWeaviateSearcher creates a searcher. Query text is embedded with
// embedder; the class is expected to have been populated with vectors from
// the same model.
func NewWeaviateSearcher(cfg WeaviateConfig, embedder llm.Embedder) (*WeaviateSearcher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("weaviate URL is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("weaviate searcher requires an embedder")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse weaviate URL: %w", err)
	}
	wcfg := weaviate.Config{Host: parsed.Host, Scheme: parsed.Scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	className := cfg.ClassName
	if className == "" {
		className = DefaultClassName
	}
	return &WeaviateSearcher{client: client, embedder: embedder, className: className}, nil
}

type legalDocumentHit struct {
	Content      string `json:"content"`
	Source       string `json:"source"`
	Jurisdiction string `json:"jurisdiction"`
	URL          string `json:"url"`
	Additional   struct {
		ID        string  `json:"id"`
		Certainty float32 `json:"certainty"`
	} `json:"_additional"`
}

// Search implements Searcher.
func (w *WeaviateSearcher) Search(ctx context.Context, query string, filter Filter, k int) ([]Document, error) {
	if k <= 0 {
		k = 3
	}
	vector, err := w.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &SearchError{Backend: backendWeaviate, Op: "embed", Err: err}
	}

	get := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(
			graphql.Field{Name: "content"},
			graphql.Field{Name: "source"},
			graphql.Field{Name: "jurisdiction"},
			graphql.Field{Name: "url"},
			graphql.Field{Name: "_additional { id certainty }"},
		).
		WithNearVector(w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(k)
	if where := jurisdictionWhere(filter); where != nil {
		get = get.WithWhere(where)
	}

	resp, err := get.Do(ctx)
	if err != nil {
		return nil, &SearchError{Backend: backendWeaviate, Op: "query", Err: err}
	}
	if len(resp.Errors) > 0 {
		return nil, &SearchError{Backend: backendWeaviate, Op: "query", Err: fmt.Errorf("%s", resp.Errors[0].Message)}
	}

	hits, err := parseHits(resp, w.className)
	if err != nil {
		return nil, &SearchError{Backend: backendWeaviate, Op: "decode", Err: err}
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		meta := map[string]string{
			MetaSource:       h.Source,
			MetaJurisdiction: h.Jurisdiction,
		}
		if h.URL != "" {
			meta[MetaURL] = h.URL
		}
		docs = append(docs, Document{ID: h.Additional.ID, Text: h.Content, Metadata: meta, Score: h.Additional.Certainty})
	}
	slog.Debug("weaviate search complete", "class", w.className, "results", len(docs), "filter", filter.Jurisdictions)
	return docs, nil
}

// jurisdictionWhere builds an equality filter, or an OR of equalities for
// set membership. It returns nil for an empty filter.
func jurisdictionWhere(filter Filter) *filters.WhereBuilder {
	if filter.IsEmpty() {
		return nil
	}
	operands := make([]*filters.WhereBuilder, 0, len(filter.Jurisdictions))
	for _, j := range filter.Jurisdictions {
		operands = append(operands, filters.Where().
			WithPath([]string{MetaJurisdiction}).
			WithOperator(filters.Equal).
			WithValueString(j))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.Or).WithOperands(operands)
}

// parseHits pulls Get.<className> out of a GraphQL response.
func parseHits(resp *models.GraphQLResponse, className string) ([]legalDocumentHit, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}
	var body struct {
		Get map[string][]legalDocumentHit `json:"Get"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GraphQL response: %w", err)
	}
	return body.Get[className], nil
}

// LegalDocumentClass returns the schema for the statute chunk class.
// Vectors are supplied by the ingest job, so no vectorizer module is set.
func LegalDocumentClass(className string) *models.Class {
	if className == "" {
		className = DefaultClassName
	}
	filterable := true
	return &models.Class{
		Class:       className,
		Description: "Chunk of a statute, regulation, or court form guide",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}, Description: "Chunk text"},
			{Name: "source", DataType: []string{"text"}, Description: "Source file name", IndexFilterable: &filterable},
			{Name: "jurisdiction", DataType: []string{"text"}, Description: "ON, BC, AB, FEDERAL or General", IndexFilterable: &filterable, Tokenization: "field"},
			{Name: "url", DataType: []string{"text"}, Description: "Public URL of the source"},
		},
	}
}

// EnsureSchema creates the class if it does not exist. It reports whether
// the class was created.
func (w *WeaviateSearcher) EnsureSchema(ctx context.Context) (bool, error) {
	_, err := w.client.Schema().ClassGetter().WithClassName(w.className).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", w.className)
		return false, nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "404") &&
		!strings.Contains(strings.ToLower(err.Error()), "not found") {
		return false, &SearchError{Backend: backendWeaviate, Op: "schema", Err: err}
	}

	slog.Info("Schema not found, creating it", "class", w.className)
	if err := w.client.Schema().ClassCreator().WithClass(LegalDocumentClass(w.className)).Do(ctx); err != nil {
		return false, &SearchError{Backend: backendWeaviate, Op: "schema", Err: err}
	}
	return true, nil
}

var _ Searcher = (*WeaviateSearcher)(nil)
