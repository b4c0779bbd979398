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
	"sort"

	"github.com/AleutianAI/Juris/services/llm"
	"github.com/philippgille/chromem-go"
)

const backendChromem = "chromem"

// ChromemConfig configures a ChromemSearcher.
type ChromemConfig struct {
	// Path is the persistence file. Empty keeps the collection in memory.
	Path       string
	Collection string
}

// ChromemSearcher is an embedded Searcher backed by chromem-go.
type ChromemSearcher struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemSearcher opens (or creates) the collection. Documents and
// queries are embedded with embedder.
func NewChromemSearcher(cfg ChromemConfig, embedder llm.Embedder) (*ChromemSearcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("chromem searcher requires an embedder")
	}
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	name := cfg.Collection
	if name == "" {
		name = DefaultClassName
	}
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemSearcher{db: db, collection: collection}, nil
}

// AddDocuments indexes docs. Documents without an ID get one derived from
// their position in the collection.
func (c *ChromemSearcher) AddDocuments(ctx context.Context, docs []Document) error {
	base := c.collection.Count()
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = fmt.Sprintf("doc-%d", base+i)
		}
		err := c.collection.AddDocument(ctx, chromem.Document{
			ID:       id,
			Content:  doc.Text,
			Metadata: doc.Metadata,
		})
		if err != nil {
			return &SearchError{Backend: backendChromem, Op: "add", Err: fmt.Errorf("document %s: %w", id, err)}
		}
	}
	return nil
}

// Count returns the number of indexed documents.
func (c *ChromemSearcher) Count() int {
	return c.collection.Count()
}

// Search implements Searcher. chromem filters are equality-only, so set
// membership runs one query per value and merges by similarity.
func (c *ChromemSearcher) Search(ctx context.Context, query string, filter Filter, k int) ([]Document, error) {
	if k <= 0 {
		k = 3
	}
	total := c.collection.Count()
	if total == 0 {
		return []Document{}, nil
	}
	n := k
	if n > total {
		n = total
	}

	wheres := []map[string]string{nil}
	if !filter.IsEmpty() {
		wheres = wheres[:0]
		for _, j := range filter.Jurisdictions {
			wheres = append(wheres, map[string]string{MetaJurisdiction: j})
		}
	}

	seen := make(map[string]bool)
	var docs []Document
	for _, where := range wheres {
		results, err := c.collection.Query(ctx, query, n, where, nil)
		if err != nil {
			return nil, &SearchError{Backend: backendChromem, Op: "query", Err: err}
		}
		for _, r := range results {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			docs = append(docs, Document{ID: r.ID, Text: r.Content, Metadata: r.Metadata, Score: r.Similarity})
		}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score == docs[j].Score {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].Score > docs[j].Score
	})
	if len(docs) > k {
		docs = docs[:k]
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

var _ Searcher = (*ChromemSearcher)(nil)
