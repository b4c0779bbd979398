// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/AleutianAI/Juris/services/orchestrator"
	"github.com/AleutianAI/Juris/services/orchestrator/config"
	"github.com/AleutianAI/Juris/services/orchestrator/search"
	"github.com/spf13/cobra"
)

func runSchemaSync(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.Search.Backend != config.SearchWeaviate {
		printf(cmd, "search.backend is %q; nothing to sync\n", cfg.Search.Backend)
		return nil
	}

	_, embedder, err := orchestrator.NewLLM(cfg)
	if err != nil {
		return err
	}
	searcher, err := orchestrator.NewSearcher(cfg, embedder)
	if err != nil {
		return err
	}
	weaviate, ok := searcher.(*search.WeaviateSearcher)
	if !ok {
		return fmt.Errorf("unexpected searcher %T", searcher)
	}

	created, err := weaviate.EnsureSchema(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync schema: %w", err)
	}
	if created {
		printf(cmd, "created class %s\n", className(cfg))
	} else {
		printf(cmd, "class %s already exists\n", className(cfg))
	}
	return nil
}

func className(cfg *config.Config) string {
	if cfg.Search.Class != "" {
		return cfg.Search.Class
	}
	return search.DefaultClassName
}
