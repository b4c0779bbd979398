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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/Juris/services/orchestrator"
	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/graph"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runChat(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	svc, err := orchestrator.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	defer svc.Shutdown(context.Background())

	thread := threadID
	if thread == "" {
		thread = uuid.NewString()
	}
	res, err := svc.Graph().RunTurn(cmd.Context(), graph.Turn{
		ThreadID:     thread,
		Message:      strings.Join(args, " "),
		Jurisdiction: jurisdiction,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.ChatResponse())
	}
	renderTurn(cmd.OutOrStdout(), res)
	return nil
}

// renderTurn prints a turn for a terminal reader.
func renderTurn(w io.Writer, res *graph.TurnResult) {
	fmt.Fprintln(w, res.Output.Explanation)

	if len(res.Output.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, c := range res.Output.Citations {
			fmt.Fprintf(w, "  [%d] %s: %q", i+1, c.SourceTitle, c.Quote)
			if c.URL != "" {
				fmt.Fprintf(w, " (%s)", c.URL)
			}
			fmt.Fprintln(w)
		}
	}

	if len(res.Output.Options) > 0 {
		fmt.Fprintln(w, "\nOptions:")
		for _, o := range res.Output.Options {
			line := fmt.Sprintf("  - %s [%s]", o.Label, o.Action)
			if o.Description != "" {
				line += ": " + o.Description
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintf(w, "\nthread=%s intent=%s jurisdiction=%s\n",
		res.State.ThreadID, res.State.UserIntent, jurisdictionOrUnknown(res.State.Jurisdiction))
}

func jurisdictionOrUnknown(j datatypes.Jurisdiction) string {
	if j == datatypes.JurisdictionUnknown {
		return "unknown"
	}
	return string(j)
}
