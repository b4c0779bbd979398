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
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"chat"},
		{"tools", "serve"},
		{"schema", "sync"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	assert.NotNil(t, chatCmd.Flags().Lookup("thread"))
	assert.NotNil(t, chatCmd.Flags().Lookup("jurisdiction"))
	assert.NotNil(t, toolsServeCmd.Flags().Lookup("http"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestChatRequiresMessage(t *testing.T) {
	assert.Error(t, chatCmd.Args(chatCmd, nil))
	assert.NoError(t, chatCmd.Args(chatCmd, []string{"hello"}))
}

func TestRenderTurn(t *testing.T) {
	state := datatypes.NewConversationState("t-1", testTime)
	state.UserIntent = datatypes.IntentAdvice
	state.Jurisdiction = datatypes.JurisdictionON
	res := &graph.TurnResult{
		State: state,
		Output: datatypes.ResponseOutput{
			Explanation: "Your landlord must return the deposit.",
			Citations: []datatypes.Citation{
				{SourceTitle: "RTA s.106", Quote: "A landlord shall pay interest", URL: "https://ontario.ca/rta"},
			},
			Options: []datatypes.Option{
				{Label: "Find a form", Action: "FORM", Description: "Get the LTB application"},
			},
		},
	}

	var buf bytes.Buffer
	renderTurn(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "Your landlord must return the deposit.")
	assert.Contains(t, out, `[1] RTA s.106: "A landlord shall pay interest" (https://ontario.ca/rta)`)
	assert.Contains(t, out, "- Find a form [FORM]: Get the LTB application")
	assert.Contains(t, out, "thread=t-1 intent=ADVICE jurisdiction=ON")
}

func TestRenderTurn_UnknownJurisdictionNoExtras(t *testing.T) {
	state := datatypes.NewConversationState("t-2", testTime)
	state.UserIntent = datatypes.IntentClarify
	res := &graph.TurnResult{
		State:  state,
		Output: datatypes.ResponseOutput{Explanation: "Tell me more."},
	}

	var buf bytes.Buffer
	renderTurn(&buf, res)

	assert.NotContains(t, buf.String(), "Sources:")
	assert.NotContains(t, buf.String(), "Options:")
	assert.Contains(t, buf.String(), "jurisdiction=unknown")
}

func TestSetupLogging_WritesLogDir(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	logger := setupLogging("debug", "json", dir)
	slog.Info("chat turn", "thread_id", "t-9")
	require.NoError(t, logger.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "juris_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"thread_id":"t-9"`)
}
