// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package responder

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/Juris/services/llm/llmtest"
	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1700000000, 0)

func newGenerator(mock *llmtest.MockLLMClient) *Generator {
	return New(mock, nil).WithClock(func() time.Time { return fixedNow })
}

var rtaExcerpt = datatypes.Excerpt{
	Source: "ontario_rta.pdf",
	URL:    "https://www.ontario.ca/laws/statute/06r17",
	Text:   "A landlord shall not increase rent more than once in 12 months.",
	Kind:   datatypes.ExcerptStatute,
}

func TestJurisdictionPrompt_StaticPayload(t *testing.T) {
	mock := llmtest.NewMockLLMClient()
	out, fallback := newGenerator(mock).Generate(context.Background(), Request{Intent: datatypes.IntentAskJurisdiction})

	assert.False(t, fallback)
	assert.Equal(t, 0, mock.Calls())
	assert.Equal(t, DefaultJurisdictionPrompt, out.Explanation)
	assert.Empty(t, out.Citations)
	require.Len(t, out.Options, 3)
	assert.Equal(t, datatypes.Option{Label: "Ontario", Action: "ON", Description: "Use Ontario law"}, out.Options[0])
	assert.Equal(t, "BC", out.Options[1].Action)
	assert.Equal(t, "Alberta", out.Options[2].Label)
}

func TestJurisdictionPrompt_UsesStoredQuestion(t *testing.T) {
	out := JurisdictionPrompt("Are you in Ontario, BC or Alberta?")

	assert.Equal(t, "Are you in Ontario, BC or Alberta?", out.Explanation)
	assert.Len(t, out.Options, 3)
}

func TestGenerate_FillsMissingCitationURL(t *testing.T) {
	mock := llmtest.NewMockLLMClient(`{"explanation":"Rent can rise once a year.","citations":[{"source_title":"ontario_rta.pdf","quote":"A landlord shall not increase rent more than once in 12 months."}],"options":[]}`)

	out, fallback := newGenerator(mock).Generate(context.Background(), Request{
		Intent:       datatypes.IntentAdvice,
		Jurisdiction: datatypes.JurisdictionON,
		Excerpts:     []datatypes.Excerpt{rtaExcerpt},
	})

	assert.False(t, fallback)
	require.Len(t, out.Citations, 1)
	assert.Equal(t, rtaExcerpt.URL, out.Citations[0].URL)
}

func TestGenerate_PromptCarriesContext(t *testing.T) {
	mock := llmtest.NewMockLLMClient(`{"explanation":"ok"}`)
	history := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "My landlord is raising rent"},
		{Role: datatypes.RoleAssistant, Content: `{"explanation":"Which province?"}`},
		{Role: datatypes.RoleUser, Content: "Ontario"},
	}

	newGenerator(mock).Generate(context.Background(), Request{
		Intent:       datatypes.IntentAdvice,
		Jurisdiction: datatypes.JurisdictionON,
		Topic:        datatypes.TopicTenancy,
		Issue:        "Rent increase",
		Excerpts:     []datatypes.Excerpt{rtaExcerpt},
		History:      history,
	})

	require.Len(t, mock.LastMessages, 4)
	system := mock.LastMessages[0].Content
	assert.Contains(t, system, "Intent: ADVICE")
	assert.Contains(t, system, "Ontario (ON)")
	assert.Contains(t, system, "Issue: Rent increase")
	assert.Contains(t, system, rtaExcerpt.URL)
	assert.Contains(t, system, "Never refuse")
	assert.Equal(t, "Ontario", mock.LastMessages[3].Content)
	assert.NotNil(t, mock.LastParams.Schema)
}

func TestGenerate_HistoryIsWindowed(t *testing.T) {
	mock := llmtest.NewMockLLMClient(`{"explanation":"ok"}`)
	var history []datatypes.Message
	for i := 0; i < 9; i++ {
		history = append(history, datatypes.Message{Role: datatypes.RoleUser, Content: string(rune('a' + i))})
	}

	newGenerator(mock).Generate(context.Background(), Request{Intent: datatypes.IntentAdvice, History: history})

	require.Len(t, mock.LastMessages, 1+historyWindow)
	assert.Equal(t, "e", mock.LastMessages[1].Content)
}

func TestGenerate_SurfacesToolResults(t *testing.T) {
	referral := datatypes.Excerpt{
		Source: "Lawyer Referral Directory",
		Text:   "Referral services near Toronto, ON for tenancy matters:\n- Law Society Referral Service",
		Kind:   datatypes.ExcerptReferral,
	}
	mock := llmtest.NewMockLLMClient(`{"explanation":"Here are some options.","citations":[],"options":[]}`)

	out, _ := newGenerator(mock).Generate(context.Background(), Request{
		Intent:   datatypes.IntentAdvice,
		Excerpts: []datatypes.Excerpt{referral},
	})

	require.Len(t, out.Citations, 1)
	assert.Equal(t, referral.Source, out.Citations[0].SourceTitle)
	assert.Equal(t, referral.Text, out.Citations[0].Quote)
}

func TestGenerate_DoesNotDuplicateCitedToolResult(t *testing.T) {
	form := datatypes.Excerpt{
		Source: "Official Form Finder",
		URL:    "https://tribunalsontario.ca/ltb/forms/",
		Text:   "Tenant Application (T2).",
		Kind:   datatypes.ExcerptForm,
	}
	mock := llmtest.NewMockLLMClient(`{"explanation":"Use the T2.","citations":[{"source_title":"Official Form Finder","quote":"Tenant Application (T2)."}]}`)

	out, _ := newGenerator(mock).Generate(context.Background(), Request{
		Intent:   datatypes.IntentForm,
		Excerpts: []datatypes.Excerpt{form},
	})

	require.Len(t, out.Citations, 1)
	assert.Equal(t, form.URL, out.Citations[0].URL)
}

func TestGenerate_DropsSentinelCitations(t *testing.T) {
	sentinel := datatypes.Excerpt{Source: "System", Text: "Error searching database.", Kind: datatypes.ExcerptSentinel}
	mock := llmtest.NewMockLLMClient(`{"explanation":"General info.","citations":[{"source_title":"System","quote":"Error searching database."}]}`)

	out, _ := newGenerator(mock).Generate(context.Background(), Request{
		Intent:   datatypes.IntentAdvice,
		Excerpts: []datatypes.Excerpt{sentinel},
	})

	assert.Empty(t, out.Citations)
}

func TestGenerate_OffTopicHasNoCitationsOrOptions(t *testing.T) {
	mock := llmtest.NewMockLLMClient(`{"explanation":"I can only help with Canadian legal questions.","citations":[{"source_title":"x","quote":"y"}],"options":[{"label":"Try again","action":"retry"}]}`)

	out, fallback := newGenerator(mock).Generate(context.Background(), Request{Intent: datatypes.IntentOffTopic})

	assert.False(t, fallback)
	assert.NotEmpty(t, out.Explanation)
	assert.Empty(t, out.Citations)
	assert.Empty(t, out.Options)
	assert.JSONEq(t, `{"explanation":"I can only help with Canadian legal questions.","citations":[],"options":[]}`, out.JSON())
}

func TestGenerate_ClarifyHasNoCitations(t *testing.T) {
	mock := llmtest.NewMockLLMClient(`{"explanation":"When did you receive the notice?","citations":[{"source_title":"x","quote":"y"}],"options":[{"label":"This week","action":"this week"}]}`)

	out, _ := newGenerator(mock).Generate(context.Background(), Request{Intent: datatypes.IntentClarify})

	assert.Empty(t, out.Citations)
	assert.Len(t, out.Options, 1)
}

func TestGenerate_DraftCarriesDisclaimerOnce(t *testing.T) {
	mock := llmtest.NewMockLLMClient(
		`{"explanation":"Dear Landlord, ..."}`,
		`{"explanation":"`+DraftDisclaimer+`\n\nDear Landlord, ..."}`,
	)
	g := newGenerator(mock)

	first, _ := g.Generate(context.Background(), Request{Intent: datatypes.IntentDraft})
	second, _ := g.Generate(context.Background(), Request{Intent: datatypes.IntentDraft})

	assert.True(t, strings.HasPrefix(first.Explanation, DraftDisclaimer))
	assert.Contains(t, first.Explanation, "Dear Landlord")
	assert.Equal(t, 1, strings.Count(second.Explanation, DraftDisclaimer))
}

func TestGenerate_FallbackOnTransportError(t *testing.T) {
	mock := &llmtest.MockLLMClient{Err: errors.New("connection refused")}

	out, fallback := newGenerator(mock).Generate(context.Background(), Request{Intent: datatypes.IntentAdvice})

	assert.True(t, fallback)
	assert.Equal(t, FallbackExplanation, out.Explanation)
	assert.Empty(t, out.Citations)
	assert.Empty(t, out.Options)
}

func TestGenerate_FallbackOnInvalidOutput(t *testing.T) {
	mock := llmtest.NewMockLLMClient(`{"citations":[]}`)

	out, fallback := newGenerator(mock).Generate(context.Background(), Request{Intent: datatypes.IntentAdvice})

	assert.True(t, fallback)
	assert.Equal(t, FallbackExplanation, out.Explanation)
}

func TestGenerate_ClarifyFallbackUsesStoredQuestion(t *testing.T) {
	mock := &llmtest.MockLLMClient{Err: errors.New("timeout")}

	out, fallback := newGenerator(mock).Generate(context.Background(), Request{
		Intent:   datatypes.IntentClarify,
		Question: "Could you tell me more about your situation?",
	})

	assert.True(t, fallback)
	assert.Equal(t, "Could you tell me more about your situation?", out.Explanation)
}

func TestRun_AppendsAssistantMessageAndDraft(t *testing.T) {
	mock := llmtest.NewMockLLMClient(`{"explanation":"Rent can rise once a year.","options":[{"label":"Draft a letter","action":"draft"}]}`)
	state := datatypes.NewConversationState("thread-1", fixedNow)
	state.Jurisdiction = datatypes.JurisdictionON
	state.UserIntent = datatypes.IntentAdvice
	state.AppendMessage(datatypes.RoleUser, "Can my landlord raise rent twice?", fixedNow)

	out := newGenerator(mock).Run(context.Background(), state)

	require.Len(t, state.Messages, 2)
	last := state.Messages[1]
	assert.Equal(t, datatypes.RoleAssistant, last.Role)
	var decoded datatypes.ResponseOutput
	require.NoError(t, json.Unmarshal([]byte(last.Content), &decoded))
	assert.Equal(t, out.Explanation, decoded.Explanation)
	assert.Equal(t, "Rent can rise once a year.", state.Draft)
	require.Len(t, state.DebugLogs, 1)
	assert.Equal(t, "generator", state.DebugLogs[0].Node)
	assert.Equal(t, "intent=ADVICE citations=0 options=1", state.DebugLogs[0].Message)
}

func TestRun_AskJurisdictionKeepsStoredQuestion(t *testing.T) {
	mock := llmtest.NewMockLLMClient()
	state := datatypes.NewConversationState("thread-1", fixedNow)
	state.UserIntent = datatypes.IntentAskJurisdiction
	state.Draft = "Which province are you in?"
	state.AppendMessage(datatypes.RoleUser, "My landlord is raising rent", fixedNow)

	out := newGenerator(mock).Run(context.Background(), state)

	assert.Equal(t, "Which province are you in?", out.Explanation)
	assert.Equal(t, "Which province are you in?", state.Draft)
	assert.Len(t, state.Messages, 2)
	assert.Equal(t, 0, mock.Calls())
}

func TestRun_FallbackIsLogged(t *testing.T) {
	mock := &llmtest.MockLLMClient{Err: errors.New("boom")}
	state := datatypes.NewConversationState("thread-1", fixedNow)
	state.UserIntent = datatypes.IntentAdvice
	state.AppendMessage(datatypes.RoleUser, "hi", fixedNow)

	newGenerator(mock).Run(context.Background(), state)

	require.Len(t, state.DebugLogs, 1)
	assert.Contains(t, state.DebugLogs[0].Message, "fallback=true")
}
