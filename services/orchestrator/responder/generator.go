// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package responder produces the structured reply for a turn.
//
// ASK_JURISDICTION is answered from a static template. Every other intent
// goes through schema-constrained generation followed by output contracts
// that hold regardless of what the model wrote.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/Juris/services/llm"
	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("juris.orchestrator.generator")

const (
	// DefaultJurisdictionPrompt is used when the router stored no question.
	DefaultJurisdictionPrompt = "Which province are you in? Tenancy, family and employment law differ between provinces, so I need to know before I can point you to the right rules."

	// FallbackExplanation is returned when generation fails.
	FallbackExplanation = "Sorry, I couldn't put together an answer just now. Please try again in a moment, or rephrase your question."

	// DraftDisclaimer opens every DRAFT response.
	DraftDisclaimer = "This draft is general legal information, not legal advice. Review it carefully and consider speaking with a lawyer or licensed paralegal before you send it."

	historyWindow = 5
)

// Request is the input to one generation.
type Request struct {
	Intent       datatypes.Intent
	Jurisdiction datatypes.Jurisdiction
	Topic        datatypes.Topic
	Issue        string

	// Question is the clarification stored by the router, if any.
	Question string

	Excerpts []datatypes.Excerpt
	History  []datatypes.Message
}

// Generator turns research into a ResponseOutput.
type Generator struct {
	client  llm.LLMClient
	params  llm.GenerationParams
	metrics *observability.Metrics
	now     func() time.Time
}

// New returns a Generator that writes with client.
func New(client llm.LLMClient, metrics *observability.Metrics) *Generator {
	return &Generator{
		client:  client,
		params:  llm.GenerationParams{Temperature: llm.Float32(0.2)},
		metrics: metrics,
		now:     time.Now,
	}
}

// WithParams returns a copy of g using params.
func (g *Generator) WithParams(params llm.GenerationParams) *Generator {
	c := *g
	c.params = params
	return &c
}

// WithClock returns a copy of g that timestamps with now.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	c := *g
	c.now = now
	return &c
}

// JurisdictionPrompt is the static ASK_JURISDICTION payload.
func JurisdictionPrompt(question string) datatypes.ResponseOutput {
	if strings.TrimSpace(question) == "" {
		question = DefaultJurisdictionPrompt
	}
	options := make([]datatypes.Option, 0, 3)
	for _, j := range datatypes.SupportedJurisdictions() {
		options = append(options, datatypes.Option{
			Label:       j.FullName(),
			Action:      string(j),
			Description: fmt.Sprintf("Use %s law", j.FullName()),
		})
	}
	return datatypes.ResponseOutput{
		Explanation: question,
		Citations:   []datatypes.Citation{},
		Options:     options,
	}
}

// Fallback is the payload returned when generation fails.
func Fallback(req Request) datatypes.ResponseOutput {
	explanation := FallbackExplanation
	if req.Intent == datatypes.IntentClarify && strings.TrimSpace(req.Question) != "" {
		explanation = req.Question
	}
	return datatypes.ResponseOutput{
		Explanation: explanation,
		Citations:   []datatypes.Citation{},
		Options:     []datatypes.Option{},
	}
}

// Generate returns the reply for req and whether it is the fallback. It
// never fails.
func (g *Generator) Generate(ctx context.Context, req Request) (datatypes.ResponseOutput, bool) {
	ctx, span := tracer.Start(ctx, "Generator.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("generator.intent", string(req.Intent)))
	start := time.Now()
	defer func() { g.metrics.ObserveNode(observability.NodeGenerator, time.Since(start)) }()

	if req.Intent == datatypes.IntentAskJurisdiction {
		return JurisdictionPrompt(req.Question), false
	}

	messages := []datatypes.Message{{Role: datatypes.RoleSystem, Content: buildPrompt(req)}}
	for _, m := range datatypes.RecentMessages(req.History, historyWindow) {
		if m.Role != datatypes.RoleSystem {
			messages = append(messages, datatypes.Message{Role: m.Role, Content: m.Content})
		}
	}

	out, err := llm.GenerateStructured[datatypes.ResponseOutput](ctx, g.client, messages, g.params)
	if err != nil {
		slog.Error("response generation failed, returning fallback", "intent", req.Intent, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.metrics.RecordFallback(observability.NodeGenerator)
		return Fallback(req), true
	}
	return Enforce(*out, req), false
}

// Enforce applies the per-intent output contracts to a model response.
func Enforce(out datatypes.ResponseOutput, req Request) datatypes.ResponseOutput {
	out.Normalize()

	switch req.Intent {
	case datatypes.IntentOffTopic:
		out.Citations = []datatypes.Citation{}
		out.Options = []datatypes.Option{}
		return out
	case datatypes.IntentClarify:
		out.Citations = []datatypes.Citation{}
		return out
	}

	citations := make([]datatypes.Citation, 0, len(out.Citations))
	for _, c := range out.Citations {
		ex, ok := findExcerpt(req.Excerpts, c.SourceTitle)
		if ok && ex.Kind == datatypes.ExcerptSentinel {
			continue
		}
		if c.URL == "" && ok {
			c.URL = ex.URL
		}
		citations = append(citations, c)
	}

	// Tool results are always surfaced, even if the model left them out.
	for _, ex := range req.Excerpts {
		if ex.Kind != datatypes.ExcerptForm && ex.Kind != datatypes.ExcerptReferral {
			continue
		}
		if hasCitation(citations, ex.Source) {
			continue
		}
		citations = append(citations, datatypes.Citation{SourceTitle: ex.Source, Quote: ex.Text, URL: ex.URL})
	}
	out.Citations = citations

	if req.Intent == datatypes.IntentDraft && !strings.HasPrefix(out.Explanation, DraftDisclaimer) {
		out.Explanation = DraftDisclaimer + "\n\n" + out.Explanation
	}
	return out
}

func findExcerpt(excerpts []datatypes.Excerpt, source string) (datatypes.Excerpt, bool) {
	for _, ex := range excerpts {
		if strings.EqualFold(strings.TrimSpace(ex.Source), strings.TrimSpace(source)) {
			return ex, true
		}
	}
	return datatypes.Excerpt{}, false
}

func hasCitation(citations []datatypes.Citation, source string) bool {
	for _, c := range citations {
		if strings.EqualFold(strings.TrimSpace(c.SourceTitle), strings.TrimSpace(source)) {
			return true
		}
	}
	return false
}

// Run generates the reply for the state's current turn and appends it as
// the assistant message. Substantive replies are also kept in Draft.
func (g *Generator) Run(ctx context.Context, state *datatypes.ConversationState) datatypes.ResponseOutput {
	req := Request{
		Intent:       state.UserIntent,
		Jurisdiction: state.Jurisdiction,
		Topic:        state.Topic,
		Issue:        state.LegalIssue,
		Excerpts:     state.RelevantLaws,
		History:      state.RecentMessages(historyWindow),
	}
	if state.UserIntent.NeedsInput() {
		req.Question = state.Draft
	}

	out, fallback := g.Generate(ctx, req)
	now := g.now()
	if state.UserIntent != datatypes.IntentAskJurisdiction {
		state.Draft = out.Explanation
	}
	state.AppendMessage(datatypes.RoleAssistant, out.JSON(), now)

	msg := fmt.Sprintf("intent=%s citations=%d options=%d", state.UserIntent, len(out.Citations), len(out.Options))
	if fallback {
		msg += " fallback=true"
	}
	state.AddDebug(observability.NodeGenerator, msg, now)
	slog.Info("response generated",
		"thread_id", state.ThreadID,
		"intent", state.UserIntent,
		"citations", len(out.Citations),
		"fallback", fallback,
	)
	return out
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a Canadian legal information assistant. You explain the law in plain language; you do not give legal advice.\n\n")
	fmt.Fprintf(&b, "Intent: %s\n", req.Intent)
	if req.Jurisdiction.IsKnown() {
		fmt.Fprintf(&b, "Jurisdiction: %s (%s)\n", req.Jurisdiction.FullName(), req.Jurisdiction)
	}
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	}
	if req.Issue != "" {
		fmt.Fprintf(&b, "Issue: %s\n", req.Issue)
	}

	b.WriteString("\nExcerpts:\n")
	if len(req.Excerpts) == 0 {
		b.WriteString("(none)\n")
	}
	for i, ex := range req.Excerpts {
		fmt.Fprintf(&b, "[%d] Source: %s\n", i+1, ex.Source)
		if ex.URL != "" {
			fmt.Fprintf(&b, "    URL: %s\n", ex.URL)
		}
		fmt.Fprintf(&b, "    Text: %s\n", ex.Text)
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- citations[].quote must be copied verbatim from an excerpt's Text, and citations[].source_title from its Source.\n")
	b.WriteString("- Copy each excerpt's URL exactly into citations[].url.\n")
	b.WriteString("- Do not cite excerpts whose Source is System.\n")
	b.WriteString("- Propose zero or more options: short next steps the user can click.\n")
	switch req.Intent {
	case datatypes.IntentDraft:
		b.WriteString("- Put the full body of the requested letter or document in explanation. Start it with: \"" + DraftDisclaimer + "\"\n")
	case datatypes.IntentOffTopic:
		b.WriteString("- Politely explain that this service only covers Canadian tenancy, family, immigration, employment, criminal, tax and business questions. Return no citations and no options.\n")
	case datatypes.IntentClarify:
		b.WriteString("- Ask exactly one specific follow-up question in explanation. Return no citations.\n")
	case datatypes.IntentForm:
		b.WriteString("- Name the official form, say what it is for, and give the download link from the excerpts.\n")
	}
	b.WriteString("- If an excerpt lists lawyers, paralegals or referral services, present them to the user. Never refuse to share them.\n")
	b.WriteString("Respond with the JSON object only.")
	return b.String()
}
