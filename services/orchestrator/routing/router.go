// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing classifies the latest turn of a conversation into a
// jurisdiction, topic, intent and issue summary.
//
// # Description
//
// The Router asks the model for a schema-constrained RouterOutput and then
// applies three rules the model cannot override:
//
//  1. A known jurisdiction is kept unless the output names a different
//     supported one. It is never cleared.
//  2. While the jurisdiction is unknown the intent is ASK_JURISDICTION.
//     Once it is known, ASK_JURISDICTION is demoted to ADVICE when an issue
//     was summarized and to CLARIFY otherwise.
//  3. OTHER_LEGAL and NON_LEGAL topics force OFF_TOPIC, after rule 2.
//
// Generation or validation failures never reach the caller. The Router
// degrades to CLARIFY with an apology question instead.
package routing

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

var tracer = otel.Tracer("juris.orchestrator.router")

const (
	// DefaultWindow is how many trailing messages the classifier sees.
	DefaultWindow = 5

	// FallbackQuestion is stored in draft when classification fails.
	FallbackQuestion = "Sorry, I had trouble understanding that. Could you rephrase your question, including what happened and where you live?"
)

// Decision is the resolved outcome of one routing pass.
type Decision struct {
	Jurisdiction datatypes.Jurisdiction
	Detected     datatypes.Jurisdiction
	Intent       datatypes.Intent
	Topic        datatypes.Topic
	LegalIssue   string

	// Question is the clarification or jurisdiction prompt, if any.
	Question string

	// Fallback is set when the model call failed and the decision is the
	// safe default.
	Fallback bool
}

// Router classifies conversations.
type Router struct {
	client  llm.LLMClient
	window  int
	params  llm.GenerationParams
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithWindow sets how many trailing messages are classified.
func WithWindow(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.window = n
		}
	}
}

// WithMetrics records latency and fallbacks.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithClock overrides time.Now for debug log timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithParams overrides the generation parameters.
func WithParams(p llm.GenerationParams) Option {
	return func(r *Router) { r.params = p }
}

// New returns a Router that classifies with client.
func New(client llm.LLMClient, opts ...Option) *Router {
	r := &Router{
		client: client,
		window: DefaultWindow,
		params: llm.GenerationParams{Temperature: llm.Float32(0)},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies history given the jurisdiction already known for the
// thread. It never fails.
func (r *Router) Route(ctx context.Context, history []datatypes.Message, known datatypes.Jurisdiction) Decision {
	ctx, span := tracer.Start(ctx, "Router.Route")
	defer span.End()
	start := time.Now()
	defer func() { r.metrics.ObserveNode(observability.NodeRouter, time.Since(start)) }()

	window := datatypes.RecentMessages(history, r.window)
	messages := make([]datatypes.Message, 0, len(window)+1)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleSystem, Content: buildPrompt(known)})
	for _, m := range window {
		if m.Role == datatypes.RoleSystem {
			continue
		}
		messages = append(messages, datatypes.Message{Role: m.Role, Content: m.Content})
	}

	out, err := llm.GenerateStructured[datatypes.RouterOutput](ctx, r.client, messages, r.params)
	if err != nil {
		slog.Error("router classification failed, asking user to rephrase", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordFallback(observability.NodeRouter)
		return fallbackDecision(known)
	}

	d := Resolve(*out, known)
	span.SetAttributes(
		attribute.String("router.intent", string(d.Intent)),
		attribute.String("router.topic", string(d.Topic)),
		attribute.String("router.jurisdiction", string(d.Jurisdiction)),
	)
	return d
}

// Resolve applies the jurisdiction and intent rules to a validated model
// output.
func Resolve(out datatypes.RouterOutput, known datatypes.Jurisdiction) Decision {
	detected, _ := datatypes.ParseJurisdiction(out.DetectedJurisdiction)

	jurisdiction := known
	if detected.IsKnown() {
		jurisdiction = detected
	}

	intent := datatypes.Intent(out.Intent)
	topic := datatypes.Topic(out.Topic)
	question := out.MissingInfoQuestion
	switch {
	case !jurisdiction.IsKnown():
		intent = datatypes.IntentAskJurisdiction
	case intent == datatypes.IntentAskJurisdiction:
		// The province question is stale; the model's question asked for it.
		intent = datatypes.IntentClarify
		question = FallbackQuestion
		if strings.TrimSpace(out.LegalIssue) != "" {
			intent = datatypes.IntentAdvice
		}
	}
	if topic.IsUnsupported() {
		intent = datatypes.IntentOffTopic
	}

	d := Decision{
		Jurisdiction: jurisdiction,
		Detected:     detected,
		Intent:       intent,
		Topic:        topic,
		LegalIssue:   out.LegalIssue,
	}
	if intent.NeedsInput() {
		d.Question = question
	}
	return d
}

func fallbackDecision(known datatypes.Jurisdiction) Decision {
	intent := datatypes.IntentClarify
	if !known.IsKnown() {
		intent = datatypes.IntentAskJurisdiction
	}
	return Decision{
		Jurisdiction: known,
		Intent:       intent,
		Question:     FallbackQuestion,
		Fallback:     true,
	}
}

// Run routes the thread's history and writes the decision into state:
// jurisdiction, topic, intent, legal issue, draft and one debug entry.
func (r *Router) Run(ctx context.Context, state *datatypes.ConversationState) Decision {
	d := r.Route(ctx, state.Messages, state.Jurisdiction)

	state.Jurisdiction = d.Jurisdiction
	state.UserIntent = d.Intent
	if d.Topic != "" {
		state.Topic = d.Topic
	}
	if d.LegalIssue != "" {
		state.LegalIssue = d.LegalIssue
	}
	if d.Intent.NeedsInput() {
		state.Draft = d.Question
	}

	msg := fmt.Sprintf("intent=%s topic=%s jurisdiction=%s", d.Intent, d.Topic, jurisdictionLabel(d.Jurisdiction))
	if d.Fallback {
		msg += " fallback=true"
	}
	state.AddDebug(observability.NodeRouter, msg, r.now())

	slog.Info("router decision",
		"thread_id", state.ThreadID,
		"intent", d.Intent,
		"topic", d.Topic,
		"jurisdiction", d.Jurisdiction,
		"fallback", d.Fallback,
	)
	return d
}

func jurisdictionLabel(j datatypes.Jurisdiction) string {
	if j == datatypes.JurisdictionUnknown {
		return "unknown"
	}
	return string(j)
}

func buildPrompt(known datatypes.Jurisdiction) string {
	var b strings.Builder
	b.WriteString("You are the intake classifier for a Canadian legal information service.\n")
	b.WriteString("Read the conversation and classify the user's latest message in the context of the whole conversation.\n\n")

	if known.IsKnown() {
		fmt.Fprintf(&b, "The user's jurisdiction is already known: %s (%s). Only set detected_jurisdiction if the user explicitly says they are now in a different province.\n", known.FullName(), known)
	} else {
		b.WriteString("The user's jurisdiction is not yet known. Set detected_jurisdiction only if the user names or clearly implies a province (a city such as Toronto implies ON, Vancouver implies BC, Calgary implies AB).\n")
	}

	supported := make([]string, 0, 3)
	for _, j := range datatypes.SupportedJurisdictions() {
		supported = append(supported, fmt.Sprintf("%s (%s)", j, j.FullName()))
	}
	fmt.Fprintf(&b, "Supported jurisdictions: %s.\n\n", strings.Join(supported, ", "))

	fmt.Fprintf(&b, "intent must be one of: %s.\n", datatypes.IntentList())
	b.WriteString("- ADVICE: the user wants to understand their rights or options.\n")
	b.WriteString("- DRAFT: the user wants a letter, notice or other document written.\n")
	b.WriteString("- FORM: the user wants the official form for their situation.\n")
	b.WriteString("- CLARIFY: the request is too vague to answer; write one specific question in missing_info_question.\n")
	b.WriteString("- OFF_TOPIC: the request is not something a Canadian legal information service should answer.\n")
	b.WriteString("- ASK_JURISDICTION: the answer depends on a province that has not been given.\n\n")

	fmt.Fprintf(&b, "topic must be one of: %s. Use OTHER_LEGAL for legal areas outside that list (e.g. patents) and NON_LEGAL for anything that is not a legal question.\n\n", datatypes.TopicList())
	b.WriteString("legal_issue is a one-line summary of the user's problem across the whole conversation, not just the latest message.\n")
	b.WriteString("Respond with the JSON object only.")
	return b.String()
}
