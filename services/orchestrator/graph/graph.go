// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph runs one conversation turn through the router, research
// and generator nodes and commits the result.
//
// # Description
//
// A turn is ROUTING, then RESEARCHING unless the intent carries nothing to
// ground, then GENERATING, then DONE. Every turn passes through the
// generator so that clarifying and substantive turns share one payload
// shape.
//
// The nodes work on a clone of the stored snapshot. The clone replaces the
// snapshot only when the turn reaches DONE, so a failed turn leaves the
// previous snapshot as the last known good state.
//
// # Thread Safety
//
// Turns on the same thread are serialized by a keyed lock. Turns on
// different threads share no mutable state.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/Juris/pkg/extensions"
	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/observability"
	"github.com/AleutianAI/Juris/services/orchestrator/research"
	"github.com/AleutianAI/Juris/services/orchestrator/routing"
	"github.com/AleutianAI/Juris/services/orchestrator/statestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("juris.orchestrator.graph")

// RouterNode classifies the turn and writes the decision into state.
type RouterNode interface {
	Run(ctx context.Context, state *datatypes.ConversationState) routing.Decision
}

// ResearchNode replaces state.RelevantLaws for the current classification.
type ResearchNode interface {
	Run(ctx context.Context, state *datatypes.ConversationState) research.Strategy
}

// GeneratorNode produces the reply and appends it to state.
type GeneratorNode interface {
	Run(ctx context.Context, state *datatypes.ConversationState) datatypes.ResponseOutput
}

// Turn is one inbound user message.
type Turn struct {
	ThreadID string
	Message  string

	// Jurisdiction, when it parses, is an explicit selection applied before
	// routing.
	Jurisdiction string

	// OwnerID is recorded on threads created by this turn.
	OwnerID string
}

// TurnResult is the committed outcome of a turn.
type TurnResult struct {
	State    *datatypes.ConversationState
	Output   datatypes.ResponseOutput
	Decision routing.Decision
	Strategy research.Strategy

	// Debug holds the debug entries appended during this turn only.
	Debug []datatypes.DebugEntry

	Redactions int
}

// ChatResponse converts the result into the /chat body.
func (r *TurnResult) ChatResponse() datatypes.ChatResponse {
	resp := datatypes.ChatResponse{
		Response:     r.Output.JSON(),
		ThreadID:     r.State.ThreadID,
		Intent:       r.State.UserIntent,
		Topic:        r.State.Topic,
		Jurisdiction: r.State.Jurisdiction,
		DebugInfo:    r.Debug,
	}
	if r.State.UserIntent.NeedsInput() {
		issue := datatypes.AdditionalInfoRequired
		resp.LegalIssue = &issue
		return resp
	}
	if r.State.LegalIssue != "" {
		issue := r.State.LegalIssue
		resp.LegalIssue = &issue
	}
	if r.State.Draft != "" {
		draft := r.State.Draft
		resp.Draft = &draft
	}
	return resp
}

// Graph wires the three nodes to the state store.
type Graph struct {
	store     statestore.Store
	locks     *statestore.KeyedLocker
	filter    extensions.MessageFilter
	router    RouterNode
	research  ResearchNode
	generator GeneratorNode
	metrics   *observability.Metrics
	now       func() time.Time
}

// Option configures a Graph.
type Option func(*Graph)

// WithFilter sets the filter applied to user messages before they are
// stored.
func WithFilter(f extensions.MessageFilter) Option {
	return func(g *Graph) {
		if f != nil {
			g.filter = f
		}
	}
}

// WithMetrics records turns to m.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

// WithLocker shares a keyed locker with other writers of the same store.
func WithLocker(l *statestore.KeyedLocker) Option {
	return func(g *Graph) {
		if l != nil {
			g.locks = l
		}
	}
}

// New returns a Graph. store and all three nodes are required.
func New(store statestore.Store, router RouterNode, researcher ResearchNode, generator GeneratorNode, opts ...Option) *Graph {
	g := &Graph{
		store:     store,
		locks:     statestore.NewKeyedLocker(),
		filter:    &extensions.NopMessageFilter{},
		router:    router,
		research:  researcher,
		generator: generator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Locker returns the per-thread lock used by RunTurn.
func (g *Graph) Locker() *statestore.KeyedLocker {
	return g.locks
}

// RunTurn processes turn and commits the new snapshot.
//
// # Outputs
//
//   - *TurnResult: The committed state and reply.
//   - error: Non-nil only when the thread lock could not be acquired or the
//     state store failed to load or save. The stored snapshot is unchanged
//     in every error case.
func (g *Graph) RunTurn(ctx context.Context, turn Turn) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "Graph.RunTurn")
	defer span.End()
	span.SetAttributes(attribute.String("graph.thread_id", turn.ThreadID))

	g.metrics.TurnStarted()
	defer g.metrics.TurnEnded()
	start := time.Now()
	defer func() { g.metrics.ObserveNode(observability.NodeGraph, time.Since(start)) }()

	unlock, err := g.locks.LockContext(ctx, turn.ThreadID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("lock thread %s: %w", turn.ThreadID, err)
	}
	defer unlock()

	prior, err := g.store.Load(ctx, turn.ThreadID)
	isNew := errors.Is(err, statestore.ErrNotFound)
	if err != nil && !isNew {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	now := g.now()
	if isNew {
		prior = datatypes.NewConversationState(turn.ThreadID, now)
		prior.OwnerID = turn.OwnerID
	}

	state := prior.Clone()
	debugStart := len(state.DebugLogs)

	message, redactions := g.redact(ctx, turn.Message)
	if j, ok := datatypes.ParseJurisdiction(turn.Jurisdiction); ok {
		state.Jurisdiction = j
	}
	state.AppendMessage(datatypes.RoleUser, message, now)
	if redactions > 0 {
		state.AddDebug(observability.NodeGraph, fmt.Sprintf("redacted=%d", redactions), now)
	}

	decision := g.router.Run(ctx, state)
	strategy := research.StrategySkip
	if state.UserIntent.SkipsResearch() {
		state.RelevantLaws = []datatypes.Excerpt{}
	} else {
		strategy = g.research.Run(ctx, state)
	}
	out := g.generator.Run(ctx, state)

	state.UpdatedAt = g.now().UnixMilli()
	if err := g.store.Save(ctx, state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g.metrics.RecordTurn(string(state.UserIntent))
	span.SetAttributes(
		attribute.String("graph.intent", string(state.UserIntent)),
		attribute.String("graph.strategy", string(strategy)),
		attribute.Bool("graph.new_thread", isNew),
	)
	slog.Info("turn committed",
		"thread_id", state.ThreadID,
		"new_thread", isNew,
		"intent", state.UserIntent,
		"strategy", strategy,
		"messages", len(state.Messages),
	)

	return &TurnResult{
		State:      state,
		Output:     out,
		Decision:   decision,
		Strategy:   strategy,
		Debug:      append([]datatypes.DebugEntry{}, state.DebugLogs[debugStart:]...),
		Redactions: redactions,
	}, nil
}

// redact runs the message filter. A filter failure keeps the message as
// sent; the turn still completes.
func (g *Graph) redact(ctx context.Context, message string) (string, int) {
	res, err := g.filter.FilterInput(ctx, message)
	if err != nil || res == nil {
		slog.Warn("message filter failed, storing message unfiltered", "error", err)
		return message, 0
	}
	if !res.WasModified {
		return message, 0
	}
	n := 0
	for _, d := range res.Detections {
		n += d.Count
	}
	return res.Filtered, n
}
