// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package research selects and runs the retrieval strategy for a turn.
//
// # Description
//
// The first matching rule wins:
//
//  1. CLARIFY, ASK_JURISDICTION and OFF_TOPIC skip retrieval with no calls.
//  2. FORM asks the form finder.
//  3. Representation-seeking wording ("lawyer", "referral", ...) in the
//     routed issue, or an explicit request for one in the message ("find
//     me a lawyer"), asks the referral finder.
//  4. Everything else is a vector search restricted to the thread's
//     province plus FEDERAL.
//
// Backend failures become a single sentinel excerpt; Research never returns
// an error.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/observability"
	"github.com/AleutianAI/Juris/services/orchestrator/search"
	"github.com/AleutianAI/Juris/services/orchestrator/tools"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("juris.orchestrator.research")

// Strategy names the retrieval path taken.
type Strategy string

const (
	StrategySkip     Strategy = "skip"
	StrategyForm     Strategy = "form_lookup"
	StrategyReferral Strategy = "referral_lookup"
	StrategySearch   Strategy = "vector_search"
)

// Excerpt sources and sentinel texts.
const (
	SourceFormFinder = "Official Form Finder"
	SourceReferral   = "Lawyer Referral Directory"
	SourceSystem     = "System"
	UnknownSource    = "Unknown Source"

	NoResultsText     = "No specific statute excerpts were found in the database for this issue."
	SearchErrorText   = "Error searching database. Proceeding with general legal knowledge."
	FormErrorText     = "Error looking up official forms. Proceeding with general legal knowledge."
	ReferralErrorText = "Error looking up lawyer referrals. Proceeding with general legal knowledge."
)

// Defaults.
const (
	DefaultTopK          = 3
	DefaultExcerptChars  = 1500
	DefaultSearchTimeout = 10 * time.Second
	DefaultToolTimeout   = 15 * time.Second
)

var referralVocabulary = []string{
	"lawyer", "paralegal", "referral", "directory", "representation", "help me find", "attorney",
}

// representationRequest matches a message asking for counsel, as opposed
// to one that merely mentions somebody's lawyer.
var representationRequest = regexp.MustCompile(`(?i)\b(?:find|need|want|hire|get|recommend|looking\s+for|refer)\b[^.?!]{0,24}?\b(?:lawyer|paralegal|attorney|representation)s?\b|\breferrals?\b|\bhelp\s+me\s+find\b`)

// placePattern captures a capitalized place name after " in ". Words are
// joined by spaces only, so the match stops at a sentence break.
var placePattern = regexp.MustCompile(`\bin\s+([A-Z][\w'-]*(?:[ \t]+[A-Z][\w'-]*)*)`)

var urlPattern = regexp.MustCompile(`https?://[^\s)]+`)

// Query is the input to one research pass.
type Query struct {
	Intent       datatypes.Intent
	Topic        datatypes.Topic
	Jurisdiction datatypes.Jurisdiction
	Issue        string

	// Message is the user's latest message. An explicit request for a
	// lawyer here triggers a referral, and place names are looked for here
	// first, then in Issue.
	Message string
}

// Config holds Dispatcher tuning.
type Config struct {
	TopK          int
	ExcerptChars  int
	SearchTimeout time.Duration
	ToolTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.ExcerptChars <= 0 {
		c.ExcerptChars = DefaultExcerptChars
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	return c
}

// Dispatcher routes research to the right collaborator.
type Dispatcher struct {
	searcher  search.Searcher
	forms     tools.FormFinder
	referrals tools.ReferralFinder
	cfg       Config
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewDispatcher wires the collaborators.
func NewDispatcher(searcher search.Searcher, forms tools.FormFinder, referrals tools.ReferralFinder, cfg Config, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		searcher:  searcher,
		forms:     forms,
		referrals: referrals,
		cfg:       cfg.withDefaults(),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Research returns the excerpts for q and the strategy used.
func (d *Dispatcher) Research(ctx context.Context, q Query) ([]datatypes.Excerpt, Strategy) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Research")
	defer span.End()
	start := time.Now()
	defer func() { d.metrics.ObserveNode(observability.NodeResearch, time.Since(start)) }()

	strategy := Choose(q)
	span.SetAttributes(attribute.String("research.strategy", string(strategy)))
	d.metrics.RecordStrategy(string(strategy))

	var excerpts []datatypes.Excerpt
	switch strategy {
	case StrategySkip:
		excerpts = []datatypes.Excerpt{}
	case StrategyForm:
		excerpts = d.findForm(ctx, q)
	case StrategyReferral:
		excerpts = d.findReferral(ctx, q)
	default:
		excerpts = d.vectorSearch(ctx, q)
	}
	return excerpts, strategy
}

// Run researches the state's current classification and replaces
// RelevantLaws with the result.
func (d *Dispatcher) Run(ctx context.Context, state *datatypes.ConversationState) Strategy {
	excerpts, strategy := d.Research(ctx, Query{
		Intent:       state.UserIntent,
		Topic:        state.Topic,
		Jurisdiction: state.Jurisdiction,
		Issue:        state.LegalIssue,
		Message:      state.LastUserMessage(),
	})
	state.RelevantLaws = excerpts
	state.AddDebug(observability.NodeResearch, fmt.Sprintf("strategy=%s excerpts=%d", strategy, len(excerpts)), d.now())
	slog.Info("research complete", "thread_id", state.ThreadID, "strategy", strategy, "excerpts", len(excerpts))
	return strategy
}

// Choose applies the dispatch rules without calling anything.
func Choose(q Query) Strategy {
	switch {
	case q.Intent.SkipsResearch():
		return StrategySkip
	case q.Intent == datatypes.IntentForm:
		return StrategyForm
	case RequestsRepresentation(q.Message) || SeeksRepresentation(q.Issue):
		return StrategyReferral
	default:
		return StrategySearch
	}
}

// SeeksRepresentation reports whether text asks for a lawyer, paralegal or
// referral.
func SeeksRepresentation(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range referralVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// RequestsRepresentation reports whether a user message asks for a lawyer,
// paralegal or referral.
func RequestsRepresentation(message string) bool {
	return representationRequest.MatchString(message)
}

// ReferralLocation derives the referral search location. A place named
// with " in <Place>" is qualified by the province code ("Toronto, ON");
// otherwise the province's full name is used.
func ReferralLocation(jurisdiction datatypes.Jurisdiction, texts ...string) string {
	for _, text := range texts {
		m := placePattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		place := strings.TrimRight(m[1], ".,;:!?")
		if j, ok := datatypes.ParseJurisdiction(place); ok {
			return j.FullName()
		}
		if jurisdiction.IsKnown() {
			return fmt.Sprintf("%s, %s", place, jurisdiction)
		}
		return place
	}
	return jurisdiction.FullName()
}

// SearchFilter returns the jurisdiction filter for a vector search.
func SearchFilter(j datatypes.Jurisdiction) search.Filter {
	if !j.IsKnown() {
		return search.Filter{}
	}
	return search.Filter{Jurisdictions: []string{string(j), string(datatypes.JurisdictionFederal)}}
}

func (d *Dispatcher) findForm(ctx context.Context, q Query) []datatypes.Excerpt {
	if d.forms == nil {
		slog.Warn("no form finder configured")
		return []datatypes.Excerpt{sentinel(FormErrorText)}
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ToolTimeout)
	defer cancel()

	text, err := d.forms.FindOfficialForm(ctx, q.Issue, string(q.Jurisdiction))
	if err != nil {
		slog.Error("form lookup failed", "jurisdiction", q.Jurisdiction, "error", err)
		d.metrics.RecordFallback(observability.NodeResearch)
		return []datatypes.Excerpt{sentinel(FormErrorText)}
	}
	return []datatypes.Excerpt{{
		Source: SourceFormFinder,
		URL:    firstURL(text),
		Text:   truncate(text, d.cfg.ExcerptChars),
		Kind:   datatypes.ExcerptForm,
	}}
}

func (d *Dispatcher) findReferral(ctx context.Context, q Query) []datatypes.Excerpt {
	if d.referrals == nil {
		slog.Warn("no referral finder configured")
		return []datatypes.Excerpt{sentinel(ReferralErrorText)}
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ToolTimeout)
	defer cancel()

	location := ReferralLocation(q.Jurisdiction, q.Message, q.Issue)
	text, err := d.referrals.FindLawyerReferral(ctx, location, string(q.Topic))
	if err != nil {
		slog.Error("referral lookup failed", "location", location, "error", err)
		d.metrics.RecordFallback(observability.NodeResearch)
		return []datatypes.Excerpt{sentinel(ReferralErrorText)}
	}
	return []datatypes.Excerpt{{
		Source: SourceReferral,
		URL:    firstURL(text),
		Text:   truncate(text, d.cfg.ExcerptChars),
		Kind:   datatypes.ExcerptReferral,
	}}
}

func (d *Dispatcher) vectorSearch(ctx context.Context, q Query) []datatypes.Excerpt {
	if d.searcher == nil {
		slog.Warn("no searcher configured")
		return []datatypes.Excerpt{sentinel(SearchErrorText)}
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.SearchTimeout)
	defer cancel()

	query := q.Issue
	if strings.TrimSpace(query) == "" {
		query = q.Message
	}
	docs, err := d.searcher.Search(ctx, query, SearchFilter(q.Jurisdiction), d.cfg.TopK)
	if err != nil {
		slog.Error("vector search failed", "jurisdiction", q.Jurisdiction, "error", err)
		d.metrics.RecordFallback(observability.NodeResearch)
		return []datatypes.Excerpt{sentinel(SearchErrorText)}
	}
	if len(docs) == 0 {
		return []datatypes.Excerpt{sentinel(NoResultsText)}
	}
	if len(docs) > d.cfg.TopK {
		docs = docs[:d.cfg.TopK]
	}

	excerpts := make([]datatypes.Excerpt, 0, len(docs))
	for _, doc := range docs {
		source := doc.Metadata[search.MetaSource]
		if source == "" {
			source = UnknownSource
		}
		url := doc.Metadata[search.MetaURL]
		if url == "" {
			url = SourceURL(source)
		}
		excerpts = append(excerpts, datatypes.Excerpt{
			Source: source,
			URL:    url,
			Text:   truncate(doc.Text, d.cfg.ExcerptChars),
			Kind:   datatypes.ExcerptStatute,
		})
	}
	return excerpts
}

func sentinel(text string) datatypes.Excerpt {
	return datatypes.Excerpt{Source: SourceSystem, Text: text, Kind: datatypes.ExcerptSentinel}
}

func firstURL(text string) string {
	return strings.TrimRight(urlPattern.FindString(text), ".,;")
}
