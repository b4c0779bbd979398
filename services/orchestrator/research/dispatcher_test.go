// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	mu         sync.Mutex
	docs       []search.Document
	err        error
	calls      int
	lastQuery  string
	lastFilter search.Filter
	lastK      int
}

func (f *fakeSearcher) Search(_ context.Context, query string, filter search.Filter, k int) ([]search.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastQuery, f.lastFilter, f.lastK = query, filter, k
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeFinder struct {
	formText     string
	referralText string
	err          error

	formCalls        int
	referralCalls    int
	lastIssue        string
	lastJurisdiction string
	lastLocation     string
	lastTopic        string
}

func (f *fakeFinder) FindOfficialForm(_ context.Context, issue, jurisdiction string) (string, error) {
	f.formCalls++
	f.lastIssue, f.lastJurisdiction = issue, jurisdiction
	return f.formText, f.err
}

func (f *fakeFinder) FindLawyerReferral(_ context.Context, location, topic string) (string, error) {
	f.referralCalls++
	f.lastLocation, f.lastTopic = location, topic
	return f.referralText, f.err
}

func newDispatcher(s *fakeSearcher, f *fakeFinder) *Dispatcher {
	return NewDispatcher(s, f, f, Config{}, nil)
}

func TestResearch_SkipIntentsMakeNoCalls(t *testing.T) {
	for _, intent := range []datatypes.Intent{datatypes.IntentClarify, datatypes.IntentAskJurisdiction, datatypes.IntentOffTopic} {
		t.Run(string(intent), func(t *testing.T) {
			s := &fakeSearcher{}
			f := &fakeFinder{}
			excerpts, strategy := newDispatcher(s, f).Research(context.Background(), Query{
				Intent:       intent,
				Jurisdiction: datatypes.JurisdictionON,
				Issue:        "find me a lawyer for my form",
			})

			assert.Equal(t, StrategySkip, strategy)
			assert.Empty(t, excerpts)
			assert.NotNil(t, excerpts)
			assert.Zero(t, s.calls)
			assert.Zero(t, f.formCalls)
			assert.Zero(t, f.referralCalls)
		})
	}
}

func TestResearch_FormIntentUsesFormFinder(t *testing.T) {
	s := &fakeSearcher{}
	f := &fakeFinder{formText: "Form T1 (ON). Download: https://tribunalsontario.ca/ltb/forms/"}

	excerpts, strategy := newDispatcher(s, f).Research(context.Background(), Query{
		Intent:       datatypes.IntentForm,
		Jurisdiction: datatypes.JurisdictionON,
		Issue:        "Illegal rent increase, need a lawyer",
	})

	assert.Equal(t, StrategyForm, strategy)
	require.Len(t, excerpts, 1)
	assert.Equal(t, SourceFormFinder, excerpts[0].Source)
	assert.Equal(t, datatypes.ExcerptForm, excerpts[0].Kind)
	assert.Equal(t, "https://tribunalsontario.ca/ltb/forms/", excerpts[0].URL)
	assert.Equal(t, "ON", f.lastJurisdiction)
	assert.Equal(t, "Illegal rent increase, need a lawyer", f.lastIssue)
	assert.Zero(t, s.calls)
	assert.Zero(t, f.referralCalls)
}

func TestResearch_ReferralBypassesSearch(t *testing.T) {
	s := &fakeSearcher{}
	f := &fakeFinder{referralText: "Referral services near Toronto, ON:\n- Law Society Referral Service"}

	excerpts, strategy := newDispatcher(s, f).Research(context.Background(), Query{
		Intent:       datatypes.IntentAdvice,
		Topic:        datatypes.TopicTenancy,
		Jurisdiction: datatypes.JurisdictionON,
		Issue:        "Looking for legal representation",
		Message:      "Can you find me a lawyer in Toronto",
	})

	assert.Equal(t, StrategyReferral, strategy)
	assert.Zero(t, s.calls)
	assert.Equal(t, 1, f.referralCalls)
	assert.Equal(t, "Toronto, ON", f.lastLocation)
	assert.Equal(t, "TENANCY", f.lastTopic)
	require.Len(t, excerpts, 1)
	assert.Equal(t, SourceReferral, excerpts[0].Source)
	assert.Equal(t, datatypes.ExcerptReferral, excerpts[0].Kind)
}

func TestReferralLocation(t *testing.T) {
	assert.Equal(t, "Toronto, ON", ReferralLocation(datatypes.JurisdictionON, "Can you find me a lawyer in Toronto?"))
	assert.Equal(t, "North Vancouver, BC", ReferralLocation(datatypes.JurisdictionBC, "paralegal in North Vancouver please"))
	assert.Equal(t, "Alberta", ReferralLocation(datatypes.JurisdictionAB, "I need an attorney"))
	assert.Equal(t, "Ontario", ReferralLocation(datatypes.JurisdictionON, "a lawyer in Ontario"))
	assert.Equal(t, "Canada", ReferralLocation(datatypes.JurisdictionUnknown, "a lawyer"))
	assert.Equal(t, "Calgary, AB", ReferralLocation(datatypes.JurisdictionAB, "no place here", "Lawyer in Calgary"))
	assert.Equal(t, "Toronto, ON", ReferralLocation(datatypes.JurisdictionON, "I need a lawyer in Toronto. My landlord is evicting me"))
	assert.Equal(t, "Toronto, ON", ReferralLocation(datatypes.JurisdictionON, "I need a lawyer in Toronto.\nI got an N12"))
}

func TestRequestsRepresentation(t *testing.T) {
	for _, s := range []string{
		"Can you find me a lawyer in Toronto",
		"I need a paralegal for my hearing",
		"Could you recommend an attorney?",
		"I'm looking for legal representation",
		"Do you have a referral service?",
		"help me find someone",
	} {
		assert.True(t, RequestsRepresentation(s), s)
	}
	for _, s := range []string{
		"My ex's lawyer sent me a letter about support",
		"My landlord's paralegal served me at work",
		"My landlord is raising rent",
	} {
		assert.False(t, RequestsRepresentation(s), s)
	}
}

func TestChoose_CounselMentionStillSearches(t *testing.T) {
	q := Query{
		Intent:       datatypes.IntentAdvice,
		Topic:        datatypes.TopicFamily,
		Jurisdiction: datatypes.JurisdictionON,
		Issue:        "Letter about child support payments",
		Message:      "My ex's lawyer sent me a letter about support",
	}
	assert.Equal(t, StrategySearch, Choose(q))

	q.Issue = "Wants a family lawyer"
	assert.Equal(t, StrategyReferral, Choose(q))
}

func TestSeeksRepresentation(t *testing.T) {
	for _, s := range []string{"I need a LAWYER", "find a paralegal", "referral please", "legal directory", "representation at the hearing", "help me find someone", "an attorney"} {
		assert.True(t, SeeksRepresentation(s), s)
	}
	assert.False(t, SeeksRepresentation("My landlord is raising rent"))
}

func TestResearch_VectorSearchFiltersByJurisdictionAndFederal(t *testing.T) {
	s := &fakeSearcher{docs: []search.Document{
		{Text: "Section 48 ...", Metadata: map[string]string{search.MetaSource: "ontario_rta.html", search.MetaJurisdiction: "ON"}},
		{Text: "Assault ...", Metadata: map[string]string{search.MetaSource: "criminal_code.pdf", search.MetaURL: "https://example.ca/cc"}},
		{Text: "No provenance"},
	}}

	excerpts, strategy := newDispatcher(s, &fakeFinder{}).Research(context.Background(), Query{
		Intent:       datatypes.IntentAdvice,
		Jurisdiction: datatypes.JurisdictionON,
		Issue:        "I got an N12 notice",
	})

	assert.Equal(t, StrategySearch, strategy)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "I got an N12 notice", s.lastQuery)
	assert.Equal(t, []string{"ON", "FEDERAL"}, s.lastFilter.Jurisdictions)
	assert.Equal(t, DefaultTopK, s.lastK)
	require.Len(t, excerpts, 3)
	assert.Equal(t, "https://www.ontario.ca/laws/statute/06r17", excerpts[0].URL)
	assert.Equal(t, "https://example.ca/cc", excerpts[1].URL)
	assert.Equal(t, UnknownSource, excerpts[2].Source)
	assert.Empty(t, excerpts[2].URL)
	assert.Equal(t, datatypes.ExcerptStatute, excerpts[0].Kind)
}

func TestSearchFilter(t *testing.T) {
	assert.True(t, SearchFilter(datatypes.JurisdictionUnknown).IsEmpty())
	assert.True(t, SearchFilter(datatypes.JurisdictionGeneral).IsEmpty())
	assert.Equal(t, []string{"BC", "FEDERAL"}, SearchFilter(datatypes.JurisdictionBC).Jurisdictions)
}

func TestResearch_TruncatesExcerpts(t *testing.T) {
	long := strings.Repeat("é", DefaultExcerptChars+200)
	s := &fakeSearcher{docs: []search.Document{{Text: long, Metadata: map[string]string{search.MetaSource: "bc_rta.pdf"}}}}

	excerpts, _ := newDispatcher(s, &fakeFinder{}).Research(context.Background(), Query{
		Intent:       datatypes.IntentDraft,
		Jurisdiction: datatypes.JurisdictionBC,
		Issue:        "notice to end tenancy",
	})

	require.Len(t, excerpts, 1)
	assert.Equal(t, DefaultExcerptChars+3, utf8.RuneCountInString(excerpts[0].Text))
	assert.True(t, strings.HasSuffix(excerpts[0].Text, "..."))
	assert.Equal(t, "https://www.bclaws.gov.bc.ca/civix/document/id/complete/statreg/02078_01", excerpts[0].URL)
}

func TestResearch_ZeroResultsSentinel(t *testing.T) {
	s := &fakeSearcher{docs: []search.Document{}}

	excerpts, _ := newDispatcher(s, &fakeFinder{}).Research(context.Background(), Query{
		Intent: datatypes.IntentAdvice, Jurisdiction: datatypes.JurisdictionAB, Issue: "x",
	})

	require.Len(t, excerpts, 1)
	assert.Equal(t, SourceSystem, excerpts[0].Source)
	assert.Equal(t, NoResultsText, excerpts[0].Text)
	assert.Equal(t, datatypes.ExcerptSentinel, excerpts[0].Kind)
}

func TestResearch_SearchErrorSentinel(t *testing.T) {
	s := &fakeSearcher{err: &search.SearchError{Backend: "weaviate", Op: "query", Err: errors.New("connection refused")}}

	excerpts, strategy := newDispatcher(s, &fakeFinder{}).Research(context.Background(), Query{
		Intent: datatypes.IntentAdvice, Jurisdiction: datatypes.JurisdictionON, Issue: "x",
	})

	assert.Equal(t, StrategySearch, strategy)
	require.Len(t, excerpts, 1)
	assert.Equal(t, SearchErrorText, excerpts[0].Text)
	assert.Contains(t, strings.ToLower(excerpts[0].Text), "error searching database")
}

func TestResearch_ToolErrorSentinels(t *testing.T) {
	f := &fakeFinder{err: errors.New("tool server down")}
	d := newDispatcher(&fakeSearcher{}, f)

	form, _ := d.Research(context.Background(), Query{Intent: datatypes.IntentForm, Jurisdiction: datatypes.JurisdictionON})
	referral, _ := d.Research(context.Background(), Query{Intent: datatypes.IntentAdvice, Jurisdiction: datatypes.JurisdictionON, Message: "need a lawyer"})

	require.Len(t, form, 1)
	assert.Equal(t, FormErrorText, form[0].Text)
	require.Len(t, referral, 1)
	assert.Equal(t, ReferralErrorText, referral[0].Text)
}

func TestResearch_MissingCollaboratorsDegrade(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, Config{}, nil)

	excerpts, _ := d.Research(context.Background(), Query{Intent: datatypes.IntentAdvice, Jurisdiction: datatypes.JurisdictionON, Issue: "x"})
	require.Len(t, excerpts, 1)
	assert.Equal(t, SearchErrorText, excerpts[0].Text)
}

func TestResearch_Idempotent(t *testing.T) {
	s := &fakeSearcher{docs: []search.Document{
		{Text: "a", Metadata: map[string]string{search.MetaSource: "ontario_rta.html"}},
		{Text: "b", Metadata: map[string]string{search.MetaSource: "criminal_code.pdf"}},
	}}
	d := newDispatcher(s, &fakeFinder{})
	q := Query{Intent: datatypes.IntentAdvice, Topic: datatypes.TopicTenancy, Jurisdiction: datatypes.JurisdictionON, Issue: "rent"}

	first, _ := d.Research(context.Background(), q)
	second, _ := d.Research(context.Background(), q)

	assert.Equal(t, first, second)
}

func TestRun_ReplacesRelevantLaws(t *testing.T) {
	s := &fakeSearcher{docs: []search.Document{{Text: "new", Metadata: map[string]string{search.MetaSource: "alberta_rta.pdf"}}}}
	state := datatypes.NewConversationState("t", testNow())
	state.Jurisdiction = datatypes.JurisdictionAB
	state.UserIntent = datatypes.IntentAdvice
	state.LegalIssue = "deposit"
	state.RelevantLaws = []datatypes.Excerpt{{Source: "old", Text: "stale"}}

	strategy := newDispatcher(s, &fakeFinder{}).Run(context.Background(), state)

	assert.Equal(t, StrategySearch, strategy)
	require.Len(t, state.RelevantLaws, 1)
	assert.Equal(t, "new", state.RelevantLaws[0].Text)
	require.Len(t, state.DebugLogs, 1)
	assert.Equal(t, "research", state.DebugLogs[0].Node)
	assert.Contains(t, state.DebugLogs[0].Message, "strategy=vector_search")
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "https://kings-printer.alberta.ca/documents/Acts/R17P1.pdf", SourceURL("data/Alberta_RTA.pdf"))
	assert.Equal(t, "https://laws-lois.justice.gc.ca/eng/acts/c-46/", SourceURL(`C:\docs\criminal_code.pdf`))
	assert.Empty(t, SourceURL("unknown.pdf"))
	assert.Empty(t, SourceURL(""))
}

func testNow() time.Time { return time.Unix(1700000000, 0) }
