// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJurisdiction(t *testing.T) {
	tests := []struct {
		in   string
		want Jurisdiction
		ok   bool
	}{
		{"ON", JurisdictionON, true},
		{"on", JurisdictionON, true},
		{" Ontario ", JurisdictionON, true},
		{"british columbia", JurisdictionBC, true},
		{"AB", JurisdictionAB, true},
		{"FEDERAL", JurisdictionUnknown, false},
		{"Canada", JurisdictionUnknown, false},
		{"Quebec", JurisdictionUnknown, false},
		{"", JurisdictionUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseJurisdiction(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestJurisdiction_FullName(t *testing.T) {
	assert.Equal(t, "Ontario", JurisdictionON.FullName())
	assert.Equal(t, "British Columbia", JurisdictionBC.FullName())
	assert.Equal(t, "Alberta", JurisdictionAB.FullName())
	assert.Equal(t, "Canada", JurisdictionUnknown.FullName())
	assert.False(t, JurisdictionGeneral.IsKnown())
	assert.True(t, JurisdictionBC.IsKnown())
}

func TestIntent_SkipsResearch(t *testing.T) {
	skip := map[Intent]bool{
		IntentClarify:         true,
		IntentAskJurisdiction: true,
		IntentOffTopic:        true,
	}
	for _, intent := range AllIntents() {
		assert.Equal(t, skip[intent], intent.SkipsResearch(), intent)
	}
}

func TestTopic_IsUnsupported(t *testing.T) {
	for _, topic := range AllTopics() {
		want := topic == TopicOtherLegal || topic == TopicNonLegal
		assert.Equal(t, want, topic.IsUnsupported(), topic)
	}
}

func TestTaxonomyLists(t *testing.T) {
	assert.Equal(t, "ADVICE, DRAFT, FORM, CLARIFY, OFF_TOPIC, ASK_JURISDICTION", IntentList())
	assert.True(t, strings.HasPrefix(TopicList(), "TENANCY, FAMILY"))
}

func TestConversationState_CloneIsIndependent(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewConversationState("thread-1", now)
	s.AppendMessage(RoleUser, "hello", now)

	c := s.Clone()
	c.AppendMessage(RoleAssistant, "hi", now)
	c.AddDebug("router", "intent=CLARIFY", now)
	c.Jurisdiction = JurisdictionON

	assert.Len(t, s.Messages, 1)
	assert.Empty(t, s.DebugLogs)
	assert.Equal(t, JurisdictionUnknown, s.Jurisdiction)
	assert.Len(t, c.Messages, 2)
}

func TestConversationState_RecentMessagesAndLastUser(t *testing.T) {
	now := time.Now()
	s := NewConversationState("t", now)
	for i := 0; i < 7; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		s.AppendMessage(role, string(rune('a'+i)), now)
	}

	recent := s.RecentMessages(5)
	require.Len(t, recent, 5)
	assert.Equal(t, "c", recent[0].Content)
	assert.Equal(t, "g", s.LastUserMessage())
	assert.Len(t, s.RecentMessages(0), 7)
}

func TestConversationState_UpgradeFillsNilSlices(t *testing.T) {
	var s ConversationState
	require.NoError(t, json.Unmarshal([]byte(`{"thread_id":"x"}`), &s))

	s.Upgrade()

	assert.Equal(t, StateSchemaVersion, s.SchemaVersion)
	assert.NotNil(t, s.Messages)
	assert.NotNil(t, s.RelevantLaws)
	assert.NotNil(t, s.DebugLogs)
}

func TestRouterOutput_NormalizeAndValidate(t *testing.T) {
	out := RouterOutput{
		DetectedJurisdiction: "Ontario",
		Intent:               " advice",
		Topic:                "other legal",
		LegalIssue:           "  patent question ",
	}
	out.Normalize()

	assert.Equal(t, "ON", out.DetectedJurisdiction)
	assert.Equal(t, "ADVICE", out.Intent)
	assert.Equal(t, "OTHER_LEGAL", out.Topic)
	assert.Equal(t, "patent question", out.LegalIssue)
	assert.NoError(t, Validate(&out))
}

func TestRouterOutput_ValidateRejectsUnknownIntent(t *testing.T) {
	out := RouterOutput{Intent: "SUE", Topic: "TENANCY"}
	out.Normalize()

	assert.Error(t, Validate(&out))
}

func TestRouterOutput_UnknownJurisdictionDropped(t *testing.T) {
	out := RouterOutput{DetectedJurisdiction: "Quebec", Intent: "ADVICE", Topic: "TENANCY"}
	out.Normalize()

	assert.Empty(t, out.DetectedJurisdiction)
	assert.NoError(t, Validate(&out))
}

func TestResponseOutput_JSONAlwaysHasArrays(t *testing.T) {
	out := ResponseOutput{Explanation: "Sorry."}

	assert.JSONEq(t, `{"explanation":"Sorry.","citations":[],"options":[]}`, out.JSON())
}

func TestResponseOutput_ValidateDivesIntoCitations(t *testing.T) {
	out := ResponseOutput{
		Explanation: "x",
		Citations:   []Citation{{SourceTitle: "RTA"}},
	}

	assert.Error(t, Validate(&out))
}

func TestChatRequest_Validate(t *testing.T) {
	ok := ChatRequest{Message: " My landlord ", ThreadID: "abc"}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "My landlord", ok.Message)

	blank := ChatRequest{Message: "   ", ThreadID: "abc"}
	assert.Error(t, blank.Validate())

	noThread := ChatRequest{Message: "hi"}
	assert.Error(t, noThread.Validate())

	huge := ChatRequest{Message: strings.Repeat("a", MaxMessageContentBytes+1), ThreadID: "abc"}
	assert.Error(t, huge.Validate())
}
