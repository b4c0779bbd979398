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

import "strings"

// =============================================================================
// Jurisdiction
// =============================================================================

// Jurisdiction is a legal-authority region code. The empty value means the
// jurisdiction is not yet known.
type Jurisdiction string

const (
	JurisdictionUnknown Jurisdiction = ""
	JurisdictionON      Jurisdiction = "ON"
	JurisdictionBC      Jurisdiction = "BC"
	JurisdictionAB      Jurisdiction = "AB"

	// JurisdictionFederal tags documents that apply in every province.
	JurisdictionFederal Jurisdiction = "FEDERAL"

	// JurisdictionGeneral tags documents with no provincial gate. It is a
	// document tag, never a conversation's jurisdiction.
	JurisdictionGeneral Jurisdiction = "General"
)

// SupportedJurisdictions returns the provinces a conversation can be in,
// in the order they are offered to the user.
func SupportedJurisdictions() []Jurisdiction {
	return []Jurisdiction{JurisdictionON, JurisdictionBC, JurisdictionAB}
}

var jurisdictionNames = map[Jurisdiction]string{
	JurisdictionON:      "Ontario",
	JurisdictionBC:      "British Columbia",
	JurisdictionAB:      "Alberta",
	JurisdictionFederal: "Canada",
}

// FullName returns the human-readable region name ("Ontario"). Unknown and
// General map to "Canada".
func (j Jurisdiction) FullName() string {
	if name, ok := jurisdictionNames[j]; ok {
		return name
	}
	return "Canada"
}

// IsKnown reports whether j is one of the supported provinces.
func (j Jurisdiction) IsKnown() bool {
	switch j {
	case JurisdictionON, JurisdictionBC, JurisdictionAB:
		return true
	}
	return false
}

// ParseJurisdiction accepts a province code or full name in any case
// ("on", "Ontario", "british columbia") and returns the code.
func ParseJurisdiction(s string) (Jurisdiction, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if norm == "" {
		return JurisdictionUnknown, false
	}
	for j, name := range jurisdictionNames {
		if j == JurisdictionFederal {
			continue
		}
		if norm == string(j) || norm == strings.ToUpper(name) {
			return j, true
		}
	}
	return JurisdictionUnknown, false
}

// =============================================================================
// Topic
// =============================================================================

// Topic is the legal category of a conversation.
type Topic string

const (
	TopicTenancy     Topic = "TENANCY"
	TopicFamily      Topic = "FAMILY"
	TopicImmigration Topic = "IMMIGRATION"
	TopicEmployment  Topic = "EMPLOYMENT"
	TopicCriminal    Topic = "CRIMINAL"
	TopicTax         Topic = "TAX"
	TopicBusiness    Topic = "BUSINESS"
	TopicOtherLegal  Topic = "OTHER_LEGAL"
	TopicNonLegal    Topic = "NON_LEGAL"
)

// AllTopics lists the topic taxonomy in prompt order.
func AllTopics() []Topic {
	return []Topic{
		TopicTenancy, TopicFamily, TopicImmigration, TopicEmployment,
		TopicCriminal, TopicTax, TopicBusiness, TopicOtherLegal, TopicNonLegal,
	}
}

// IsUnsupported reports whether the system has no content to serve for t.
func (t Topic) IsUnsupported() bool {
	return t == TopicOtherLegal || t == TopicNonLegal
}

// =============================================================================
// Intent
// =============================================================================

// Intent is the classified purpose of the user's current request.
type Intent string

const (
	IntentAdvice          Intent = "ADVICE"
	IntentDraft           Intent = "DRAFT"
	IntentForm            Intent = "FORM"
	IntentClarify         Intent = "CLARIFY"
	IntentOffTopic        Intent = "OFF_TOPIC"
	IntentAskJurisdiction Intent = "ASK_JURISDICTION"
)

// AllIntents lists the intent taxonomy in prompt order.
func AllIntents() []Intent {
	return []Intent{
		IntentAdvice, IntentDraft, IntentForm,
		IntentClarify, IntentOffTopic, IntentAskJurisdiction,
	}
}

// SkipsResearch reports whether the intent carries no groundable content.
func (i Intent) SkipsResearch() bool {
	switch i {
	case IntentClarify, IntentAskJurisdiction, IntentOffTopic:
		return true
	}
	return false
}

// NeedsInput reports whether the turn is asking the user for more
// information rather than answering.
func (i Intent) NeedsInput() bool {
	return i == IntentClarify || i == IntentAskJurisdiction
}

func joinValues[T ~string](values []T, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, sep)
}

// IntentList renders the intent taxonomy for prompts ("ADVICE, DRAFT, ...").
func IntentList() string { return joinValues(AllIntents(), ", ") }

// TopicList renders the topic taxonomy for prompts.
func TopicList() string { return joinValues(AllTopics(), ", ") }
