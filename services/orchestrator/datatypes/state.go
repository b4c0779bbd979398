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

import "time"

// StateSchemaVersion is written into every persisted ConversationState.
// Bump it when a field changes meaning.
const StateSchemaVersion = 1

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one role-tagged chat turn.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at,omitempty"` // unix millis
}

// ExcerptKind records which retrieval strategy produced an Excerpt.
type ExcerptKind string

const (
	ExcerptStatute  ExcerptKind = "statute"
	ExcerptForm     ExcerptKind = "form"
	ExcerptReferral ExcerptKind = "referral"
	ExcerptSentinel ExcerptKind = "sentinel"
)

// Excerpt is a retrieved snippet of source text plus provenance.
type Excerpt struct {
	Source string      `json:"source"`
	URL    string      `json:"url,omitempty"`
	Text   string      `json:"text"`
	Kind   ExcerptKind `json:"kind"`
}

// DebugEntry is one line of a thread's diagnostic trail.
type DebugEntry struct {
	Node    string `json:"node"`
	Message string `json:"message"`
	At      int64  `json:"at"` // unix millis
}

// ConversationState is the persisted per-thread record.
//
// # Invariants
//
//   - Messages is append-only.
//   - Jurisdiction, once known, changes only on an explicit new detection.
//   - RelevantLaws holds the current turn's excerpts only.
//   - DebugLogs is append-only and never read for control flow.
//
// # Thread Safety
//
// Not safe for concurrent use. The graph works on a Clone and commits the
// clone at end of turn while holding the thread's lock.
type ConversationState struct {
	SchemaVersion int          `json:"schema_version"`
	ThreadID      string       `json:"thread_id"`
	OwnerID       string       `json:"owner_id,omitempty"`
	Messages      []Message    `json:"messages"`
	Jurisdiction  Jurisdiction `json:"jurisdiction,omitempty"`
	LegalIssue    string       `json:"legal_issue"`
	Topic         Topic        `json:"topic,omitempty"`
	UserIntent    Intent       `json:"user_intent,omitempty"`
	RelevantLaws  []Excerpt    `json:"relevant_laws"`
	Draft         string       `json:"draft,omitempty"`
	DebugLogs     []DebugEntry `json:"debug_logs"`
	CreatedAt     int64        `json:"created_at"`
	UpdatedAt     int64        `json:"updated_at"`
}

// NewConversationState returns the empty state for a thread seen for the
// first time.
func NewConversationState(threadID string, now time.Time) *ConversationState {
	ts := now.UnixMilli()
	return &ConversationState{
		SchemaVersion: StateSchemaVersion,
		ThreadID:      threadID,
		Messages:      []Message{},
		RelevantLaws:  []Excerpt{},
		DebugLogs:     []DebugEntry{},
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
}

// Clone returns a deep copy whose slices share no backing arrays with s.
func (s *ConversationState) Clone() *ConversationState {
	c := *s
	c.Messages = append([]Message{}, s.Messages...)
	c.RelevantLaws = append([]Excerpt{}, s.RelevantLaws...)
	c.DebugLogs = append([]DebugEntry{}, s.DebugLogs...)
	return &c
}

// AppendMessage adds a turn to the end of the history.
func (s *ConversationState) AppendMessage(role, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, CreatedAt: now.UnixMilli()})
}

// AddDebug appends a diagnostic entry for node.
func (s *ConversationState) AddDebug(node, message string, now time.Time) {
	s.DebugLogs = append(s.DebugLogs, DebugEntry{Node: node, Message: message, At: now.UnixMilli()})
}

// RecentMessages returns the last n messages (all of them if n <= 0).
func (s *ConversationState) RecentMessages(n int) []Message {
	return RecentMessages(s.Messages, n)
}

// RecentMessages returns the last n entries of history (all of them if
// n <= 0). The result shares history's backing array.
func RecentMessages(history []Message, n int) []Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// LastUserMessage returns the content of the most recent user turn.
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Upgrade fills fields missing from snapshots written by older versions.
func (s *ConversationState) Upgrade() {
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.RelevantLaws == nil {
		s.RelevantLaws = []Excerpt{}
	}
	if s.DebugLogs == nil {
		s.DebugLogs = []DebugEntry{}
	}
	s.SchemaVersion = StateSchemaVersion
}
