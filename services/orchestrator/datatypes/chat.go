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
// Chat Request/Response Types
// =============================================================================

// ChatRequest is the body of POST /chat.
//
// # Fields
//
//   - Message: The user's new message. Required, at most 32KB.
//   - ThreadID: Opaque conversation identifier. Unknown ids start a thread.
//   - Jurisdiction: Optional explicit province selection ("ON", "Ontario").
type ChatRequest struct {
	Message      string `json:"message" validate:"required,maxbytes"`
	ThreadID     string `json:"thread_id" validate:"required,max=128"`
	Jurisdiction string `json:"jurisdiction,omitempty" validate:"max=64"`
}

// Validate checks the request and rejects whitespace-only messages.
func (r *ChatRequest) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	r.ThreadID = strings.TrimSpace(r.ThreadID)
	return validate.Struct(r)
}

// ChatResponse is the body returned by POST /chat.
//
// # Fields
//
//   - Response: The serialized ResponseOutput.
//   - LegalIssue: Issue summary, or "Additional Info Required" on turns
//     that ask the user for more input.
//   - Draft: The generated body; omitted on clarification turns.
//   - DebugInfo: Debug entries appended during this turn.
type ChatResponse struct {
	Response     string       `json:"response"`
	LegalIssue   *string      `json:"legal_issue,omitempty"`
	Draft        *string      `json:"draft,omitempty"`
	ThreadID     string       `json:"thread_id"`
	Intent       Intent       `json:"intent"`
	Topic        Topic        `json:"topic,omitempty"`
	Jurisdiction Jurisdiction `json:"jurisdiction,omitempty"`
	DebugInfo    []DebugEntry `json:"debug_info"`
}

// AdditionalInfoRequired is reported as the legal issue on turns that ask
// the user for more input.
const AdditionalInfoRequired = "Additional Info Required"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
