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
)

// =============================================================================
// RouterOutput
// =============================================================================

// RouterOutput is the structured classification produced for one turn.
//
// The struct tags serve three consumers: `json` for the wire shape,
// `description`/`enum` for the JSON schema handed to the model, and
// `validate` for the post-parse check.
type RouterOutput struct {
	DetectedJurisdiction string `json:"detected_jurisdiction,omitempty" description:"Province code only if the conversation explicitly names or clearly implies one" enum:"ON,BC,AB" validate:"omitempty,oneof=ON BC AB"`
	Intent               string `json:"intent" description:"Purpose of the user's latest request" enum:"ADVICE,DRAFT,FORM,CLARIFY,OFF_TOPIC,ASK_JURISDICTION" validate:"required,oneof=ADVICE DRAFT FORM CLARIFY OFF_TOPIC ASK_JURISDICTION"`
	Topic                string `json:"topic" description:"Legal category of the whole conversation" enum:"TENANCY,FAMILY,IMMIGRATION,EMPLOYMENT,CRIMINAL,TAX,BUSINESS,OTHER_LEGAL,NON_LEGAL" validate:"required,oneof=TENANCY FAMILY IMMIGRATION EMPLOYMENT CRIMINAL TAX BUSINESS OTHER_LEGAL NON_LEGAL"`
	LegalIssue           string `json:"legal_issue" description:"One-line summary of the user's legal problem across the whole conversation" validate:"max=1000"`
	MissingInfoQuestion  string `json:"missing_info_question,omitempty" description:"A single follow-up question when more information is needed" validate:"max=1000"`
}

// Normalize folds the casing and spelling variants models commonly emit
// ("advice", "Ontario", "other legal") into the canonical forms before
// validation. An unrecognized jurisdiction is treated as not detected.
func (r *RouterOutput) Normalize() {
	r.Intent = canonicalEnum(r.Intent)
	r.Topic = canonicalEnum(r.Topic)
	if j, ok := ParseJurisdiction(r.DetectedJurisdiction); ok {
		r.DetectedJurisdiction = string(j)
	} else {
		r.DetectedJurisdiction = ""
	}
	r.LegalIssue = strings.TrimSpace(r.LegalIssue)
	r.MissingInfoQuestion = strings.TrimSpace(r.MissingInfoQuestion)
}

func canonicalEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// =============================================================================
// ResponseOutput
// =============================================================================

// Citation is a verbatim quote from one excerpt.
type Citation struct {
	SourceTitle string `json:"source_title" description:"Source of the quoted excerpt" validate:"required"`
	Quote       string `json:"quote" description:"Verbatim text copied from the excerpt" validate:"required"`
	URL         string `json:"url,omitempty" description:"URL of the excerpt, copied exactly"`
}

// Option is an action the frontend renders as a button.
type Option struct {
	Label       string `json:"label" description:"Short button text" validate:"required"`
	Action      string `json:"action" description:"Machine-readable action or reply value" validate:"required"`
	Description string `json:"description,omitempty" description:"One sentence describing the option"`
}

// ResponseOutput is the structured payload returned for every turn.
type ResponseOutput struct {
	Explanation string     `json:"explanation" description:"The answer shown to the user" validate:"required"`
	Citations   []Citation `json:"citations" description:"Quotes supporting the explanation" validate:"dive"`
	Options     []Option   `json:"options" description:"Zero or more suggested next actions" validate:"dive"`
}

// Normalize trims text and guarantees non-nil slices so the payload always
// serializes citations and options as arrays.
func (r *ResponseOutput) Normalize() {
	r.Explanation = strings.TrimSpace(r.Explanation)
	if r.Citations == nil {
		r.Citations = []Citation{}
	}
	if r.Options == nil {
		r.Options = []Option{}
	}
}

// JSON serializes the payload. ResponseOutput contains only strings and
// slices of strings, so marshalling cannot fail.
func (r *ResponseOutput) JSON() string {
	out := *r
	out.Normalize()
	b, _ := json.Marshal(out)
	return string(b)
}
