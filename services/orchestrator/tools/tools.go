// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools holds the form-finder and lawyer-referral lookups used by
// the research step. Directory answers from built-in tables; MCPClient
// calls the same lookups on a remote MCP tool server.
package tools

import "context"

// Tool names exposed over MCP.
const (
	ToolFindOfficialForm   = "find_official_form"
	ToolFindLawyerReferral = "find_lawyer_referral"
)

// FormFinder returns a text description of the official form for issue in
// jurisdiction (a province code such as "ON").
type FormFinder interface {
	FindOfficialForm(ctx context.Context, issue, jurisdiction string) (string, error)
}

// ReferralFinder returns a text description of referral services near
// location (e.g. "Toronto, ON") for topic.
type ReferralFinder interface {
	FindLawyerReferral(ctx context.Context, location, topic string) (string, error)
}

// Finder is both lookups.
type Finder interface {
	FormFinder
	ReferralFinder
}
