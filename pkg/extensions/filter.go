// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import "context"

// FilterResult contains the outcome of a filter operation.
//
// Example:
//
//	result := FilterResult{
//	    Filtered:    "My SIN is [REDACTED:canadian_sin]",
//	    WasModified: true,
//	    Detections:  []Detection{{Type: "canadian_sin", Count: 1}},
//	}
type FilterResult struct {
	// Filtered is the message after filtering transformations.
	Filtered string

	// WasModified indicates if any transformations were applied.
	WasModified bool

	// Detections lists what the filter found, one entry per type.
	Detections []Detection
}

// Detection summarizes the matches of one classification in a message.
// The matched text itself is never carried.
type Detection struct {
	Type  string
	Count int
}

// MessageFilter transforms user messages before they enter conversation
// state. Implementations must be safe for concurrent use and must not
// block on external services.
type MessageFilter interface {
	FilterInput(ctx context.Context, message string) (*FilterResult, error)
}

// NopMessageFilter passes messages through unchanged.
type NopMessageFilter struct{}

// FilterInput returns message unmodified.
func (f *NopMessageFilter) FilterInput(_ context.Context, message string) (*FilterResult, error) {
	return &FilterResult{Filtered: message}, nil
}

var _ MessageFilter = (*NopMessageFilter)(nil)
