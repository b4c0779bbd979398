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
	"path/filepath"
	"strings"
)

// sourceURLs maps ingested file names to their public URLs. Used when a
// document's metadata carries no url.
var sourceURLs = map[string]string{
	"ontario_rta.html":  "https://www.ontario.ca/laws/statute/06r17",
	"bc_rta.pdf":        "https://www.bclaws.gov.bc.ca/civix/document/id/complete/statreg/02078_01",
	"alberta_rta.pdf":   "https://kings-printer.alberta.ca/documents/Acts/R17P1.pdf",
	"criminal_code.pdf": "https://laws-lois.justice.gc.ca/eng/acts/c-46/",
}

// SourceURL returns the public URL for an ingested file name, matching on
// the base name case-insensitively. It returns "" for unknown files.
func SourceURL(source string) string {
	if source == "" {
		return ""
	}
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(source, "\\", "/")))
	return sourceURLs[base]
}

// truncate returns at most limit runes of s, marking the cut with "...".
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
