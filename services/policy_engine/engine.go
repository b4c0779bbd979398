// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy_engine detects and redacts sensitive data (SINs, card
// numbers, bank accounts) in user messages before they are persisted.
package policy_engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/AleutianAI/Juris/pkg/extensions"
	"github.com/AleutianAI/Juris/services/policy_engine/enforcement"
	"gopkg.in/yaml.v3"
)

// PolicyEngine holds the compiled classification rules.
type PolicyEngine struct {
	classifications []Classification
}

// NewPolicyEngine loads the rules embedded in the enforcement package,
// compiles every regex and orders classifications by priority.
func NewPolicyEngine() (*PolicyEngine, error) {
	return NewPolicyEngineFromYAML(enforcement.DataClassificationPatterns)
}

// NewPolicyEngineFromYAML builds an engine from a classification file.
func NewPolicyEngineFromYAML(data []byte) (*PolicyEngine, error) {
	var file ClassificationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the policy file: %w", err)
	}
	if err := file.compile(); err != nil {
		return nil, err
	}
	file.sortByPriority()
	return &PolicyEngine{classifications: file.Classifications}, nil
}

// Scan returns every match in content, ordered by position. Where matches
// overlap, the higher-priority classification wins.
func (e *PolicyEngine) Scan(content string) []Finding {
	var findings []Finding
	claimed := make([]bool, len(content))

	for _, c := range e.classifications {
		for _, p := range c.Patterns {
			for _, loc := range p.compiled.FindAllStringIndex(content, -1) {
				if overlaps(claimed, loc[0], loc[1]) {
					continue
				}
				for i := loc[0]; i < loc[1]; i++ {
					claimed[i] = true
				}
				findings = append(findings, Finding{
					Classification: c.Name,
					PatternID:      p.ID,
					Confidence:     p.Confidence,
					Start:          loc[0],
					End:            loc[1],
				})
			}
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Start < findings[j].Start })
	return findings
}

func overlaps(claimed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

// Redact replaces each finding with "[REDACTED:<classification>]".
func (e *PolicyEngine) Redact(content string) (string, []Finding) {
	findings := e.Scan(content)
	if len(findings) == 0 {
		return content, nil
	}
	out := make([]byte, 0, len(content))
	last := 0
	for _, f := range findings {
		out = append(out, content[last:f.Start]...)
		out = append(out, "[REDACTED:"+f.Classification+"]"...)
		last = f.End
	}
	out = append(out, content[last:]...)
	return string(out), findings
}

// FilterInput implements extensions.MessageFilter.
func (e *PolicyEngine) FilterInput(ctx context.Context, message string) (*extensions.FilterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	redacted, findings := e.Redact(message)
	counts := make(map[string]int)
	var order []string
	for _, f := range findings {
		if counts[f.Classification] == 0 {
			order = append(order, f.Classification)
		}
		counts[f.Classification]++
	}
	detections := make([]extensions.Detection, 0, len(order))
	for _, name := range order {
		detections = append(detections, extensions.Detection{Type: name, Count: counts[name]})
	}
	return &extensions.FilterResult{
		Filtered:    redacted,
		WasModified: len(findings) > 0,
		Detections:  detections,
	}, nil
}

var _ extensions.MessageFilter = (*PolicyEngine)(nil)
