// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes finder as the find_official_form and
// find_lawyer_referral MCP tools.
func NewMCPServer(finder Finder, version string) *server.MCPServer {
	s := server.NewMCPServer("juris-tools", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.Tool{
		Name:        ToolFindOfficialForm,
		Description: "Find the official court or tribunal form for a legal issue in a Canadian province.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"issue": map[string]interface{}{
					"type":        "string",
					"description": "Summary of the user's legal issue",
				},
				"jurisdiction": map[string]interface{}{
					"type":        "string",
					"description": "Province code: ON, BC or AB",
				},
			},
			Required: []string{"issue", "jurisdiction"},
		},
	}, formHandler(finder))

	s.AddTool(mcp.Tool{
		Name:        ToolFindLawyerReferral,
		Description: "List lawyer and paralegal referral services near a location.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"location": map[string]interface{}{
					"type":        "string",
					"description": "City and province, e.g. \"Toronto, ON\"",
				},
				"topic": map[string]interface{}{
					"type":        "string",
					"description": "Optional legal topic, e.g. TENANCY",
				},
			},
			Required: []string{"location"},
		},
	}, referralHandler(finder))

	return s
}

func formHandler(finder FormFinder) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		issue, err := request.RequireString("issue")
		if err != nil {
			return mcp.NewToolResultError("issue argument is required and must be a string"), nil
		}
		jurisdiction, err := request.RequireString("jurisdiction")
		if err != nil {
			return mcp.NewToolResultError("jurisdiction argument is required and must be a string"), nil
		}
		text, err := finder.FindOfficialForm(ctx, issue, jurisdiction)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("form lookup failed: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func referralHandler(finder ReferralFinder) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		location, err := request.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError("location argument is required and must be a string"), nil
		}
		text, err := finder.FindLawyerReferral(ctx, location, request.GetString("topic", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("referral lookup failed: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}
