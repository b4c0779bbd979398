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
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient implements Finder by calling tools on an MCP server.
//
// # Thread Safety
//
// Safe for concurrent use once connected.
type MCPClient struct {
	client *client.Client

	initOnce sync.Once
	initErr  error
}

// NewMCPClient connects to a streamable-HTTP MCP endpoint such as
// http://tools:8090/mcp. The session is initialized lazily on first call.
func NewMCPClient(url string) (*MCPClient, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("create MCP client: %w", err)
	}
	return &MCPClient{client: c}, nil
}

// NewMCPClientFrom wraps an already constructed client, e.g. an in-process
// client.
func NewMCPClientFrom(c *client.Client) *MCPClient {
	return &MCPClient{client: c}
}

func (m *MCPClient) connect(ctx context.Context) error {
	m.initOnce.Do(func() {
		if err := m.client.Start(ctx); err != nil {
			m.initErr = fmt.Errorf("start MCP transport: %w", err)
			return
		}
		req := mcp.InitializeRequest{}
		req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		req.Params.ClientInfo = mcp.Implementation{Name: "juris", Version: "1.0.0"}
		if _, err := m.client.Initialize(ctx, req); err != nil {
			m.initErr = fmt.Errorf("initialize MCP session: %w", err)
		}
	})
	return m.initErr
}

func (m *MCPClient) call(ctx context.Context, name string, args map[string]any) (string, error) {
	if err := m.connect(ctx); err != nil {
		return "", err
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := m.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}
	text := resultText(result)
	if result.IsError {
		return "", fmt.Errorf("tool %s returned error: %s", name, text)
	}
	return text, nil
}

func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// FindOfficialForm implements FormFinder.
func (m *MCPClient) FindOfficialForm(ctx context.Context, issue, jurisdiction string) (string, error) {
	return m.call(ctx, ToolFindOfficialForm, map[string]any{
		"issue":        issue,
		"jurisdiction": jurisdiction,
	})
}

// FindLawyerReferral implements ReferralFinder.
func (m *MCPClient) FindLawyerReferral(ctx context.Context, location, topic string) (string, error) {
	return m.call(ctx, ToolFindLawyerReferral, map[string]any{
		"location": location,
		"topic":    topic,
	})
}

// Close releases the transport.
func (m *MCPClient) Close() error {
	return m.client.Close()
}

var _ Finder = (*MCPClient)(nil)
