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
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_FindOfficialForm(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()

	text, err := d.FindOfficialForm(ctx, "My landlord gave me an N12 notice", "ON")
	require.NoError(t, err)
	assert.Contains(t, text, "T2/T5")
	assert.Contains(t, text, "https://tribunalsontario.ca/ltb/forms/")

	text, err = d.FindOfficialForm(ctx, "something unusual", "bc")
	require.NoError(t, err)
	assert.Contains(t, text, "Residential Tenancy Branch forms")

	_, err = d.FindOfficialForm(ctx, "x", "QC")
	assert.Error(t, err)
}

func TestDirectory_FindLawyerReferral(t *testing.T) {
	d := NewDirectory()
	ctx := context.Background()

	text, err := d.FindLawyerReferral(ctx, "Toronto, ON", "TENANCY")
	require.NoError(t, err)
	assert.Contains(t, text, "Toronto, ON")
	assert.Contains(t, text, "Law Society Referral Service")
	assert.Contains(t, text, "tenancy matters")

	text, err = d.FindLawyerReferral(ctx, "British Columbia", "")
	require.NoError(t, err)
	assert.Contains(t, text, "Access Pro Bono")

	text, err = d.FindLawyerReferral(ctx, "Canada", "")
	require.NoError(t, err)
	assert.Contains(t, text, "Canadian Bar Association")
}

func TestDirectory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDirectory().FindOfficialForm(ctx, "x", "ON")
	assert.ErrorIs(t, err, context.Canceled)
}

func newInProcessFinder(t *testing.T) *MCPClient {
	t.Helper()
	srv := NewMCPServer(NewDirectory(), "test")
	c, err := client.NewInProcessClient(srv)
	require.NoError(t, err)
	m := NewMCPClientFrom(c)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMCPClient_RoundTripsThroughServer(t *testing.T) {
	m := newInProcessFinder(t)
	ctx := context.Background()

	form, err := m.FindOfficialForm(ctx, "rent increase", "ON")
	require.NoError(t, err)
	assert.Contains(t, form, "Form T1")

	referral, err := m.FindLawyerReferral(ctx, "Calgary, AB", "EMPLOYMENT")
	require.NoError(t, err)
	assert.Contains(t, referral, "Law Society of Alberta")
}

func TestMCPClient_ToolErrorSurfaces(t *testing.T) {
	m := newInProcessFinder(t)

	_, err := m.FindOfficialForm(context.Background(), "x", "QC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no form directory")
}
