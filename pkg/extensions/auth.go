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

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a token is missing, unknown, or expired.
// Implementations wrap it with the reason:
//
//	return nil, fmt.Errorf("session expired: %w", ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo is the identity attached to an authenticated request.
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the user's (normalized) email address.
	Email string

	// FullName is the optional display name given at registration.
	FullName string

	// SessionID is the token the identity was resolved from.
	SessionID string
}

// AuthProvider validates session tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type AuthProvider interface {
	// Validate resolves token into an identity. It returns an error wrapping
	// ErrUnauthorized when the token does not name a live session.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every token as the local single user. It is the
// default for the CLI, where no sessions exist.
type NopAuthProvider struct{}

// Validate always succeeds with the "local-user" identity.
func (p *NopAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID:    "local-user",
		Email:     "local@localhost",
		SessionID: token,
	}, nil
}

var _ AuthProvider = (*NopAuthProvider)(nil)
