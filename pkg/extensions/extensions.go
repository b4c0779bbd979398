// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the pluggable seams of the Juris service.
//
// The API server injects concrete implementations (session-cookie auth,
// sensitive-data redaction); the CLI and tests use the no-op defaults:
//
//	opts := extensions.DefaultOptions().
//	    WithAuth(sessionProvider).
//	    WithFilter(redactor)
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
// Nil fields are treated as their no-op defaults.
type ServiceOptions struct {
	// AuthProvider resolves a session token into a user identity.
	// Default: NopAuthProvider
	AuthProvider AuthProvider

	// MessageFilter transforms inbound user messages before they are
	// stored or sent to a model.
	// Default: NopMessageFilter
	MessageFilter MessageFilter
}

// DefaultOptions returns ServiceOptions with no-op defaults.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		MessageFilter: &NopMessageFilter{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithFilter returns a copy of opts with the given MessageFilter.
func (opts ServiceOptions) WithFilter(filter MessageFilter) ServiceOptions {
	opts.MessageFilter = filter
	return opts
}

// Normalized replaces nil fields with their no-op defaults.
func (opts ServiceOptions) Normalized() ServiceOptions {
	if opts.AuthProvider == nil {
		opts.AuthProvider = &NopAuthProvider{}
	}
	if opts.MessageFilter == nil {
		opts.MessageFilter = &NopMessageFilter{}
	}
	return opts
}
