// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides gin middleware for the API.
//
// # Authentication Flow
//
// The session token is read from the juris_session cookie, or from an
// "Authorization: Bearer <token>" header for non-browser clients. The
// configured AuthProvider resolves it and the resulting AuthInfo is stored
// in the gin context.
//
//	Request
//	   │
//	   ▼
//	OptionalAuth / RequireAuth
//	   │
//	   ├─► token from cookie, else bearer header
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► SetAuthInfo
//	           │
//	           ▼
//	       Handler (GetAuthInfo)
//
// OptionalAuth never rejects a request; an invalid token is treated as
// anonymous. RequireAuth answers 401 when no identity can be resolved.
//
// With NopAuthProvider every token, including the empty one, resolves to
// "local-user".
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AleutianAI/Juris/pkg/extensions"
	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "juris_session"

const authInfoKey = "juris_auth_info"

// SetAuthInfo stores the authenticated identity in the gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the identity stored by the auth middleware, or nil
// for anonymous requests.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// OptionalAuth attaches the caller's identity when a valid token is
// present.
func OptionalAuth(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c)
		if token == "" {
			c.Next()
			return
		}
		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, extensions.ErrUnauthorized) {
				slog.Warn("session lookup failed, continuing anonymously", "error", err)
			}
			c.Next()
			return
		}
		SetAuthInfo(c, info)
		c.Next()
	}
}

// RequireAuth rejects requests without a valid session.
func RequireAuth(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := provider.Validate(c.Request.Context(), SessionToken(c))
		if err != nil || info == nil || info.UserID == "" {
			if err != nil && !errors.Is(err, extensions.ErrUnauthorized) {
				slog.Error("session lookup failed", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, datatypes.ErrorResponse{Detail: "Not authenticated"})
			return
		}
		SetAuthInfo(c, info)
		c.Next()
	}
}

// SessionToken returns the request's session token, preferring the cookie.
func SessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	return extractBearerToken(c)
}

// extractBearerToken parses "Authorization: Bearer <token>". The scheme is
// case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
