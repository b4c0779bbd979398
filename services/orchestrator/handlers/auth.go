// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/Juris/services/orchestrator/auth"
	"github.com/AleutianAI/Juris/services/orchestrator/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

func setSessionCookie(c *gin.Context, cfg CookieConfig, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, value, maxAge, "/", "", cfg.Secure, true)
}

// startSession issues a session for user and sets the cookie.
func startSession(c *gin.Context, svc *auth.Service, cfg CookieConfig, user *auth.User) bool {
	sess, err := svc.CreateSession(c.Request.Context(), user.ID)
	if err != nil {
		slog.Error("failed to create session", "user_id", user.ID, "error", err)
		abortWithDetail(c, http.StatusInternalServerError, "Could not create session")
		return false
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = svc.SessionTTL()
	}
	setSessionCookie(c, cfg, sess.ID, int(maxAge.Seconds()))
	return true
}

// HandleRegister serves POST /auth/register.
func HandleRegister(svc *auth.Service, cfg CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithDetail(c, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
			return
		}
		user, err := svc.Register(c.Request.Context(), req)
		var verrs validator.ValidationErrors
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			abortWithDetail(c, http.StatusBadRequest, "Email already registered")
			return
		case errors.As(err, &verrs):
			abortWithDetail(c, http.StatusUnprocessableEntity, verrs.Error())
			return
		case err != nil:
			slog.Error("registration failed", "error", err)
			abortWithDetail(c, http.StatusInternalServerError, "Registration failed")
			return
		}
		if !startSession(c, svc, cfg, user) {
			return
		}
		c.JSON(http.StatusCreated, user.Public())
	}
}

// HandleLogin serves POST /auth/login.
func HandleLogin(svc *auth.Service, cfg CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithDetail(c, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
			return
		}
		user, err := svc.Authenticate(c.Request.Context(), req.Email, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			abortWithDetail(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		if err != nil {
			slog.Error("login failed", "error", err)
			abortWithDetail(c, http.StatusInternalServerError, "Login failed")
			return
		}
		if !startSession(c, svc, cfg, user) {
			return
		}
		c.JSON(http.StatusOK, user.Public())
	}
}

// HandleLogout serves POST /auth/logout. Every session of the user ends.
func HandleLogout(svc *auth.Service, cfg CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := middleware.GetAuthInfo(c)
		if info == nil {
			abortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if err := svc.Logout(c.Request.Context(), info.UserID); err != nil {
			slog.Error("logout failed", "user_id", info.UserID, "error", err)
			abortWithDetail(c, http.StatusInternalServerError, "Logout failed")
			return
		}
		setSessionCookie(c, cfg, "", -1)
		c.Status(http.StatusNoContent)
	}
}

// HandleMe serves GET /auth/me.
func HandleMe(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := middleware.GetAuthInfo(c)
		if info == nil {
			abortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		user, err := svc.GetUser(c.Request.Context(), info.UserID)
		if errors.Is(err, auth.ErrUserNotFound) {
			abortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if err != nil {
			abortWithDetail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, user.Public())
	}
}
