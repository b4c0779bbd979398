// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"time"

	"github.com/AleutianAI/Juris/pkg/extensions"
	"github.com/AleutianAI/Juris/services/orchestrator/auth"
	"github.com/AleutianAI/Juris/services/orchestrator/handlers"
	"github.com/AleutianAI/Juris/services/orchestrator/middleware"
	"github.com/AleutianAI/Juris/services/orchestrator/observability"
	"github.com/AleutianAI/Juris/services/orchestrator/statestore"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the route table needs.
//
// Accounts may be nil, in which case the /auth routes are not mounted and
// AuthProvider (default NopAuthProvider) alone resolves identities.
// Gatherer may be nil to leave /metrics unmounted.
type Deps struct {
	Runner       handlers.TurnRunner
	Store        statestore.Store
	Locks        *statestore.KeyedLocker
	AuthProvider extensions.AuthProvider
	Accounts     *auth.Service
	Cookies      handlers.CookieConfig
	Metrics      *observability.Metrics
	Gatherer     prometheus.Gatherer
	CORSOrigins  []string
}

// CORSConfig allows the listed frontend origins with credentials, which
// the session cookie needs.
func CORSConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	cfg.AllowCredentials = true
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	provider := deps.AuthProvider
	if provider == nil {
		if deps.Accounts != nil {
			provider = deps.Accounts
		} else {
			provider = &extensions.NopAuthProvider{}
		}
	}
	locks := deps.Locks
	if locks == nil {
		locks = statestore.NewKeyedLocker()
	}

	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(CORSConfig(deps.CORSOrigins)))
	}

	router.GET("/health", handlers.HealthCheck)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	optional := router.Group("", middleware.OptionalAuth(provider))
	{
		optional.POST("/chat", handlers.HandleChat(deps.Runner, deps.Metrics))
		optional.GET("/threads/:thread_id", handlers.HandleGetThread(deps.Store))
		optional.DELETE("/threads/:thread_id", handlers.HandleDeleteThread(deps.Store, locks))
	}

	if deps.Accounts != nil {
		authGroup := router.Group("/auth")
		{
			authGroup.POST("/register", handlers.HandleRegister(deps.Accounts, deps.Cookies))
			authGroup.POST("/login", handlers.HandleLogin(deps.Accounts, deps.Cookies))

			session := authGroup.Group("", middleware.RequireAuth(provider))
			session.POST("/logout", handlers.HandleLogout(deps.Accounts, deps.Cookies))
			session.GET("/me", handlers.HandleMe(deps.Accounts))
		}
	}
}
