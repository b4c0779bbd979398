// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers holds the gin handlers for the HTTP API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/graph"
	"github.com/AleutianAI/Juris/services/orchestrator/middleware"
	"github.com/AleutianAI/Juris/services/orchestrator/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("juris.orchestrator.handlers")

// TurnRunner runs one conversation turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, turn graph.Turn) (*graph.TurnResult, error)
}

// HandleChat serves POST /chat.
//
// Node failures never reach this handler; they become fallback payloads
// inside the turn. Only state store and lock errors produce a 500.
func HandleChat(runner TurnRunner, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.RecordError("chat", observability.ErrorCodeValidation)
			abortWithDetail(c, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
			return
		}
		if err := req.Validate(); err != nil {
			metrics.RecordError("chat", observability.ErrorCodeValidation)
			abortWithDetail(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		span.SetAttributes(attribute.String("chat.thread_id", req.ThreadID))

		turn := graph.Turn{
			ThreadID:     req.ThreadID,
			Message:      req.Message,
			Jurisdiction: req.Jurisdiction,
		}
		if info := middleware.GetAuthInfo(c); info != nil {
			turn.OwnerID = info.UserID
		}

		result, err := runner.RunTurn(ctx, turn)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			code := observability.ErrorCodeState
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				code = observability.ErrorCodeTimeout
			}
			metrics.RecordError("chat", code)
			slog.Error("turn failed", "thread_id", req.ThreadID, "error", err)
			abortWithDetail(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, result.ChatResponse())
	}
}

// HealthCheck serves GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.HealthResponse{Status: "ok"})
}

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, datatypes.ErrorResponse{Detail: detail})
}
