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

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/middleware"
	"github.com/AleutianAI/Juris/services/orchestrator/statestore"
	"github.com/gin-gonic/gin"
)

// authorizeThread writes an error response and returns false when the
// caller may not see state.
func authorizeThread(c *gin.Context, state *datatypes.ConversationState) bool {
	if state.OwnerID == "" {
		return true
	}
	info := middleware.GetAuthInfo(c)
	if info == nil {
		abortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
		return false
	}
	if info.UserID != state.OwnerID {
		abortWithDetail(c, http.StatusForbidden, "Not authorized to access this thread")
		return false
	}
	return true
}

// HandleGetThread serves GET /threads/:thread_id.
func HandleGetThread(store statestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("thread_id")
		state, err := store.Load(c.Request.Context(), threadID)
		if errors.Is(err, statestore.ErrNotFound) {
			abortWithDetail(c, http.StatusNotFound, "Thread not found")
			return
		}
		if err != nil {
			slog.Error("failed to load thread", "thread_id", threadID, "error", err)
			abortWithDetail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !authorizeThread(c, state) {
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// HandleDeleteThread serves DELETE /threads/:thread_id. The delete holds
// the thread's turn lock so it cannot interleave with a running turn.
func HandleDeleteThread(store statestore.Store, locks *statestore.KeyedLocker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		threadID := c.Param("thread_id")

		unlock, err := locks.LockContext(ctx, threadID)
		if err != nil {
			abortWithDetail(c, http.StatusInternalServerError, err.Error())
			return
		}
		defer unlock()

		state, err := store.Load(ctx, threadID)
		if errors.Is(err, statestore.ErrNotFound) {
			abortWithDetail(c, http.StatusNotFound, "Thread not found")
			return
		}
		if err != nil {
			abortWithDetail(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !authorizeThread(c, state) {
			return
		}
		if err := store.Delete(ctx, threadID); err != nil {
			slog.Error("failed to delete thread", "thread_id", threadID, "error", err)
			abortWithDetail(c, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Info("thread deleted", "thread_id", threadID)
		c.Status(http.StatusNoContent)
	}
}
