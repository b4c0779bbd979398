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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/middleware"
	"github.com/AleutianAI/Juris/services/orchestrator/statestore"
	"github.com/AleutianAI/Juris/services/orchestrator/storage/kv"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1700000000, 0)

func newThreadRouter(t *testing.T) (*gin.Engine, statestore.Store) {
	t.Helper()
	db, err := kv.Open(kv.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := statestore.NewBadgerStore(db, statestore.DefaultTimeout)

	r := gin.New()
	r.Use(middleware.OptionalAuth(staticProvider{userID: "owner-1"}))
	r.GET("/threads/:thread_id", HandleGetThread(store))
	r.DELETE("/threads/:thread_id", HandleDeleteThread(store, statestore.NewKeyedLocker()))
	return r, store
}

func request(r http.Handler, method, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestThreads_GetAndDeleteAnonymousThread(t *testing.T) {
	r, store := newThreadRouter(t)
	state := datatypes.NewConversationState("t-1", testNow)
	state.AppendMessage(datatypes.RoleUser, "hello", testNow)
	require.NoError(t, store.Save(context.Background(), state))

	w := request(r, http.MethodGet, "/threads/t-1")
	require.Equal(t, http.StatusOK, w.Code)
	var got datatypes.ConversationState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "t-1", got.ThreadID)
	assert.Len(t, got.Messages, 1)

	w = request(r, http.MethodDelete, "/threads/t-1")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = request(r, http.MethodGet, "/threads/t-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Thread not found"}`, w.Body.String())
}

func TestThreads_DeleteUnknownIs404(t *testing.T) {
	r, _ := newThreadRouter(t)

	w := request(r, http.MethodDelete, "/threads/missing")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThreads_OwnedThreadRequiresOwner(t *testing.T) {
	r, store := newThreadRouter(t)
	state := datatypes.NewConversationState("t-owned", testNow)
	state.OwnerID = "owner-1"
	require.NoError(t, store.Save(context.Background(), state))
	other := datatypes.NewConversationState("t-other", testNow)
	other.OwnerID = "someone-else"
	require.NoError(t, store.Save(context.Background(), other))
	session := &http.Cookie{Name: middleware.SessionCookie, Value: "tok"}

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/threads/t-owned").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/threads/t-owned", session).Code)
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodGet, "/threads/t-other", session).Code)
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodDelete, "/threads/t-other", session).Code)

	_, err := store.Load(context.Background(), "t-other")
	assert.NoError(t, err)
}
