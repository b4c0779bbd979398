// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package statestore persists one ConversationState snapshot per thread and
// serializes turns on the same thread.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/storage/kv"
)

// ErrNotFound is returned by Load when no snapshot exists for a thread.
var ErrNotFound = errors.New("conversation state not found")

const (
	threadKeyPrefix = "thread:"

	// DefaultTimeout bounds every store operation.
	DefaultTimeout = 3 * time.Second
)

// Store is keyed persistence of conversation snapshots.
//
// Save replaces the whole snapshot in one write, so a turn that never
// reaches Save leaves the previous snapshot untouched.
type Store interface {
	Load(ctx context.Context, threadID string) (*datatypes.ConversationState, error)
	Save(ctx context.Context, state *datatypes.ConversationState) error
	Delete(ctx context.Context, threadID string) error
}

// BadgerStore is a Store on the embedded key-value database.
type BadgerStore struct {
	db      *kv.DB
	timeout time.Duration
}

// NewBadgerStore wraps db. A zero timeout uses DefaultTimeout.
func NewBadgerStore(db *kv.DB, timeout time.Duration) *BadgerStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BadgerStore{db: db, timeout: timeout}
}

func threadKey(threadID string) string {
	return threadKeyPrefix + threadID
}

// Load returns the snapshot for threadID, upgraded to the current schema.
func (s *BadgerStore) Load(ctx context.Context, threadID string) (*datatypes.ConversationState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var state datatypes.ConversationState
	err := s.db.GetJSON(ctx, threadKey(threadID), &state)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	state.Upgrade()
	return &state, nil
}

// Save writes state under its ThreadID.
func (s *BadgerStore) Save(ctx context.Context, state *datatypes.ConversationState) error {
	if state == nil || state.ThreadID == "" {
		return errors.New("save: state has no thread id")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.PutJSON(ctx, threadKey(state.ThreadID), state, 0); err != nil {
		return fmt.Errorf("save thread %s: %w", state.ThreadID, err)
	}
	return nil
}

// Delete removes the snapshot for threadID. Unknown threads are ignored.
func (s *BadgerStore) Delete(ctx context.Context, threadID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.Delete(ctx, threadKey(threadID)); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

var _ Store = (*BadgerStore)(nil)
