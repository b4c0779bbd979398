// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package statestore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/storage/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := kv.Open(kv.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db, 0)
}

func TestBadgerStore_LoadMissing(t *testing.T) {
	s := newStore(t)

	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_SaveLoadDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	state := datatypes.NewConversationState("t1", now)
	state.Jurisdiction = datatypes.JurisdictionON
	state.AppendMessage(datatypes.RoleUser, "I got an N12 notice", now)
	require.NoError(t, s.Save(ctx, state))

	got, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.JurisdictionON, got.Jurisdiction)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "I got an N12 notice", got.Messages[0].Content)
	assert.NotNil(t, got.RelevantLaws)

	require.NoError(t, s.Delete(ctx, "t1"))
	_, err = s.Load(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_SaveRequiresThreadID(t *testing.T) {
	s := newStore(t)

	assert.Error(t, s.Save(context.Background(), &datatypes.ConversationState{}))
	assert.Error(t, s.Save(context.Background(), nil))
}

func TestBadgerStore_LoadedSnapshotIsIndependent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, datatypes.NewConversationState("t2", time.Now())))

	a, err := s.Load(ctx, "t2")
	require.NoError(t, err)
	a.AppendMessage(datatypes.RoleUser, "unsaved", time.Now())

	b, err := s.Load(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, b.Messages)
}

func TestKeyedLocker_SerializesSameKey(t *testing.T) {
	locker := NewKeyedLocker()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.LockContext(context.Background(), "thread")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, locker.Len())
}

func TestKeyedLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := NewKeyedLocker()
	unlockA, err := locker.LockContext(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.LockContext(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedLocker_ContextCancelWhileWaiting(t *testing.T) {
	locker := NewKeyedLocker()
	unlock, err := locker.LockContext(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.LockContext(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, locker.Len())
}
