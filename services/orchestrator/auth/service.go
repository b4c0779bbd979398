// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/Juris/pkg/extensions"
	"github.com/AleutianAI/Juris/services/orchestrator/datatypes"
	"github.com/AleutianAI/Juris/services/orchestrator/storage/kv"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	userPrefix        = "user:"
	emailPrefix       = "user_email:"
	sessionPrefix     = "session:"
	userSessionPrefix = "user_session:"

	sessionIDBytes = 32
)

// Service registers users, checks credentials and issues sessions.
//
// It implements extensions.AuthProvider: Validate resolves a session id
// into the owning user's identity.
type Service struct {
	db   *kv.DB
	ttl  time.Duration
	cost int
	now  func() time.Time
}

// NewService returns a Service storing records in db. A zero ttl means
// DefaultSessionTTL.
func NewService(db *kv.DB, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{db: db, ttl: ttl, cost: bcrypt.DefaultCost, now: time.Now}
}

// SessionTTL is the lifetime of sessions issued by s.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// Register creates a user. The email index and the user record are written
// in one transaction, so two registrations for the same address cannot
// both succeed.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Email = NormalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := datatypes.Validate(&req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UnixMilli(),
	}

	err = s.db.Update(ctx, func(txn *badger.Txn) error {
		var existing string
		err := kv.GetJSONTxn(txn, emailPrefix+user.Email, &existing)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, kv.ErrKeyNotFound) {
			return err
		}
		if err := kv.PutJSONTxn(txn, emailPrefix+user.Email, user.ID, 0); err != nil {
			return err
		}
		return kv.PutJSONTxn(txn, userPrefix+user.ID, user, 0)
	})
	if errors.Is(err, badger.ErrConflict) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	var userID string
	err := s.db.GetJSON(ctx, emailPrefix+NormalizeEmail(email), &userID)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	err := s.db.GetJSON(ctx, userPrefix+id, &user)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateSession issues a new session for userID.
func (s *Service) CreateSession(ctx context.Context, userID string) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
	}
	err = s.db.Update(ctx, func(txn *badger.Txn) error {
		if err := kv.PutJSONTxn(txn, sessionPrefix+id, sess, s.ttl); err != nil {
			return err
		}
		return kv.PutJSONTxn(txn, userSessionPrefix+userID+":"+id, id, s.ttl)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Session returns the live session with id.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	var sess Session
	err := s.db.GetJSON(ctx, sessionPrefix+id, &sess)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.now().UnixMilli() >= sess.ExpiresAt {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

// Logout deletes every session belonging to userID.
func (s *Service) Logout(ctx context.Context, userID string) error {
	keys, err := s.db.KeysWithPrefix(ctx, userSessionPrefix+userID+":")
	if err != nil {
		return err
	}
	return s.db.Update(ctx, func(txn *badger.Txn) error {
		for _, key := range keys {
			sid := strings.TrimPrefix(key, userSessionPrefix+userID+":")
			if err := txn.Delete([]byte(sessionPrefix + sid)); err != nil {
				return err
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Validate implements extensions.AuthProvider.
func (s *Service) Validate(ctx context.Context, token string) (*extensions.AuthInfo, error) {
	sess, err := s.Session(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %w", extensions.ErrUnauthorized, err)
	}
	if err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, sess.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %w", extensions.ErrUnauthorized, err)
	}
	if err != nil {
		return nil, err
	}
	return &extensions.AuthInfo{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		SessionID: sess.ID,
	}, nil
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var _ extensions.AuthProvider = (*Service)(nil)
