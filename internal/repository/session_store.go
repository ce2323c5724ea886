package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const sessionKeyPrefix = "session:"

// SessionStore keeps server-side session records keyed by token id. It is
// the second revocation store next to the access_tokens table.
type SessionStore struct {
	state StateStore
}

func NewSessionStore(state StateStore) *SessionStore {
	return &SessionStore{state: state}
}

func sessionKey(jti string) string { return sessionKeyPrefix + jti }

func (s *SessionStore) Put(ctx context.Context, jti string, userID uuid.UUID, ttl time.Duration) error {
	return s.state.Set(ctx, sessionKey(jti), []byte(userID.String()), ttl)
}

// UserID returns the session owner, or uuid.Nil when no live session exists.
func (s *SessionStore) UserID(ctx context.Context, jti string) (uuid.UUID, error) {
	raw, err := s.state.Get(ctx, sessionKey(jti))
	if err != nil || raw == nil {
		return uuid.Nil, err
	}
	id, err := uuid.ParseBytes(raw)
	if err != nil {
		return uuid.Nil, nil
	}
	return id, nil
}

func (s *SessionStore) Delete(ctx context.Context, jtis ...string) error {
	keys := make([]string, 0, len(jtis))
	for _, jti := range jtis {
		keys = append(keys, sessionKey(jti))
	}
	return s.state.Delete(ctx, keys...)
}
