// Package session implements the server-side session store. A session
// is a snapshot of the authenticated user (id, email, admin flag) taken
// at login time and held in Redis under an opaque random token. The
// token travels in a cookie; nothing about the user is stored client
// side. The snapshot is not refreshed from the database on later
// requests, so privilege changes take effect at next login.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novabrands/storefront-api/internal/utils"
)

// CookieName is the cookie carrying the opaque session token.
const CookieName = "nb_session"

const keyPrefix = "session:"

// Session is the per-request authentication context resolved from the
// token. A nil *Session means "not authenticated"; that is never a hard
// error.
type Session struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Store persists sessions in Redis with a fixed TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore constructs a Store. The client must be non-nil; sessions
// cannot degrade gracefully the way caching concerns can.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// NewToken returns a fresh opaque session token (32 random bytes, hex).
func NewToken() (string, error) {
	return utils.RandomHex(32)
}

// Create stores a new session and returns its token.
func (s *Store) Create(ctx context.Context, sess Session) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	body, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+token, body, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Get resolves a token into a session. Returns (nil, nil) when the
// token is unknown or expired; absence is not an error.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	body, err := s.rdb.Get(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(body, &sess); err != nil {
		// Corrupt entry; treat as absent rather than locking the client out.
		return nil, nil
	}
	return &sess, nil
}

// Delete invalidates a token. Deleting an unknown token is a no-op so
// logout stays idempotent.
func (s *Store) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.rdb.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
