package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	SessionCookie     = "ttydx_session"

	tokenBytes = 32
)

// AuthSession is server-side proof of a successful login.
type AuthSession struct {
	Token     string
	Username  string
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore holds live sessions in a concurrency-safe map keyed by token.
// Nothing is persisted; a restart logs everyone out.
type SessionStore struct {
	ttl      time.Duration
	sessions sync.Map // token -> *AuthSession

	nowFunc func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// TTL returns the lifetime given to new sessions.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create issues a session for p. Tokens are 256-bit random values; a clash
// with a live token is retried rather than overwritten.
func (s *SessionStore) Create(p Principal) (*AuthSession, error) {
	now := s.nowFunc()
	for i := 0; i < 3; i++ {
		token, err := newToken()
		if err != nil {
			return nil, fmt.Errorf("generate session token: %w", err)
		}
		sess := &AuthSession{
			Token:     token,
			Username:  p.Username,
			Role:      p.Role,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		if _, loaded := s.sessions.LoadOrStore(token, sess); !loaded {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("generate session token: repeated collision")
}

// Get returns the session for token if it exists and has not expired.
// Expired sessions are removed on sight.
func (s *SessionStore) Get(token string) (*AuthSession, bool) {
	if token == "" {
		return nil, false
	}
	v, ok := s.sessions.Load(token)
	if !ok {
		return nil, false
	}
	sess := v.(*AuthSession)
	if !s.nowFunc().Before(sess.ExpiresAt) {
		s.sessions.CompareAndDelete(token, v)
		return nil, false
	}
	cp := *sess
	return &cp, true
}

func (s *SessionStore) Delete(token string) {
	s.sessions.Delete(token)
}

func (s *SessionStore) Cleanup() {
	now := s.nowFunc()
	s.sessions.Range(func(k, v interface{}) bool {
		if !now.Before(v.(*AuthSession).ExpiresAt) {
			s.sessions.CompareAndDelete(k, v)
		}
		return true
	})
}

// Len counts live and not-yet-collected sessions.
func (s *SessionStore) Len() int {
	n := 0
	s.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
