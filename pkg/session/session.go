// Package session holds the per-request session and user values that hooks
// receive explicitly, plus stores that persist them between requests.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when no live session has the given id.
var ErrNotFound = errors.New("session: not found")

// DefaultTTL bounds the lifetime of a session that does not set its own.
const DefaultTTL = 24 * time.Hour

// Message levels.
const (
	LevelOK    = "ok"
	LevelInfo  = "info"
	LevelError = "error"
)

// Message is a flash message shown once on the next rendered page.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// User is the authenticated account behind a session. The zero value is the
// anonymous user.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	Email     string `json:"email,omitempty"`
	Admin     bool   `json:"admin,omitempty"`
}

// LoggedIn reports whether the user is authenticated.
func (u User) LoggedIn() bool {
	return u.ID > 0
}

// Session is the mutable state attached to a browser. Key is the session key
// echoed by every form submission.
type Session struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	User      User      `json:"user"`
	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New creates a fresh anonymous session valid for ttl (DefaultTTL when zero).
func New(now time.Time, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Session{
		ID:        uuid.NewString(),
		Key:       newKey(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func newKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}

// Login binds the session to user and issues a new session id and key. The
// caller persists the session under the new id and drops the old one.
func (s *Session) Login(user User) {
	s.User = user
	s.renew()
}

// Logout resets the session to anonymous and issues a new session id and key.
func (s *Session) Logout() {
	s.User = User{}
	s.renew()
}

func (s *Session) renew() {
	s.ID = uuid.NewString()
	s.Key = newKey()
}

// AddOK queues a success message.
func (s *Session) AddOK(text string) { s.add(LevelOK, text) }

// AddInfo queues an informational message.
func (s *Session) AddInfo(text string) { s.add(LevelInfo, text) }

// AddError queues an error message.
func (s *Session) AddError(text string) { s.add(LevelError, text) }

func (s *Session) add(level, text string) {
	if s == nil || strings.TrimSpace(text) == "" {
		return
	}
	s.Messages = append(s.Messages, Message{Level: level, Text: text})
}

// TakeMessages returns and clears the queued messages.
func (s *Session) TakeMessages() []Message {
	if s == nil {
		return nil
	}
	out := s.Messages
	s.Messages = nil
	return out
}

// Store persists sessions between requests.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
