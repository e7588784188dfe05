package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSessionMessagesAndKeys(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	s := New(now, 0)
	if s.ID == "" || len(s.Key) != 16 {
		t.Fatalf("unexpected id/key: %q %q", s.ID, s.Key)
	}
	if !s.ExpiresAt.Equal(now.Add(DefaultTTL)) {
		t.Fatalf("expiry = %v", s.ExpiresAt)
	}

	s.AddOK("Site closed")
	s.AddError("  ")
	s.AddInfo("Remember to reopen")
	want := []Message{{Level: LevelOK, Text: "Site closed"}, {Level: LevelInfo, Text: "Remember to reopen"}}
	if diff := cmp.Diff(want, s.TakeMessages()); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
	if len(s.TakeMessages()) != 0 {
		t.Fatalf("messages not drained")
	}

	id, key := s.ID, s.Key
	s.Login(User{ID: 7, Username: "admin", Admin: true})
	if s.Key == key || !s.User.LoggedIn() {
		t.Fatalf("login did not rotate key or bind user")
	}
	if s.ID == id || s.ID == "" {
		t.Fatalf("login kept session id %q", id)
	}
	id = s.ID
	s.Logout()
	if s.User.LoggedIn() {
		t.Fatalf("logout kept user")
	}
	if s.ID == id {
		t.Fatalf("logout kept session id %q", id)
	}
	if !s.Expired(now.Add(DefaultTTL)) || s.Expired(now) {
		t.Fatalf("expiry boundary mismatch")
	}
}

func storeContract(t *testing.T, store Store, setNow func(time.Time)) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	setNow(now)

	s := New(now, time.Hour)
	s.Login(User{ID: 3, Username: "student"})
	s.AddOK("Saved")
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, s.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(s, loaded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	loaded.AddError("mutated")
	again, _ := store.Load(ctx, s.ID)
	if len(again.Messages) != 1 {
		t.Fatalf("store shared state with caller")
	}

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	setNow(now.Add(2 * time.Hour))
	if _, err := store.Load(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session loaded: %v", err)
	}

	setNow(now)
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted session loaded: %v", err)
	}
	if err := store.Save(ctx, &Session{}); err == nil {
		t.Fatalf("expected error saving session without id")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	storeContract(t, store, func(now time.Time) { store.now = func() time.Time { return now } })
}

func TestBoltStore(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	storeContract(t, store, func(now time.Time) { store.now = func() time.Time { return now } })
}

func TestBoltStorePurge(t *testing.T) {
	store, err := OpenBolt(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	live := New(now, time.Hour)
	stale := New(now.Add(-2*time.Hour), time.Hour)
	for _, s := range []*Session{live, stale} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	removed, err := store.Purge(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("purge = %d, %v", removed, err)
	}
	if _, err := store.Load(ctx, live.ID); err != nil {
		t.Fatalf("live session purged: %v", err)
	}
}
