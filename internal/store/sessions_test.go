package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := NewSessionStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.RecordConnection("192.0.2.1:19132")
	if err != nil {
		t.Fatalf("RecordConnection: %v", err)
	}

	if err := s.RecordLogin(id, "2535416", "a1b2", "Steve", 662); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}

	active, err := s.ActiveSessions()
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	if active[0].DisplayName != "Steve" || active[0].Protocol != 662 {
		t.Errorf("session = %+v, want DisplayName Steve, Protocol 662", active[0])
	}

	count, err := s.ActiveSessionCount()
	if err != nil || count != 1 {
		t.Fatalf("ActiveSessionCount = %d, %v, want 1, nil", count, err)
	}

	if err := s.RecordClose(id, "client disconnect"); err != nil {
		t.Fatalf("RecordClose: %v", err)
	}

	count, _ = s.ActiveSessionCount()
	if count != 0 {
		t.Errorf("active count after close = %d, want 0", count)
	}

	recent, err := s.RecentSessions(10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("recent sessions = %d, want 1", len(recent))
	}
	if recent[0].State != "closed" || recent[0].CloseReason != "client disconnect" {
		t.Errorf("closed session = %+v", recent[0])
	}
	if recent[0].ClosedAt == nil {
		t.Error("ClosedAt not set on closed session")
	}
}

func TestSessionRejection(t *testing.T) {
	s := newTestStore(t)

	id, err := s.RecordConnection("192.0.2.2:19132")
	if err != nil {
		t.Fatalf("RecordConnection: %v", err)
	}
	if err := s.RecordRejection(id, "broken certificate chain"); err != nil {
		t.Fatalf("RecordRejection: %v", err)
	}

	recent, err := s.RecentSessions(1)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if recent[0].State != "rejected" {
		t.Errorf("state = %q, want rejected", recent[0].State)
	}
}

func TestBans(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddBan("", "", "no target", nil); err == nil {
		t.Error("AddBan with no target should fail")
	}

	if err := s.AddBan("2535416", "", "cheating", nil); err != nil {
		t.Fatalf("AddBan xuid: %v", err)
	}
	if err := s.AddBan("", "192.0.2.9", "abuse", nil); err != nil {
		t.Fatalf("AddBan addr: %v", err)
	}

	tests := []struct {
		name string
		xuid string
		addr string
		want bool
	}{
		{"banned xuid", "2535416", "203.0.113.1", true},
		{"banned addr", "99999", "192.0.2.9", true},
		{"clean", "99999", "203.0.113.1", false},
		{"empty identity does not match xuid bans", "", "203.0.113.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			banned, reason, err := s.IsBanned(tt.xuid, tt.addr)
			if err != nil {
				t.Fatalf("IsBanned: %v", err)
			}
			if banned != tt.want {
				t.Errorf("IsBanned(%q, %q) = %v, want %v", tt.xuid, tt.addr, banned, tt.want)
			}
			if banned && reason == "" {
				t.Error("banned but no reason returned")
			}
		})
	}

	bans, err := s.Bans()
	if err != nil {
		t.Fatalf("Bans: %v", err)
	}
	if len(bans) != 2 {
		t.Fatalf("bans = %d, want 2", len(bans))
	}

	if err := s.RemoveBan(bans[0].ID); err != nil {
		t.Fatalf("RemoveBan: %v", err)
	}
	bans, _ = s.Bans()
	if len(bans) != 1 {
		t.Errorf("bans after remove = %d, want 1", len(bans))
	}
}

func TestExpiredBans(t *testing.T) {
	s := newTestStore(t)

	past := time.Now().Add(-time.Hour).UTC()
	if err := s.AddBan("777", "", "temporary", &past); err != nil {
		t.Fatalf("AddBan: %v", err)
	}

	banned, _, err := s.IsBanned("777", "")
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if banned {
		t.Error("expired ban still matches")
	}

	if err := s.CleanExpiredBans(); err != nil {
		t.Fatalf("CleanExpiredBans: %v", err)
	}
	bans, _ := s.Bans()
	if len(bans) != 0 {
		t.Errorf("bans after cleanup = %d, want 0", len(bans))
	}
}
