package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SessionStore manages session history and the ban list using SQLite.
type SessionStore struct {
	db *Database
}

// Session represents a recorded connection session.
type Session struct {
	ID          int64      `json:"id"`
	RemoteAddr  string     `json:"remote_addr"`
	XUID        string     `json:"xuid"`
	Identity    string     `json:"identity"`
	DisplayName string     `json:"display_name"`
	Protocol    int32      `json:"protocol"`
	State       string     `json:"state"`
	ConnectedAt time.Time  `json:"connected_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
}

// Ban represents a ban list entry. A ban matches either an XUID or a
// remote address, whichever is set.
type Ban struct {
	ID        int64      `json:"id"`
	XUID      string     `json:"xuid,omitempty"`
	Addr      string     `json:"addr,omitempty"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewSessionStore creates and initializes the session store.
func NewSessionStore(dbPath string) (*SessionStore, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	s := &SessionStore{db: database}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *SessionStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			remote_addr TEXT NOT NULL,
			xuid TEXT NOT NULL DEFAULT '',
			identity TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			protocol INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT 'connecting',
			connected_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			closed_at DATETIME,
			close_reason TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS bans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			xuid TEXT NOT NULL DEFAULT '',
			addr TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_xuid ON sessions(xuid);
		CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
		CREATE INDEX IF NOT EXISTS idx_bans_xuid ON bans(xuid);
		CREATE INDEX IF NOT EXISTS idx_bans_addr ON bans(addr);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	log.Debug().Msg("session store schema migrated")
	return nil
}

// RecordConnection inserts a new session row in the connecting state and
// returns its ID for subsequent updates.
func (s *SessionStore) RecordConnection(remoteAddr string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO sessions (remote_addr, state) VALUES (?, 'connecting')",
		remoteAddr)
	if err != nil {
		return 0, fmt.Errorf("failed to record connection: %w", err)
	}
	return res.LastInsertId()
}

// RecordLogin updates a session with the validated identity.
func (s *SessionStore) RecordLogin(sessionID int64, xuid, identity, displayName string, protocol int32) error {
	_, err := s.db.Exec(`
		UPDATE sessions
		SET xuid = ?, identity = ?, display_name = ?, protocol = ?, state = 'active'
		WHERE id = ?
	`, xuid, identity, displayName, protocol, sessionID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}

	log.Info().
		Int64("session_id", sessionID).
		Str("xuid", xuid).
		Str("display_name", displayName).
		Msg("session login recorded")

	return nil
}

// RecordClose marks a session as closed with the given reason.
func (s *SessionStore) RecordClose(sessionID int64, reason string) error {
	_, err := s.db.Exec(`
		UPDATE sessions
		SET state = 'closed', closed_at = CURRENT_TIMESTAMP, close_reason = ?
		WHERE id = ?
	`, reason, sessionID)
	return err
}

// RecordRejection marks a session as rejected with the given reason.
func (s *SessionStore) RecordRejection(sessionID int64, reason string) error {
	_, err := s.db.Exec(`
		UPDATE sessions
		SET state = 'rejected', closed_at = CURRENT_TIMESTAMP, close_reason = ?
		WHERE id = ?
	`, reason, sessionID)
	return err
}

// ActiveSessions returns sessions currently in the active state.
func (s *SessionStore) ActiveSessions() ([]Session, error) {
	return s.querySessions("SELECT id, remote_addr, xuid, identity, display_name, protocol, state, connected_at, closed_at, close_reason FROM sessions WHERE state = 'active' ORDER BY connected_at")
}

// RecentSessions returns the most recent sessions up to the given limit.
func (s *SessionStore) RecentSessions(limit int) ([]Session, error) {
	return s.querySessions(
		"SELECT id, remote_addr, xuid, identity, display_name, protocol, state, connected_at, closed_at, close_reason FROM sessions ORDER BY connected_at DESC LIMIT ?",
		limit)
}

// ActiveSessionCount returns the number of sessions in the active state.
func (s *SessionStore) ActiveSessionCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE state = 'active'").Scan(&count)
	return count, err
}

func (s *SessionStore) querySessions(query string, args ...interface{}) ([]Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var closedAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.RemoteAddr, &sess.XUID, &sess.Identity,
			&sess.DisplayName, &sess.Protocol, &sess.State, &sess.ConnectedAt,
			&closedAt, &sess.CloseReason); err != nil {
			continue
		}
		if closedAt.Valid {
			sess.ClosedAt = &closedAt.Time
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// AddBan inserts a ban entry. At least one of xuid or addr must be set.
// A zero expiry means the ban is permanent.
func (s *SessionStore) AddBan(xuid, addr, reason string, expiresAt *time.Time) error {
	if xuid == "" && addr == "" {
		return errors.New("ban requires an xuid or an address")
	}

	_, err := s.db.Exec(
		"INSERT INTO bans (xuid, addr, reason, expires_at) VALUES (?, ?, ?, ?)",
		xuid, addr, reason, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to add ban: %w", err)
	}

	log.Info().
		Str("xuid", xuid).
		Str("addr", addr).
		Str("reason", reason).
		Msg("ban added")

	return nil
}

// RemoveBan deletes a ban entry by ID.
func (s *SessionStore) RemoveBan(banID int64) error {
	_, err := s.db.Exec("DELETE FROM bans WHERE id = ?", banID)
	return err
}

// IsBanned checks whether the given XUID or address has an active ban.
func (s *SessionStore) IsBanned(xuid, addr string) (bool, string, error) {
	var reason string
	err := s.db.QueryRow(`
		SELECT reason FROM bans
		WHERE ((xuid != '' AND xuid = ?) OR (addr != '' AND addr = ?))
		AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
		LIMIT 1
	`, xuid, addr).Scan(&reason)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("ban check failed: %w", err)
	}
	return true, reason, nil
}

// Bans returns all ban entries, active and expired.
func (s *SessionStore) Bans() ([]Ban, error) {
	rows, err := s.db.Query(
		"SELECT id, xuid, addr, reason, created_at, expires_at FROM bans ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []Ban
	for rows.Next() {
		var b Ban
		var expiresAt sql.NullTime
		if err := rows.Scan(&b.ID, &b.XUID, &b.Addr, &b.Reason, &b.CreatedAt, &expiresAt); err != nil {
			continue
		}
		if expiresAt.Valid {
			b.ExpiresAt = &expiresAt.Time
		}
		bans = append(bans, b)
	}

	return bans, rows.Err()
}

// CleanExpiredBans removes bans whose expiry time has passed.
func (s *SessionStore) CleanExpiredBans() error {
	_, err := s.db.Exec(
		"DELETE FROM bans WHERE expires_at IS NOT NULL AND expires_at <= CURRENT_TIMESTAMP")
	return err
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
