package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// ErrSessionInvalid is returned when a session token is unknown or expired.
var ErrSessionInvalid = errors.New("session token is invalid")

const (
	// SessionTTL is how long a login session stays valid.
	SessionTTL = 30 * 24 * time.Hour

	sessionCleanupInterval = 15 * time.Minute
	privateDirPerm         = 0o700
)

// SessionStore persists login sessions in SQLite.
// Sessions are identified by SHA-256(rawToken) stored as hex, so a stolen
// database does not yield usable tokens.
type SessionStore struct {
	db          *sql.DB
	stopCleanup chan struct{}
	mu          sync.Mutex
}

// NewSessionStore opens (or creates) the session database in dir.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, privateDirPerm); err != nil {
		return nil, fmt.Errorf("create session store dir: %w", err)
	}
	if err := os.Chmod(dir, privateDirPerm); err != nil {
		return nil, fmt.Errorf("restrict session store dir: %w", err)
	}

	dbPath := filepath.Join(dir, "sessions.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SessionStore{
		db:          db,
		stopCleanup: make(chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	go s.cleanupLoop()
	return s, nil
}

func (s *SessionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		token_hash TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init session schema: %w", err)
	}
	return nil
}

func (s *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.DeleteExpired(time.Now().UTC()); err != nil {
				log.Warn().Err(err).Msg("Failed to delete expired sessions")
			}
		case <-s.stopCleanup:
			return
		}
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Create issues a new session for a user and returns the raw token. Only
// the hash is stored.
func (s *SessionStore) Create(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("userID is required")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	raw := hex.EncodeToString(buf)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", fmt.Errorf("session store closed")
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		hashToken(raw), userID, now.Add(SessionTTL).Unix(), now.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return raw, nil
}

// Lookup resolves a raw token to the owning user ID. Expired or unknown
// tokens yield ErrSessionInvalid.
func (s *SessionStore) Lookup(rawToken string, now time.Time) (string, error) {
	if rawToken == "" {
		return "", ErrSessionInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", ErrSessionInvalid
	}

	var userID string
	var expiresAtUnix int64
	row := s.db.QueryRow(`SELECT user_id, expires_at FROM sessions WHERE token_hash = ?`, hashToken(rawToken))
	if err := row.Scan(&userID, &expiresAtUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionInvalid
		}
		return "", fmt.Errorf("load session: %w", err)
	}
	if now.UTC().After(time.Unix(expiresAtUnix, 0).UTC()) {
		return "", ErrSessionInvalid
	}
	return userID, nil
}

// Delete revokes a session (logout). Deleting an unknown token is a no-op.
func (s *SessionStore) Delete(rawToken string) error {
	if rawToken == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token_hash = ?`, hashToken(rawToken)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions that have passed their expiry time.
func (s *SessionStore) DeleteExpired(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, now.UTC().Unix()); err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	return nil
}

// Close stops the background cleanup goroutine and closes the database.
func (s *SessionStore) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopCleanup:
	default:
		close(s.stopCleanup)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close session store database")
		}
		s.db = nil
	}
}
