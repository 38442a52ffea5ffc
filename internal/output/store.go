// Package output persists generated text artifacts and decides what a
// requester may see of them.
package output

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides CRUD operations for generated outputs backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the outputs database in dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create outputs dir: %w", err)
	}

	dbPath := filepath.Join(dir, "outputs.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open outputs db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generated_outputs (
		output_id             TEXT PRIMARY KEY,
		output_type           TEXT NOT NULL DEFAULT '',
		full_content          TEXT,
		preview_content       TEXT NOT NULL DEFAULT '',
		is_truncated          INTEGER NOT NULL DEFAULT 0,
		user_id               TEXT,
		session_id            TEXT,
		migrated_from_session TEXT NOT NULL DEFAULT '',
		metadata              TEXT NOT NULL DEFAULT '{}',
		created_at            INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outputs_user_id ON generated_outputs(user_id);
	CREATE INDEX IF NOT EXISTS idx_outputs_session_id ON generated_outputs(session_id);
	CREATE INDEX IF NOT EXISTS idx_outputs_migrated_session ON generated_outputs(migrated_from_session);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init outputs schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity (used for readiness probes).
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new output record.
//
// Session-owned records never persist full content: the full text is dropped
// here, before it can reach the database, rather than being filtered on
// read. Callers see the cleared FullContent field after Create returns.
func (s *Store) Create(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("output id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Owner.Kind() == OwnerKindSession {
		rec.FullContent = ""
	}

	var userID, sessionID sql.NullString
	if id, ok := rec.Owner.UserID(); ok {
		userID = sql.NullString{String: id, Valid: true}
	}
	if id, ok := rec.Owner.SessionID(); ok {
		sessionID = sql.NullString{String: id, Valid: true}
	}

	var fullContent sql.NullString
	if rec.FullContent != "" {
		fullContent = sql.NullString{String: rec.FullContent, Valid: true}
	}

	metadataJSON, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO generated_outputs (
			output_id, output_type, full_content, preview_content, is_truncated,
			user_id, session_id, migrated_from_session, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OutputType, fullContent, rec.Preview, boolToInt(rec.Truncated),
		userID, sessionID, rec.MigratedFromSession, metadataJSON, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	return nil
}

const outputColumns = `output_id, output_type, full_content, preview_content, is_truncated,
	user_id, session_id, migrated_from_session, metadata, created_at`

// GetByID retrieves an output by ID. Returns (nil, nil) when absent.
func (s *Store) GetByID(id string) (*Record, error) {
	row := s.db.QueryRow(`SELECT `+outputColumns+` FROM generated_outputs WHERE output_id = ?`, id)
	return scanOutput(row)
}

// ListByUser returns all outputs owned by userID, newest first. The
// ordering is part of the contract: created_at descending, with the
// time-ordered output ID as tiebreak.
func (s *Store) ListByUser(userID string) ([]*Record, error) {
	rows, err := s.db.Query(`SELECT `+outputColumns+` FROM generated_outputs
		WHERE user_id = ?
		ORDER BY created_at DESC, output_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list outputs by user: %w", err)
	}
	defer rows.Close()
	return collectOutputs(rows)
}

// ListBySession returns all outputs still owned by the anonymous session,
// newest first.
func (s *Store) ListBySession(sessionID string) ([]*Record, error) {
	rows, err := s.db.Query(`SELECT `+outputColumns+` FROM generated_outputs
		WHERE session_id = ?
		ORDER BY created_at DESC, output_id DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list outputs by session: %w", err)
	}
	defer rows.Close()
	return collectOutputs(rows)
}

// MigrateSession reassigns every output still owned by sessionID to userID
// and returns the number of records claimed. The claim is a single
// conditional UPDATE, so two concurrent logins for the same session cannot
// both claim a record. Repeat calls with the same arguments claim nothing
// and return zero.
func (s *Store) MigrateSession(sessionID, userID string) (int64, error) {
	if sessionID == "" || userID == "" {
		return 0, fmt.Errorf("sessionID and userID are required")
	}
	res, err := s.db.Exec(`
		UPDATE generated_outputs
		SET user_id = ?, session_id = NULL, migrated_from_session = ?
		WHERE session_id = ? AND user_id IS NULL`,
		userID, sessionID, sessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("migrate session outputs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get migrated rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutput(row rowScanner) (*Record, error) {
	var rec Record
	var fullContent, userID, sessionID sql.NullString
	var truncatedInt int
	var metadataJSON string
	var createdAtUnix int64

	err := row.Scan(
		&rec.ID, &rec.OutputType, &fullContent, &rec.Preview, &truncatedInt,
		&userID, &sessionID, &rec.MigratedFromSession, &metadataJSON, &createdAtUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan output: %w", err)
	}

	rec.FullContent = fullContent.String
	rec.Truncated = truncatedInt != 0
	rec.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

	switch {
	case userID.Valid:
		rec.Owner = UserOwner(userID.String)
	case sessionID.Valid:
		rec.Owner = SessionOwner(sessionID.String)
	default:
		rec.Owner = NoOwner()
	}

	if metadataJSON != "" && metadataJSON != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode output metadata: %w", err)
		}
	}
	return &rec, nil
}

func collectOutputs(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		rec, err := scanOutput(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outputs: %w", err)
	}
	return out, nil
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode output metadata: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
