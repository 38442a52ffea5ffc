// Package registry persists subscriber records and their billing
// entitlement, backed by SQLite.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUsernameTaken is returned by CreateUser when the normalized username
// already exists.
var ErrUsernameTaken = errors.New("username already exists")

// UserRegistry provides CRUD operations for user records.
type UserRegistry struct {
	db *sql.DB
}

// NewUserRegistry opens (or creates) the user registry database in dir.
func NewUserRegistry(dir string) (*UserRegistry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	dbPath := filepath.Join(dir, "users.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open user registry db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	r := &UserRegistry{db: db}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *UserRegistry) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id                     TEXT PRIMARY KEY,
		username               TEXT NOT NULL UNIQUE,
		email                  TEXT NOT NULL DEFAULT '',
		password_hash          TEXT NOT NULL DEFAULT '',
		is_pro                 INTEGER NOT NULL DEFAULT 0,
		subscription_status    TEXT NOT NULL DEFAULT '',
		stripe_customer_id     TEXT NOT NULL DEFAULT '',
		stripe_subscription_id TEXT NOT NULL DEFAULT '',
		created_at             INTEGER NOT NULL,
		last_login_at          INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_users_stripe_customer_id ON users(stripe_customer_id);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("init user registry schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity (used for readiness probes).
func (r *UserRegistry) Ping() error {
	return r.db.Ping()
}

// Close closes the underlying database connection.
func (r *UserRegistry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CreateUser inserts a new user record. The username is normalized before
// storage; a duplicate yields ErrUsernameTaken.
func (r *UserRegistry) CreateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	u.Username = NormalizeUsername(u.Username)
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.ID == "" {
		id, err := GenerateUserID()
		if err != nil {
			return err
		}
		u.ID = id
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	existing, err := r.GetUserByUsername(u.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUsernameTaken
	}

	_, err = r.db.Exec(`
		INSERT INTO users (
			id, username, email, password_hash, is_pro,
			subscription_status, stripe_customer_id, stripe_subscription_id,
			created_at, last_login_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, boolToInt(u.Pro),
		u.SubscriptionStatus, u.StripeCustomerID, u.StripeSubscriptionID,
		u.CreatedAt.Unix(), nullableTimeUnix(u.LastLoginAt),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, is_pro,
	subscription_status, stripe_customer_id, stripe_subscription_id,
	created_at, last_login_at`

// GetUser retrieves a user by ID. Returns (nil, nil) when absent.
func (r *UserRegistry) GetUser(id string) (*User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by normalized username.
func (r *UserRegistry) GetUserByUsername(username string) (*User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, NormalizeUsername(username))
	return scanUser(row)
}

// GetUserByStripeCustomerID retrieves the user correlated with a Stripe
// customer reference.
func (r *UserRegistry) GetUserByStripeCustomerID(customerID string) (*User, error) {
	row := r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = ?`, customerID)
	return scanUser(row)
}

// UpdateSubscription applies one lifecycle event's entitlement outcome to a
// user. The reported status and entitlement are written absolutely, so
// duplicated or reordered deliveries converge to the event's state.
func (r *UserRegistry) UpdateSubscription(userID string, upd SubscriptionUpdate) error {
	res, err := r.db.Exec(`
		UPDATE users SET
			is_pro = ?,
			subscription_status = ?,
			stripe_customer_id = CASE WHEN ? != '' THEN ? ELSE stripe_customer_id END,
			stripe_subscription_id = CASE WHEN ? != '' THEN ? ELSE stripe_subscription_id END
		WHERE id = ?`,
		boolToInt(upd.Pro),
		upd.SubscriptionStatus,
		upd.StripeCustomerID, upd.StripeCustomerID,
		upd.StripeSubscriptionID, upd.StripeSubscriptionID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("update user subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get subscription update rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

// TouchLastLogin records a successful login.
func (r *UserRegistry) TouchLastLogin(userID string, at time.Time) error {
	if _, err := r.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, at.UTC().Unix(), userID); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var proInt int
	var createdAtUnix int64
	var lastLoginUnix sql.NullInt64

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &proInt,
		&u.SubscriptionStatus, &u.StripeCustomerID, &u.StripeSubscriptionID,
		&createdAtUnix, &lastLoginUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Pro = proInt != 0
	u.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	if lastLoginUnix.Valid {
		t := time.Unix(lastLoginUnix.Int64, 0).UTC()
		u.LastLoginAt = &t
	}
	return &u, nil
}

func nullableTimeUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
