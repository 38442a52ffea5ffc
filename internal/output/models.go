package output

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// OwnerKind discriminates the three ownership cases of a generated output.
type OwnerKind string

const (
	// OwnerKindUser marks an output owned by an authenticated user.
	OwnerKindUser OwnerKind = "user"
	// OwnerKindSession marks an output owned by an anonymous browser session.
	OwnerKindSession OwnerKind = "session"
	// OwnerKindNone marks an override-bypass creation where ownership
	// tracking is intentionally skipped.
	OwnerKindNone OwnerKind = "none"
)

// Owner is a tagged variant holding exactly one of a user ID, a session ID,
// or nothing. The constructors are the only way to build one, so the
// mutual-exclusion invariant holds structurally.
type Owner struct {
	kind OwnerKind
	id   string
}

// UserOwner returns an Owner for an authenticated user.
func UserOwner(userID string) Owner {
	return Owner{kind: OwnerKindUser, id: userID}
}

// SessionOwner returns an Owner for an anonymous session.
func SessionOwner(sessionID string) Owner {
	return Owner{kind: OwnerKindSession, id: sessionID}
}

// NoOwner returns the untracked-ownership variant.
func NoOwner() Owner {
	return Owner{kind: OwnerKindNone}
}

// Kind returns the ownership case. The zero Owner reports OwnerKindNone.
func (o Owner) Kind() OwnerKind {
	if o.kind == "" {
		return OwnerKindNone
	}
	return o.kind
}

// UserID returns the owning user ID and whether the owner is a user.
func (o Owner) UserID() (string, bool) {
	if o.kind != OwnerKindUser {
		return "", false
	}
	return o.id, true
}

// SessionID returns the owning session ID and whether the owner is a session.
func (o Owner) SessionID() (string, bool) {
	if o.kind != OwnerKindSession {
		return "", false
	}
	return o.id, true
}

// Record is one persisted generated output.
type Record struct {
	ID          string         `json:"output_id"`
	OutputType  string         `json:"output_type"`
	FullContent string         `json:"-"`
	Preview     string         `json:"preview_content"`
	Truncated   bool           `json:"is_truncated"`
	Owner       Owner          `json:"-"`
	// MigratedFromSession preserves the pre-login session ID after the
	// output has been reassigned to a user, so retrieval paths keyed by the
	// old session remain resolvable. Empty for never-migrated records.
	MigratedFromSession string         `json:"migrated_from_session,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// NewOutputID returns a ULID-based output identifier. ULIDs sort by creation
// time, which backs the newest-first listing contract's tiebreak.
func NewOutputID() string {
	return "out_" + ulid.Make().String()
}
