package output

import "errors"

// ErrNotFound is returned both for outputs that do not exist and for
// outputs owned by a different user. The two cases are deliberately
// indistinguishable so a caller cannot probe for another user's artifacts.
var ErrNotFound = errors.New("output not found")

// Requester identifies who is asking for an output. UserID is set for
// authenticated callers, SessionID for anonymous ones; both empty means a
// fully anonymous request. Pro carries the caller's entitlement.
type Requester struct {
	UserID    string
	SessionID string
	Pro       bool
}

// Decision is what a retrieval returns to the caller.
type Decision struct {
	Content    string `json:"content"`
	Authorized bool   `json:"authorized"`
	OutputType string `json:"output_type"`
}

// Decide applies the access matrix to one output record. It is a pure
// function: override is an already-resolved boolean and the requester's
// entitlement is read from the Requester value, never from ambient state.
//
// First match wins:
//  1. override → all available content, authorized.
//  2. session-owned → preview only, regardless of requester; no full
//     content was ever persisted for anonymous artifacts.
//  3. user-owned, requester is a different (or no) user → ErrNotFound.
//  4. user-owned, owner requesting, Pro, full content retained → full.
//  5. otherwise → preview, not authorized.
func Decide(rec *Record, req Requester, override bool) (Decision, error) {
	if rec == nil {
		return Decision{}, ErrNotFound
	}

	if override {
		content := rec.FullContent
		if content == "" {
			content = rec.Preview
		}
		return Decision{Content: content, Authorized: true, OutputType: rec.OutputType}, nil
	}

	switch rec.Owner.Kind() {
	case OwnerKindSession:
		return Decision{Content: rec.Preview, Authorized: false, OutputType: rec.OutputType}, nil

	case OwnerKindUser:
		ownerID, _ := rec.Owner.UserID()
		if req.UserID == "" || req.UserID != ownerID {
			// The session that created an output pre-login keeps preview
			// access after migration, keyed by the historical session tag.
			if req.SessionID != "" && req.SessionID == rec.MigratedFromSession {
				return Decision{Content: rec.Preview, Authorized: false, OutputType: rec.OutputType}, nil
			}
			return Decision{}, ErrNotFound
		}
		if req.Pro && rec.FullContent != "" {
			return Decision{Content: rec.FullContent, Authorized: true, OutputType: rec.OutputType}, nil
		}
		return Decision{Content: rec.Preview, Authorized: false, OutputType: rec.OutputType}, nil

	default:
		return Decision{Content: rec.Preview, Authorized: false, OutputType: rec.OutputType}, nil
	}
}
