package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/textmill/textmill/internal/auth"
	"github.com/textmill/textmill/internal/output"
	"github.com/textmill/textmill/internal/registry"
)

const (
	sessionCookieName = "tm_session"
	anonCookieName    = "tm_anon"

	anonCookieTTL = 90 * 24 * time.Hour
)

// identity is the resolved caller of a request: an authenticated user, an
// anonymous browser session, or neither.
type identity struct {
	User      *registry.User
	SessionID string
}

// requester converts the identity into the access decision input.
func (id identity) requester() output.Requester {
	req := output.Requester{SessionID: id.SessionID}
	if id.User != nil {
		req.UserID = id.User.ID
		req.Pro = id.User.Pro
	}
	return req
}

// resolveIdentity inspects cookies and loads the caller's user record if a
// valid login session is present. Invalid or expired session cookies are
// treated as absent, not as errors.
func (d *Deps) resolveIdentity(r *http.Request) (identity, error) {
	var id identity

	if c, err := r.Cookie(anonCookieName); err == nil {
		id.SessionID = c.Value
	}

	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return id, nil
	}
	userID, err := d.Sessions.Lookup(c.Value, time.Now())
	if err != nil {
		return id, nil
	}
	user, err := d.Users.GetUser(userID)
	if err != nil {
		return identity{}, err
	}
	id.User = user
	return id, nil
}

// ensureAnonSession returns the caller's anonymous session ID, minting one
// and setting the cookie if the request carried none.
func (d *Deps) ensureAnonSession(w http.ResponseWriter, r *http.Request, id *identity) string {
	if id.SessionID != "" {
		return id.SessionID
	}
	sessionID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(anonCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   d.Config.Production(),
		SameSite: http.SameSiteLaxMode,
	})
	id.SessionID = sessionID
	return sessionID
}

func (d *Deps) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   d.Config.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (d *Deps) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   d.Config.Production(),
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
