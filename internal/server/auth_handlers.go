package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/textmill/textmill/internal/auth"
	"github.com/textmill/textmill/internal/registry"
	"github.com/textmill/textmill/internal/tmmetrics"
)

const minUsernameLength = 3

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type userResponse struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email,omitempty"`
	IsPro              bool   `json:"isPro"`
	SubscriptionStatus string `json:"subscriptionStatus,omitempty"`
	MigratedOutputs    int64  `json:"migratedOutputs,omitempty"`
}

// handleRegister creates an account, starts a login session, and claims any
// outputs the caller produced anonymously before signing up.
func (d *Deps) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username := registry.NormalizeUsername(req.Username)
	if len(username) < minUsernameLength {
		writeError(w, http.StatusBadRequest, "username must be at least 3 characters long")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("hash password")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &registry.User{
		Username:     username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := d.Users.CreateUser(user); err != nil {
		if errors.Is(err, registry.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		log.Error().Err(err).Msg("create user")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	migrated := d.startSession(w, r, user)

	log.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Int64("migrated_outputs", migrated).
		Msg("User registered")

	writeJSON(w, http.StatusCreated, userResponse{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		MigratedOutputs: migrated,
	})
}

// handleLogin verifies credentials, starts a login session, and claims any
// outputs from the caller's anonymous session.
func (d *Deps) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := d.Users.GetUserByUsername(req.Username)
	if err != nil {
		log.Error().Err(err).Msg("lookup user")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Burn the same time on unknown users as on wrong passwords.
	if user == nil {
		_ = auth.CheckPasswordHash(req.Password, "$2a$12$000000000000000000000uGyEMfIcLDWWaAhvQ1cXW6Kpo1mLuK7u")
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if err := d.Users.TouchLastLogin(user.ID, time.Now()); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("record last login")
	}

	migrated := d.startSession(w, r, user)

	log.Info().
		Str("user_id", user.ID).
		Int64("migrated_outputs", migrated).
		Msg("User logged in")

	writeJSON(w, http.StatusOK, userResponse{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		IsPro:              user.Pro,
		SubscriptionStatus: user.SubscriptionStatus,
		MigratedOutputs:    migrated,
	})
}

// startSession issues the login cookie and migrates anonymous outputs to
// the user. Migration failure is logged but never blocks the login.
func (d *Deps) startSession(w http.ResponseWriter, r *http.Request, user *registry.User) int64 {
	token, err := d.Sessions.Create(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("create session")
	} else {
		d.setSessionCookie(w, token)
	}

	var migrated int64
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		migrated, err = d.Outputs.MigrateSession(c.Value, user.ID)
		if err != nil {
			log.Error().Err(err).Str("user_id", user.ID).Msg("migrate session outputs")
		} else if migrated > 0 {
			tmmetrics.SessionMigrationsTotal.Add(float64(migrated))
		}
	}
	return migrated
}

// handleLogout revokes the caller's login session.
func (d *Deps) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if err := d.Sessions.Delete(c.Value); err != nil {
			log.Warn().Err(err).Msg("delete session")
		}
	}
	d.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

// handleCurrentUser reports the authenticated caller's account.
func (d *Deps) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, err := d.resolveIdentity(r)
	if err != nil {
		log.Error().Err(err).Msg("resolve identity")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if id.User == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:                 id.User.ID,
		Username:           id.User.Username,
		Email:              id.User.Email,
		IsPro:              id.User.Pro,
		SubscriptionStatus: id.User.SubscriptionStatus,
	})
}
