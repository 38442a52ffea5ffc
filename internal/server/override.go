package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ResolveOverride reports whether this request bypasses tier gating.
// Outside production every request is privileged; in production only a
// matching admin key grants the bypass. The comparison is constant-time.
func ResolveOverride(cfg *Config, r *http.Request) bool {
	if !cfg.Production() {
		return true
	}
	if cfg.AdminKey == "" {
		return false
	}

	key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
	if key == "" {
		// Also check Authorization: Bearer <key>
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(cfg.AdminKey)) == 1
}

// AdminKeyMiddleware returns middleware that requires a valid admin API key.
func AdminKeyMiddleware(adminKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
		if key == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}

		if key == "" || adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
