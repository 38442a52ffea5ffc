package registry

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// User represents a subscriber record in the user registry.
type User struct {
	ID                   string     `json:"id"`
	Username             string     `json:"username"`
	Email                string     `json:"email,omitempty"`
	PasswordHash         string     `json:"-"`
	Pro                  bool       `json:"is_pro"`
	SubscriptionStatus   string     `json:"subscription_status,omitempty"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
}

// SubscriptionUpdate carries the entitlement fields applied by one billing
// lifecycle event. Status and Pro are always applied as reported; the
// Stripe refs are recorded only when non-empty so a partial event cannot
// erase a known correlation.
type SubscriptionUpdate struct {
	StripeCustomerID     string
	StripeSubscriptionID string
	SubscriptionStatus   string
	Pro                  bool
}

// crockfordBase32 is the Crockford base32 alphabet (excludes I, L, O, U).
const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// GenerateUserID returns a user ID of the form "u_" followed by 10 random
// Crockford base32 characters (50 bits of entropy).
func GenerateUserID() (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate user id: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("u_")
	for _, v := range b {
		sb.WriteByte(crockfordBase32[int(v)%len(crockfordBase32)])
	}
	return sb.String(), nil
}

// NormalizeUsername lowercases and trims a username for lookup and storage.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
