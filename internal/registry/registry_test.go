package registry

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *UserRegistry {
	t.Helper()
	r, err := NewUserRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("NewUserRegistry: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestCreateAndGetUser(t *testing.T) {
	r := newTestRegistry(t)

	u := &User{Username: "  Alice  ", Email: "alice@example.com", PasswordHash: "hash"}
	if err := r.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Fatal("CreateUser did not assign an ID")
	}
	if u.Username != "alice" {
		t.Errorf("username = %q, want normalized alice", u.Username)
	}

	got, err := r.GetUser(u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got == nil || got.Username != "alice" || got.Email != "alice@example.com" {
		t.Errorf("got = %+v", got)
	}
	if got.Pro {
		t.Error("new user should not be pro")
	}

	byName, err := r.GetUserByUsername("ALICE")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if byName == nil || byName.ID != u.ID {
		t.Errorf("lookup by username = %+v", byName)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.CreateUser(&User{Username: "alice"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	err := r.CreateUser(&User{Username: "Alice"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestGetMissingUserReturnsNil(t *testing.T) {
	r := newTestRegistry(t)
	got, err := r.GetUser("u_missing")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestUpdateSubscription(t *testing.T) {
	r := newTestRegistry(t)

	u := &User{Username: "alice"}
	if err := r.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	err := r.UpdateSubscription(u.ID, SubscriptionUpdate{
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_456",
		SubscriptionStatus:   "active",
		Pro:                  true,
	})
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	got, err := r.GetUserByStripeCustomerID("cus_123")
	if err != nil {
		t.Fatalf("GetUserByStripeCustomerID: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("lookup by customer = %+v", got)
	}
	if !got.Pro || got.SubscriptionStatus != "active" || got.StripeSubscriptionID != "sub_456" {
		t.Errorf("got = %+v", got)
	}

	// A later event without refs must not erase the stored correlation.
	err = r.UpdateSubscription(u.ID, SubscriptionUpdate{
		SubscriptionStatus: "canceled",
		Pro:                false,
	})
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	got, err = r.GetUser(u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Pro || got.SubscriptionStatus != "canceled" {
		t.Errorf("got = %+v, want canceled non-pro", got)
	}
	if got.StripeCustomerID != "cus_123" {
		t.Errorf("customer ref = %q, want preserved cus_123", got.StripeCustomerID)
	}
}

func TestUpdateSubscriptionUnknownUser(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.UpdateSubscription("u_missing", SubscriptionUpdate{Pro: true}); err == nil {
		t.Error("want error for unknown user")
	}
}

func TestTouchLastLogin(t *testing.T) {
	r := newTestRegistry(t)

	u := &User{Username: "alice"}
	if err := r.CreateUser(u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	if err := r.TouchLastLogin(u.ID, at); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}
	got, err := r.GetUser(u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(at) {
		t.Errorf("last login = %v, want %v", got.LastLoginAt, at)
	}
}

func TestGenerateUserIDShape(t *testing.T) {
	id, err := GenerateUserID()
	if err != nil {
		t.Fatalf("GenerateUserID: %v", err)
	}
	if len(id) != 12 || id[:2] != "u_" {
		t.Errorf("id = %q, want u_ prefix and 10 characters", id)
	}
}
