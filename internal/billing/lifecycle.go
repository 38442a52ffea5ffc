package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/textmill/textmill/internal/registry"
)

// Lifecycle applies verified Stripe events to the user registry. Each
// handler writes the event's reported state absolutely, so duplicate or
// reordered deliveries converge rather than toggling.
type Lifecycle struct {
	users *registry.UserRegistry
}

// NewLifecycle creates a billing lifecycle processor.
func NewLifecycle(users *registry.UserRegistry) *Lifecycle {
	return &Lifecycle{users: users}
}

// HandleCheckoutCompleted correlates a finished checkout with the user who
// started it (via session metadata) and activates their subscription.
func (l *Lifecycle) HandleCheckoutCompleted(ctx context.Context, session CheckoutSession) error {
	userID := strings.TrimSpace(session.Metadata["user_id"])
	if userID == "" {
		return fmt.Errorf("checkout session %s missing user_id metadata", session.ID)
	}

	user, err := l.users.GetUser(userID)
	if err != nil {
		return fmt.Errorf("lookup user for checkout: %w", err)
	}
	if user == nil {
		return fmt.Errorf("checkout session %s references unknown user %s", session.ID, userID)
	}

	err = l.users.UpdateSubscription(userID, registry.SubscriptionUpdate{
		StripeCustomerID:     strings.TrimSpace(session.Customer),
		StripeSubscriptionID: strings.TrimSpace(session.Subscription),
		SubscriptionStatus:   StatusActive,
		Pro:                  true,
	})
	if err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("customer_id", session.Customer).
		Str("subscription_id", session.Subscription).
		Msg("Checkout completed, pro access granted")
	return nil
}

// HandleSubscriptionUpdated syncs entitlement when a subscription changes.
func (l *Lifecycle) HandleSubscriptionUpdated(ctx context.Context, sub Subscription) error {
	customerID := strings.TrimSpace(sub.Customer)
	if customerID == "" {
		return fmt.Errorf("subscription missing customer")
	}

	user, err := l.users.GetUserByStripeCustomerID(customerID)
	if err != nil {
		return fmt.Errorf("lookup user by customer: %w", err)
	}
	if user == nil {
		log.Warn().Str("customer_id", customerID).Msg("subscription.updated: user not found")
		return nil
	}

	err = l.users.UpdateSubscription(user.ID, registry.SubscriptionUpdate{
		StripeCustomerID:     customerID,
		StripeSubscriptionID: strings.TrimSpace(sub.ID),
		SubscriptionStatus:   sub.Status,
		Pro:                  ProFromStatus(sub.Status),
	})
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	log.Info().
		Str("user_id", user.ID).
		Str("customer_id", customerID).
		Str("status", sub.Status).
		Bool("is_pro", ProFromStatus(sub.Status)).
		Msg("Subscription updated")
	return nil
}

// HandleSubscriptionDeleted revokes pro access on cancellation.
func (l *Lifecycle) HandleSubscriptionDeleted(ctx context.Context, sub Subscription) error {
	customerID := strings.TrimSpace(sub.Customer)
	if customerID == "" {
		return fmt.Errorf("subscription missing customer")
	}

	user, err := l.users.GetUserByStripeCustomerID(customerID)
	if err != nil {
		return fmt.Errorf("lookup user by customer: %w", err)
	}
	if user == nil {
		log.Warn().Str("customer_id", customerID).Msg("subscription.deleted: user not found")
		return nil
	}

	err = l.users.UpdateSubscription(user.ID, registry.SubscriptionUpdate{
		StripeCustomerID:     customerID,
		StripeSubscriptionID: strings.TrimSpace(sub.ID),
		SubscriptionStatus:   StatusCanceled,
		Pro:                  false,
	})
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}

	log.Info().
		Str("user_id", user.ID).
		Str("customer_id", customerID).
		Msg("Subscription deleted, pro access revoked")
	return nil
}
