package billing

import (
	"fmt"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/textmill/textmill/internal/registry"
)

// CheckoutService creates Stripe Checkout sessions for pro upgrades. The
// session carries the user ID in metadata so the completion webhook can
// correlate payment back to an account.
type CheckoutService struct {
	apiKey  string
	priceID string
	baseURL string

	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
}

// NewCheckoutService creates a checkout service backed by the Stripe API.
func NewCheckoutService(apiKey, priceID, baseURL string) *CheckoutService {
	return &CheckoutService{
		apiKey:                apiKey,
		priceID:               priceID,
		baseURL:               strings.TrimRight(baseURL, "/"),
		createCheckoutSession: stripesession.New,
	}
}

// Configured reports whether checkout has the Stripe credentials it needs.
func (s *CheckoutService) Configured() bool {
	return strings.TrimSpace(s.apiKey) != "" && strings.TrimSpace(s.priceID) != ""
}

// CreateSession starts a subscription checkout for the given user and
// returns the hosted payment page URL.
func (s *CheckoutService) CreateSession(user *registry.User) (string, error) {
	if user == nil {
		return "", fmt.Errorf("user is nil")
	}
	if !s.Configured() {
		return "", fmt.Errorf("checkout is not configured")
	}

	stripelib.Key = strings.TrimSpace(s.apiKey)

	params := &stripelib.CheckoutSessionParams{
		Mode:       stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		SuccessURL: stripelib.String(s.baseURL + "/billing/success"),
		CancelURL:  stripelib.String(s.baseURL + "/billing/cancelled"),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(strings.TrimSpace(s.priceID)),
				Quantity: stripelib.Int64(1),
			},
		},
		// Metadata rides on both the session and the subscription so the
		// user can be correlated from either event family.
		Metadata: map[string]string{
			"user_id": user.ID,
		},
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": user.ID,
			},
		},
	}
	if email := strings.TrimSpace(user.Email); email != "" {
		params.CustomerEmail = stripelib.String(email)
	}
	if customerID := strings.TrimSpace(user.StripeCustomerID); customerID != "" {
		params.Customer = stripelib.String(customerID)
		params.CustomerEmail = nil
	}

	session, err := s.createCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("checkout session has no URL")
	}
	return session.URL, nil
}
