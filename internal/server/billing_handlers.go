package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// handleCreateCheckout starts a Stripe Checkout session for the caller.
func (d *Deps) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
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
	if id.User.Pro {
		writeError(w, http.StatusConflict, "already subscribed")
		return
	}
	if d.Checkout == nil || !d.Checkout.Configured() {
		writeError(w, http.StatusServiceUnavailable, "checkout is not configured")
		return
	}

	url, err := d.Checkout.CreateSession(id.User)
	if err != nil {
		log.Error().Err(err).Str("user_id", id.User.ID).Msg("create checkout session")
		writeError(w, http.StatusBadGateway, "unable to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleBillingStatus reports the caller's subscription state.
func (d *Deps) handleBillingStatus(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, map[string]any{
		"isPro":              id.User.Pro,
		"subscriptionStatus": id.User.SubscriptionStatus,
		"stripeCustomerId":   id.User.StripeCustomerID,
	})
}
