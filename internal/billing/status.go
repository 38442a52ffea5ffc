// Package billing maps Stripe subscription lifecycle events onto user
// entitlement in the user registry.
package billing

// Stripe subscription statuses this service reacts to. Stripe reports more
// (trialing, past_due, unpaid, incomplete, ...); any status other than
// "active" revokes pro access.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

// ProFromStatus derives the entitlement from a reported subscription status.
// It fails closed: an unrecognized or transitional status never grants pro.
func ProFromStatus(status string) bool {
	return status == StatusActive
}
