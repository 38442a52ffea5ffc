package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/textmill/textmill/internal/auth"
	"github.com/textmill/textmill/internal/billing"
	"github.com/textmill/textmill/internal/output"
	"github.com/textmill/textmill/internal/registry"
)

// Deps holds shared dependencies injected into HTTP handlers.
type Deps struct {
	Config    *Config
	Outputs   *output.Store
	Users     *registry.UserRegistry
	Sessions  *auth.SessionStore
	Lifecycle *billing.Lifecycle
	Checkout  *billing.CheckoutService
	Version   string
}

// RegisterRoutes wires all HTTP handlers onto the given ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	adminAuth := func(next http.Handler) http.Handler {
		return AdminKeyMiddleware(deps.Config.AdminKey, next)
	}

	// Health / readiness are unauthenticated liveness/readiness probes.
	mux.HandleFunc("/healthz", HandleHealthz)
	mux.HandleFunc("/readyz", deps.handleReadyz)

	// Metrics are private by default.
	metricsHandler := promhttp.Handler()
	if deps.Config.PublicMetrics {
		mux.Handle("/metrics", metricsHandler)
	} else {
		mux.Handle("/metrics", adminAuth(metricsHandler))
	}

	// Stripe webhook (signature-authenticated)
	lifecycle := deps.Lifecycle
	if lifecycle == nil {
		lifecycle = billing.NewLifecycle(deps.Users)
	}
	webhookHandler := billing.NewWebhookHandler(deps.Config.StripeWebhookSecret, lifecycle)
	webhookLimiter := NewRateLimiter(120, time.Minute)
	mux.Handle("/api/stripe/webhook", webhookLimiter.Middleware(webhookHandler))

	// Outputs
	outputsCollection := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			deps.handleListOutputs(w, r)
		case http.MethodPost:
			deps.handleCreateOutput(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.Handle("/api/outputs", outputsCollection)
	mux.HandleFunc("GET /api/outputs/{output_id}", deps.handleGetOutput)

	// Account auth (credential-gated, rate limited against guessing)
	authLimiter := NewRateLimiter(30, time.Minute)
	mux.Handle("POST /api/register", authLimiter.Middleware(http.HandlerFunc(deps.handleRegister)))
	mux.Handle("POST /api/login", authLimiter.Middleware(http.HandlerFunc(deps.handleLogin)))
	mux.HandleFunc("POST /api/logout", deps.handleLogout)
	mux.HandleFunc("GET /api/user", deps.handleCurrentUser)

	// Billing (session-authenticated)
	mux.HandleFunc("POST /api/billing/checkout", deps.handleCreateCheckout)
	mux.HandleFunc("GET /api/billing/status", deps.handleBillingStatus)
}
