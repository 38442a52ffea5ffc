package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/textmill/textmill/internal/auth"
	"github.com/textmill/textmill/internal/billing"
	"github.com/textmill/textmill/internal/logging"
	"github.com/textmill/textmill/internal/output"
	"github.com/textmill/textmill/internal/registry"
)

// Run starts the textmill HTTP server with graceful shutdown.
func Run(ctx context.Context, version string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "textmill",
	})

	log.Info().Str("version", version).Str("env", cfg.Env).Msg("Starting textmill")
	if !cfg.Production() {
		log.Warn().Msg("Non-production environment: tier gating is bypassed for all requests")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	outputs, err := output.NewStore(cfg.OutputsDir())
	if err != nil {
		return fmt.Errorf("open output store: %w", err)
	}
	defer outputs.Close()

	users, err := registry.NewUserRegistry(cfg.UsersDir())
	if err != nil {
		return fmt.Errorf("open user registry: %w", err)
	}
	defer users.Close()

	sessions, err := auth.NewSessionStore(cfg.SessionsDir())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessions.Close()

	var checkout *billing.CheckoutService
	if cfg.StripeAPIKey != "" && cfg.StripePriceID != "" {
		checkout = billing.NewCheckoutService(cfg.StripeAPIKey, cfg.StripePriceID, cfg.BaseURL)
		log.Info().Msg("Stripe checkout configured")
	} else {
		log.Info().Msg("Stripe checkout disabled (set STRIPE_API_KEY and STRIPE_PRICE_ID to enable)")
	}

	mux := http.NewServeMux()
	deps := &Deps{
		Config:    cfg,
		Outputs:   outputs,
		Users:     users,
		Sessions:  sessions,
		Lifecycle: billing.NewLifecycle(users),
		Checkout:  checkout,
		Version:   version,
	}
	RegisterRoutes(mux, deps)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           RequestID(SecurityHeaders(mux)),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		log.Info().Str("addr", addr).Msg("textmill listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down...")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	cancel()
	log.Info().Msg("textmill stopped")
	return nil
}
