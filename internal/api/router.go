/**
 * @description
 * This file sets up the HTTP router for the wallet-service. It defines the API
 * endpoints, associates them with their handlers, and applies the middleware
 * stack: request logging, panic recovery, timeouts, CORS and client identity.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for the wallet web views.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins     []string
	JWTAssertionSecret string
}

// NewRouter creates and returns the wallet-service router.
func NewRouter(h *WalletHandlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", JWTAssertionHeader},
		MaxAge:         300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	}
	r.Get("/health", health)

	r.Route("/wallet-service", func(r chi.Router) {
		r.Get("/health", health)

		r.Group(func(r chi.Router) {
			r.Use(ClientIDMiddleware(opts.JWTAssertionSecret))

			// Wallet identity
			r.Get("/wallet/address", h.GetWalletAddressHandler)
			r.Put("/wallet", h.BindWalletHandler)
			r.Delete("/wallet", h.ForgetWalletHandler)

			// Payment codes
			r.Post("/payment-codes", h.EncodePaymentCodeHandler)
			r.Post("/payment-codes/decode", h.DecodePaymentCodeHandler)

			// Transfer session
			r.Get("/transfers/session", h.GetSessionHandler)
			r.Get("/transfers/prefill", h.GetPrefillHandler)
			r.Post("/transfers/draft", h.BeginTransferHandler)
			r.Post("/transfers/restore", h.RestoreTransferHandler)
			r.Post("/transfers/scan", h.ScanHandler)
			r.Post("/transfers/review", h.ReviewTransferHandler)
			r.Post("/transfers/confirm", h.ConfirmTransferHandler)
			r.Post("/transfers/retry", h.RetryTransferHandler)
			r.Post("/transfers/cancel", h.CancelTransferHandler)
			r.Post("/transfers/reset", h.ResetTransferHandler)
		})
	})

	return r
}
