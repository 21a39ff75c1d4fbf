package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts all routes. Webhook endpoints sit outside the auth
// group: gateways authenticate by signature, not by user header. The
// PayPal capture endpoint is called by the buyer's client after
// approval, so it requires the authenticated user like any other
// checkout call.
func NewRouter(orders *OrderHandler, stripe *StripeHandler, paypal *PayPalHandler, wallets *WalletHandler, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/stripe/webhook", stripe.Webhook)
		r.Post("/paypal/webhook", paypal.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orders.PlaceOrder)
				r.Get("/", orders.ListOrders)
				r.Post("/status", orders.UpdateStatus)
				r.Get("/{order_id}", orders.GetOrder)
				r.Post("/{order_id}/retry", orders.RetryOrder)
			})

			r.Post("/stripe/create-checkout-session", stripe.CreateCheckoutSession)
			r.Post("/stripe/release-checkout-lock", orders.ReleaseCheckoutLock)
			r.Post("/paypal/createorder", paypal.CreateOrder)
			r.Post("/paypal/captureorder", paypal.CaptureOrder)

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", wallets.GetWallet)
				r.Get("/transactions", wallets.ListTransactions)
				r.Post("/top-up", wallets.TopUp)
			})
		})
	})

	return r
}
