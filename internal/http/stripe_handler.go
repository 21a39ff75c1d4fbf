package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/gateway"
	"github.com/rashinkp/byway-sub005/internal/service"
	"github.com/rs/zerolog"
)

// webhook bodies are small; anything past this is not a gateway event
const maxWebhookBodyBytes = 1 << 16

type StripeHandler struct {
	gateway    gateway.PaymentGateway
	checkout   service.CheckoutService
	settlement service.SettlementService
	logger     zerolog.Logger
}

func NewStripeHandler(gw gateway.PaymentGateway, checkout service.CheckoutService, settlement service.SettlementService, logger zerolog.Logger) *StripeHandler {
	return &StripeHandler{
		gateway:    gw,
		checkout:   checkout,
		settlement: settlement,
		logger:     logger,
	}
}

type CreateSessionRequestDTO struct {
	OrderID string `json:"orderId,omitempty"`
	Amount  string `json:"amount,omitempty"`
}

type SessionResponseDTO struct {
	OrderID     string  `json:"order_id"`
	RedirectURL *string `json:"redirect_url,omitempty"`
}

// POST /api/v1/stripe/create-checkout-session
//
// With orderId: a fresh session for an existing failed order. With
// amount: a wallet top-up session.
func (h *StripeHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	var req CreateSessionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var result *service.PlaceOrderResult
	var err error
	switch {
	case req.OrderID != "":
		var orderID uuid.UUID
		orderID, err = uuid.Parse(req.OrderID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a UUID")
			return
		}
		result, err = h.checkout.RetryOrder(r.Context(), userID, orderID)
	case req.Amount != "":
		amount, perr := parseAmount(req.Amount)
		if perr != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount", "amount must be a decimal number")
			return
		}
		result, err = h.checkout.TopUpWallet(r.Context(), userID, amount, domain.GatewayStripe)
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "orderId or amount is required")
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, SessionResponseDTO{
		OrderID:     result.Order.ID.String(),
		RedirectURL: result.RedirectURL,
	})
}

// POST /api/v1/stripe/webhook
//
// Signature verification runs on the raw body; a verified event is
// settled synchronously. Non-2xx makes Stripe redeliver, so transient
// settlement failures return 500.
func (h *StripeHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
		return
	}

	event, err := h.gateway.VerifyWebhook(r.Context(), r, payload)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			h.logger.Warn().Msg("stripe webhook signature verification failed")
			respondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_event", "failed to parse webhook event")
		return
	}

	if err := h.settlement.HandleEvent(r.Context(), event); err != nil {
		h.logger.Error().Err(err).
			Str("event_id", event.EventID).
			Msg("failed to settle stripe event")
		respondError(w, http.StatusInternalServerError, "settlement_failed", "event processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
