package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/internal/gateway"
	"github.com/rashinkp/byway-sub005/internal/service"
	"github.com/rs/zerolog"
)

// PayPalHandler needs the concrete gateway: order capture is a PayPal
// API call, not a webhook.
type PayPalHandler struct {
	gateway    *gateway.PayPalGateway
	checkout   service.CheckoutService
	settlement service.SettlementService
	logger     zerolog.Logger
}

func NewPayPalHandler(gw *gateway.PayPalGateway, checkout service.CheckoutService, settlement service.SettlementService, logger zerolog.Logger) *PayPalHandler {
	return &PayPalHandler{
		gateway:    gw,
		checkout:   checkout,
		settlement: settlement,
		logger:     logger,
	}
}

type CreatePayPalOrderRequestDTO struct {
	OrderID string `json:"orderId"`
}

// POST /api/v1/paypal/createorder
//
// Creates a fresh PayPal approval session for an existing order, the
// retry path for PayPal checkouts.
func (h *PayPalHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	var req CreatePayPalOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a UUID")
		return
	}

	result, err := h.checkout.RetryOrder(r.Context(), userID, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, SessionResponseDTO{
		OrderID:     result.Order.ID.String(),
		RedirectURL: result.RedirectURL,
	})
}

type CaptureOrderRequestDTO struct {
	PayPalOrderID string `json:"paypalOrderId"`
}

// POST /api/v1/paypal/captureorder
//
// Captures an approved PayPal order and settles it through the same
// path a webhook would take. The capture uses a synthetic event id, so
// it does not share a dedup key with the webhook delivery; if both
// arrive, the completed-order status guard is what stops the second
// one from settling again.
func (h *PayPalHandler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	var req CaptureOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PayPalOrderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "paypalOrderId is required")
		return
	}

	event, err := h.gateway.Capture(r.Context(), req.PayPalOrderID)
	if err != nil {
		h.logger.Error().Err(err).
			Str("paypal_order_id", req.PayPalOrderID).
			Msg("paypal capture failed")
		handleServiceError(w, r, err)
		return
	}

	if err := h.settlement.HandleEvent(r.Context(), event); err != nil {
		h.logger.Error().Err(err).
			Str("event_id", event.EventID).
			Msg("failed to settle paypal capture")
		respondError(w, http.StatusInternalServerError, "settlement_failed", "event processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"captured": true})
}

// POST /api/v1/paypal/webhook
func (h *PayPalHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
		return
	}

	event, err := h.gateway.VerifyWebhook(r.Context(), r, payload)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			h.logger.Warn().Msg("paypal webhook signature verification failed")
			respondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_event", "failed to parse webhook event")
		return
	}

	if err := h.settlement.HandleEvent(r.Context(), event); err != nil {
		h.logger.Error().Err(err).
			Str("event_id", event.EventID).
			Msg("failed to settle paypal event")
		respondError(w, http.StatusInternalServerError, "settlement_failed", "event processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
