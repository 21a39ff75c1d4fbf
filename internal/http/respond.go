package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rashinkp/byway-sub005/internal/cart"
	"github.com/rashinkp/byway-sub005/internal/gateway"
	"github.com/rashinkp/byway-sub005/internal/lock"
	"github.com/rashinkp/byway-sub005/internal/money"
	"github.com/rashinkp/byway-sub005/internal/repository"
	"github.com/rashinkp/byway-sub005/internal/service"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleServiceError maps service and repository errors to HTTP
// statuses. Anything unmapped is a generic 500; internals are logged
// with the request id, never leaked.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lock.ErrAlreadyLocked):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.Is(err, repository.ErrInsufficientBalance):
		respondError(w, http.StatusPaymentRequired, "insufficient_balance", err.Error())
	case errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, money.ErrCouponInvalid):
		respondError(w, http.StatusBadRequest, "coupon_invalid", err.Error())
	case errors.Is(err, money.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, service.ErrUnsupportedGateway):
		respondError(w, http.StatusBadRequest, "unsupported_gateway", err.Error())
	case errors.Is(err, service.IllegalTransitionError):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, cart.ErrCartNotFound):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		respondError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway request failed")
	default:
		log.Error().Err(err).
			Str("request_id", getRequestID(r.Context())).
			Msg("unhandled service error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
