package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/service"
)

type OrderHandler struct {
	checkout   service.CheckoutService
	settlement service.SettlementService
}

func NewOrderHandler(checkout service.CheckoutService, settlement service.SettlementService) *OrderHandler {
	return &OrderHandler{checkout: checkout, settlement: settlement}
}

type PlaceOrderRequestDTO struct {
	Courses       []string `json:"courses"`
	PaymentMethod string   `json:"paymentMethod"`
	CouponCode    string   `json:"couponCode,omitempty"`
}

type OrderItemDTO struct {
	CourseID    string  `json:"course_id"`
	CourseTitle string  `json:"course_title"`
	CoursePrice string  `json:"course_price"`
	Discount    string  `json:"discount"`
	CouponID    *string `json:"coupon_id,omitempty"`
}

type OrderResponseDTO struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Amount         string         `json:"amount"`
	Currency       string         `json:"currency"`
	OrderStatus    string         `json:"order_status"`
	PaymentStatus  string         `json:"payment_status"`
	PaymentGateway *string        `json:"payment_gateway,omitempty"`
	Items          []OrderItemDTO `json:"items"`
	CreatedAt      string         `json:"created_at"`
}

type PlaceOrderResponseDTO struct {
	Order       OrderResponseDTO `json:"order"`
	RedirectURL *string          `json:"redirect_url,omitempty"`
}

// POST /api/v1/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PaymentMethod == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_method", "paymentMethod is required")
		return
	}

	result, err := h.checkout.PlaceOrder(r.Context(), userID, &service.PlaceOrderRequest{
		CourseIDs:     req.Courses,
		PaymentMethod: domain.Gateway(req.PaymentMethod),
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponseDTO{
		Order:       convertOrder(result.Order),
		RedirectURL: result.RedirectURL,
	})
}

// POST /api/v1/orders/{order_id}/retry
func (h *OrderHandler) RetryOrder(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	result, err := h.checkout.RetryOrder(r.Context(), userID, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PlaceOrderResponseDTO{
		Order:       convertOrder(result.Order),
		RedirectURL: result.RedirectURL,
	})
}

// GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	orders, err := h.checkout.ListOrders(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, order := range orders {
		dtos = append(dtos, convertOrder(order))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.checkout.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

type UpdateStatusRequestDTO struct {
	OrderID       string `json:"orderId"`
	OrderStatus   string `json:"orderStatus"`
	PaymentStatus string `json:"paymentStatus"`
}

// POST /api/v1/orders/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "orderId must be a UUID")
		return
	}

	err = h.settlement.ManualUpdateStatus(r.Context(), orderID,
		domain.OrderStatus(req.OrderStatus), domain.PaymentStatus(req.PaymentStatus))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// POST /api/v1/stripe/release-checkout-lock
func (h *OrderHandler) ReleaseCheckoutLock(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	if err := h.checkout.ReleaseLock(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func convertOrder(order *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			CourseID:    item.CourseID,
			CourseTitle: item.CourseTitle,
			CoursePrice: item.CoursePrice.StringFixed(2),
			Discount:    item.Discount.StringFixed(2),
			CouponID:    item.CouponID,
		})
	}

	var gw *string
	if order.PaymentGateway != nil {
		s := string(*order.PaymentGateway)
		gw = &s
	}

	return OrderResponseDTO{
		ID:             order.ID.String(),
		UserID:         order.UserID,
		Amount:         order.Amount.StringFixed(2),
		Currency:       order.Currency,
		OrderStatus:    string(order.OrderStatus),
		PaymentStatus:  string(order.PaymentStatus),
		PaymentGateway: gw,
		Items:          items,
		CreatedAt:      order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
