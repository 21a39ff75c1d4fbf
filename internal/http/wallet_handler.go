package http

import (
	"encoding/json"
	"net/http"

	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/service"
	"github.com/rashinkp/byway-sub005/internal/wallet"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	wallet   *wallet.Service
	checkout service.CheckoutService
}

func NewWalletHandler(walletSvc *wallet.Service, checkout service.CheckoutService) *WalletHandler {
	return &WalletHandler{wallet: walletSvc, checkout: checkout}
}

type WalletResponseDTO struct {
	UserID   string `json:"user_id"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// GET /api/v1/wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	wal, err := h.wallet.GetBalance(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, WalletResponseDTO{
		UserID:   wal.UserID,
		Balance:  wal.Balance.StringFixed(2),
		Currency: wal.Currency,
	})
}

type TransactionResponseDTO struct {
	ID        string  `json:"id"`
	OrderID   *string `json:"order_id,omitempty"`
	Amount    string  `json:"amount"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	Gateway   *string `json:"gateway,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// GET /api/v1/wallet/transactions
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	txns, err := h.wallet.ListTransactions(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	dtos := make([]TransactionResponseDTO, 0, len(txns))
	for _, txn := range txns {
		dto := TransactionResponseDTO{
			ID:        txn.ID.String(),
			Amount:    txn.Amount.StringFixed(2),
			Type:      string(txn.Type),
			Status:    string(txn.Status),
			CreatedAt: txn.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if txn.OrderID != nil {
			s := txn.OrderID.String()
			dto.OrderID = &s
		}
		if txn.PaymentGateway != nil {
			s := string(*txn.PaymentGateway)
			dto.Gateway = &s
		}
		dtos = append(dtos, dto)
	}
	respondJSON(w, http.StatusOK, dtos)
}

type TopUpRequestDTO struct {
	Amount        string `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
}

// POST /api/v1/wallet/top-up
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())

	var req TopUpRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "amount must be a decimal number")
		return
	}

	result, err := h.checkout.TopUpWallet(r.Context(), userID, amount, domain.Gateway(req.PaymentMethod))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, SessionResponseDTO{
		OrderID:     result.Order.ID.String(),
		RedirectURL: result.RedirectURL,
	})
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}
