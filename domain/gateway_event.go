package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventCheckoutCompleted EventKind = "CHECKOUT_COMPLETED"
	EventPaymentFailed     EventKind = "PAYMENT_FAILED"
	EventRefunded          EventKind = "REFUNDED"
	EventOther             EventKind = "OTHER"
)

// SessionMetadata travels with the gateway session so the webhook can
// reconstruct intent without a lookup keyed only by gateway id.
type SessionMetadata struct {
	UserID        string     `json:"user_id"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	IsWalletTopUp bool       `json:"is_wallet_topup,omitempty"`
	CourseIDs     []string   `json:"course_ids,omitempty"`
}

type SessionRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    SessionMetadata
	SuccessURL  string
	CancelURL   string
}

// Session is a hosted-checkout handle created by a gateway,
// representing one payment attempt.
type Session struct {
	ID          string
	RedirectURL string
}

// GatewayEvent is the normalized shape of a verified webhook event;
// the settlement service consumes only this, never raw gateway payloads.
type GatewayEvent struct {
	Kind       EventKind
	EventID    string
	EventType  string // gateway-specific type, kept for the dedup log
	Gateway    Gateway
	PaymentRef string
	Metadata   SessionMetadata
}
