package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Gateway string

const (
	GatewayStripe   Gateway = "STRIPE"
	GatewayPaypal   Gateway = "PAYPAL"
	GatewayRazorpay Gateway = "RAZORPAY"
	GatewayWallet   Gateway = "WALLET"
)

// OrderItem is a snapshot of a purchased course at order time.
// Immutable after creation so later course edits never change
// historical order records.
type OrderItem struct {
	CourseID    string          `json:"course_id"`
	CourseTitle string          `json:"course_title"`
	CoursePrice decimal.Decimal `json:"course_price"`
	Discount    decimal.Decimal `json:"discount"`
	CouponID    *string         `json:"coupon_id,omitempty"`
}

type Order struct {
	ID             uuid.UUID
	UserID         string
	Amount         decimal.Decimal
	Currency       string
	PaymentStatus  PaymentStatus
	OrderStatus    OrderStatus
	PaymentID      *string
	PaymentGateway *Gateway
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
