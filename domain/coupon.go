package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// Coupon is immutable once applied to an order; the checkout flow only
// reads it.
type Coupon struct {
	ID            string
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MinAmount     *decimal.Decimal
	MaxAmount     *decimal.Decimal
	ExpiresAt     *time.Time
}
