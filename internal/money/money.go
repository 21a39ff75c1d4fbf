package money

import (
	"errors"
	"time"

	"github.com/rashinkp/byway-sub005/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrCouponInvalid = errors.New("coupon is expired, unknown, or below the minimum amount")
	ErrInvalidAmount = errors.New("amount must be greater than zero")
)

var hundred = decimal.NewFromInt(100)

// Quote is the priced result of a cart snapshot plus an optional coupon.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// PriceCart computes subtotal, coupon discount and final payable total.
// Each item's effective price is rounded to 2 decimals independently
// before summing. Pure; no I/O.
func PriceCart(items []domain.CartSnapshotItem, coupon *domain.Coupon, now time.Time) (Quote, error) {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.EffectivePrice().Round(2))
	}

	discount := decimal.Zero
	if coupon != nil {
		var err error
		discount, err = couponDiscount(coupon, subtotal, now)
		if err != nil {
			return Quote{}, err
		}
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{
		Subtotal: subtotal,
		Discount: discount.Round(2),
		Total:    total.Round(2),
	}, nil
}

func couponDiscount(coupon *domain.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return decimal.Zero, ErrCouponInvalid
	}
	if coupon.MinAmount != nil && subtotal.LessThan(*coupon.MinAmount) {
		return decimal.Zero, ErrCouponInvalid
	}

	switch coupon.DiscountType {
	case domain.DiscountTypePercentage:
		discount := subtotal.Mul(coupon.DiscountValue).Div(hundred)
		cap := subtotal
		if coupon.MaxAmount != nil {
			cap = *coupon.MaxAmount
		}
		if discount.GreaterThan(cap) {
			discount = cap
		}
		return discount, nil
	case domain.DiscountTypeFixed:
		discount := coupon.DiscountValue
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
		return discount, nil
	default:
		return decimal.Zero, ErrCouponInvalid
	}
}

// ValidateTopUpAmount guards wallet top-ups; top-up amounts bypass
// discounting entirely and are taken as-is.
func ValidateTopUpAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
