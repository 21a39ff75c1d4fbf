package money

import (
	"testing"
	"time"

	"github.com/rashinkp/byway-sub005/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func item(price string, offer *string) domain.CartSnapshotItem {
	i := domain.CartSnapshotItem{CourseID: "c1", Price: dec(price)}
	if offer != nil {
		i.Offer = decPtr(*offer)
	}
	return i
}

func TestPriceCart_NoCoupon(t *testing.T) {
	offer := "40"
	items := []domain.CartSnapshotItem{
		item("50", &offer),
		item("19.99", nil),
	}

	quote, err := PriceCart(items, nil, time.Now())
	require.NoError(t, err)
	assert.True(t, quote.Subtotal.Equal(dec("59.99")), "subtotal = %s", quote.Subtotal)
	assert.True(t, quote.Discount.IsZero())
	assert.True(t, quote.Total.Equal(dec("59.99")))
}

func TestPriceCart_OfferPriceWins(t *testing.T) {
	offer := "40"
	items := []domain.CartSnapshotItem{item("50", &offer)}

	quote, err := PriceCart(items, nil, time.Now())
	require.NoError(t, err)
	assert.True(t, quote.Total.Equal(dec("40")))
}

func TestPriceCart_PercentageCoupon_CappedByMaxAmount(t *testing.T) {
	items := []domain.CartSnapshotItem{item("100", nil)}
	coupon := &domain.Coupon{
		Code:          "SAVE20",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: dec("20"),
		MaxAmount:     decPtr("15"),
	}

	quote, err := PriceCart(items, coupon, time.Now())
	require.NoError(t, err)
	assert.True(t, quote.Discount.Equal(dec("15")), "discount = %s", quote.Discount)
	assert.True(t, quote.Total.Equal(dec("85")), "total = %s", quote.Total)
}

func TestPriceCart_PercentageCoupon_NoCap(t *testing.T) {
	items := []domain.CartSnapshotItem{item("80", nil)}
	coupon := &domain.Coupon{
		Code:          "SAVE25",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: dec("25"),
	}

	quote, err := PriceCart(items, coupon, time.Now())
	require.NoError(t, err)
	assert.True(t, quote.Discount.Equal(dec("20")))
	assert.True(t, quote.Total.Equal(dec("60")))
}

func TestPriceCart_FixedCoupon_CappedBySubtotal(t *testing.T) {
	items := []domain.CartSnapshotItem{item("20", nil)}
	coupon := &domain.Coupon{
		Code:          "FLAT30",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: dec("30"),
	}

	quote, err := PriceCart(items, coupon, time.Now())
	require.NoError(t, err)
	assert.True(t, quote.Discount.Equal(dec("20")), "discount = %s", quote.Discount)
	assert.True(t, quote.Total.IsZero(), "total = %s", quote.Total)
}

func TestPriceCart_ExpiredCoupon(t *testing.T) {
	items := []domain.CartSnapshotItem{item("100", nil)}
	expired := time.Now().Add(-time.Hour)
	coupon := &domain.Coupon{
		Code:          "OLD",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: dec("10"),
		ExpiresAt:     &expired,
	}

	_, err := PriceCart(items, coupon, time.Now())
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

func TestPriceCart_BelowMinAmount(t *testing.T) {
	items := []domain.CartSnapshotItem{item("30", nil)}
	coupon := &domain.Coupon{
		Code:          "BIGSPEND",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: dec("10"),
		MinAmount:     decPtr("50"),
	}

	_, err := PriceCart(items, coupon, time.Now())
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

func TestPriceCart_RoundsItemsIndependently(t *testing.T) {
	items := []domain.CartSnapshotItem{
		item("10.005", nil),
		item("10.005", nil),
	}

	quote, err := PriceCart(items, nil, time.Now())
	require.NoError(t, err)
	// each item rounds to 10.01 before summing
	assert.True(t, quote.Subtotal.Equal(dec("20.02")), "subtotal = %s", quote.Subtotal)
}

func TestValidateTopUpAmount(t *testing.T) {
	assert.NoError(t, ValidateTopUpAmount(dec("10")))
	assert.ErrorIs(t, ValidateTopUpAmount(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateTopUpAmount(dec("-5")), ErrInvalidAmount)
}
