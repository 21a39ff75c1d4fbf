package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rashinkp/byway-sub005/domain"
	"github.com/shopspring/decimal"
)

func (r *Repository) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT id, code, discount_type, discount_value, min_amount, max_amount, expires_at
	          FROM coupons WHERE code = $1`

	var coupon domain.Coupon
	var value string
	var minAmount, maxAmount sql.NullString

	err := r.q.QueryRowContext(ctx, query, code).Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.DiscountType,
		&value,
		&minAmount,
		&maxAmount,
		&coupon.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query coupon by code: %w", err)
	}

	coupon.DiscountValue, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parse coupon discount value: %w", err)
	}
	if coupon.MinAmount, err = nullDecimal(minAmount); err != nil {
		return nil, fmt.Errorf("parse coupon min amount: %w", err)
	}
	if coupon.MaxAmount, err = nullDecimal(maxAmount); err != nil {
		return nil, fmt.Errorf("parse coupon max amount: %w", err)
	}

	return &coupon, nil
}

func nullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
