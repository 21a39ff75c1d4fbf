package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rashinkp/byway-sub005/domain"
	"github.com/shopspring/decimal"
)

func (r *Repository) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `INSERT INTO transactions (id, order_id, user_id, course_id, amount, type, status, payment_gateway, transaction_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

	_, err := r.q.ExecContext(ctx, query,
		txn.ID,
		txn.OrderID,
		txn.UserID,
		txn.CourseID,
		txn.Amount.StringFixed(2),
		txn.Type,
		txn.Status,
		gatewayOrNil(txn.PaymentGateway),
		txn.TransactionID)

	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *Repository) ListTransactionsByUserID(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	query := `SELECT id, order_id, user_id, course_id, amount, type, status, payment_gateway, transaction_id, created_at
	          FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions by user id: %w", err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var amount string
		var gateway sql.NullString
		if err := rows.Scan(
			&txn.ID,
			&txn.OrderID,
			&txn.UserID,
			&txn.CourseID,
			&amount,
			&txn.Type,
			&txn.Status,
			&gateway,
			&txn.TransactionID,
			&txn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txn.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse transaction amount: %w", err)
		}
		if gateway.Valid {
			g := domain.Gateway(gateway.String)
			txn.PaymentGateway = &g
		}
		txns = append(txns, &txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return txns, nil
}
