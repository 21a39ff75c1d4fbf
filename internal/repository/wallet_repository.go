package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, user_id, balance, currency, created_at, updated_at`

func (r *Repository) GetWalletByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return scanWallet(r.q.QueryRowContext(ctx, query, userID))
}

// DebitWallet performs the balance check and decrement as one
// conditional update: two concurrent debits can never over-spend.
func (r *Repository) DebitWallet(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error) {
	query := `UPDATE wallets
	          SET balance = balance - $2, updated_at = NOW()
	          WHERE user_id = $1 AND balance >= $2
	          RETURNING ` + walletColumns

	wallet, err := scanWallet(r.q.QueryRowContext(ctx, query, userID, amount.StringFixed(2)))
	if errors.Is(err, ErrWalletNotFound) {
		// no row matched: either the wallet does not exist or the
		// balance check failed; both read as insufficient funds
		return nil, ErrInsufficientBalance
	}
	return wallet, err
}

func (r *Repository) CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error) {
	query := `INSERT INTO wallets (id, user_id, balance, currency, created_at, updated_at)
	          VALUES ($1, $2, $3, 'USD', NOW(), NOW())
	          ON CONFLICT (user_id) DO UPDATE
	          SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()
	          RETURNING ` + walletColumns

	return scanWallet(r.q.QueryRowContext(ctx, query, uuid.New(), userID, amount.StringFixed(2)))
}

func scanWallet(row rowScanner) (*domain.Wallet, error) {
	var wallet domain.Wallet
	var balance string

	err := row.Scan(
		&wallet.ID,
		&wallet.UserID,
		&balance,
		&wallet.Currency,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan wallet row: %w", err)
	}

	wallet.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse wallet balance: %w", err)
	}
	return &wallet, nil
}
