package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a user's internal credit. One wallet per user, created
// lazily on first credit. Balance is mutated only through atomic
// conditional updates paired with a Transaction record.
type Wallet struct {
	ID        uuid.UUID
	UserID    string
	Balance   decimal.Decimal
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TransactionType string

const (
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is an append-only ledger entry. One order may produce
// several (payment, then a later refund).
type Transaction struct {
	ID             uuid.UUID
	OrderID        *uuid.UUID
	UserID         string
	CourseID       *string
	Amount         decimal.Decimal
	Type           TransactionType
	Status         TransactionStatus
	PaymentGateway *Gateway
	TransactionID  *string // gateway reference
	CreatedAt      time.Time
}
