package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrInsufficientBalance = errors.New("wallet balance is insufficient")
	ErrDuplicateEvent      = errors.New("webhook event already processed")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// ListStalePendingOrders returns PENDING orders older than the
	// cutoff, for the reconciliation sweep.
	ListStalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, orderStatus domain.OrderStatus, paymentStatus domain.PaymentStatus) error
	SetOrderPayment(ctx context.Context, id uuid.UUID, paymentRef *string, gateway domain.Gateway) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type WalletRepository interface {
	GetWalletByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	// DebitWallet decrements the balance only when the result stays
	// non-negative; a single conditional update, never read-then-write.
	DebitWallet(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error)
	// CreditWallet increments the balance, lazily creating the wallet.
	CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error)
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, txn *domain.Transaction) error
	ListTransactionsByUserID(ctx context.Context, userID string) ([]*domain.Transaction, error)
}

type WebhookEventRepository interface {
	// RecordEvent marks a gateway event id as processed; a replay
	// returns ErrDuplicateEvent. Check-and-mark is a single atomic
	// insert.
	RecordEvent(ctx context.Context, eventID, eventType string) error
	// ClearEvent removes the marker so a redelivery can retry after a
	// downstream failure (payment landed, enrollment grant did not).
	ClearEvent(ctx context.Context, eventID string) error
}

type EnrollmentRepository interface {
	// GrantEnrollment is idempotent: granting twice for the same
	// (userID, courseID) is a no-op, required under at-least-once
	// webhook delivery.
	GrantEnrollment(ctx context.Context, userID, courseID string) error
	HasEnrollment(ctx context.Context, userID, courseID string) (bool, error)
}

type CouponRepository interface {
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type OutboxRepository interface {
	CreateOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Tx is the store surface available inside one database transaction.
type Tx interface {
	OrderRepository
	WalletRepository
	TransactionRepository
	WebhookEventRepository
	EnrollmentRepository
	CouponRepository
	OutboxRepository
}

// Store is the full persistence surface backed by one Postgres schema.
type Store interface {
	Tx
	// WithinTransaction runs fn against a transactional view of the
	// store. Any error from fn rolls back every write fn made; the
	// error is returned unwrapped so callers can match sentinels.
	WithinTransaction(ctx context.Context, fn func(Tx) error) error
	RunMigrations(*Credentials) error
	Close() error
}
