package service

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/cart"
	"github.com/rashinkp/byway-sub005/internal/gateway"
	"github.com/rashinkp/byway-sub005/internal/lock"
	"github.com/rashinkp/byway-sub005/internal/repository"
	"github.com/shopspring/decimal"
)

// MockStore is an in-memory repository.Store used by service tests.
type MockStore struct {
	Orders      map[uuid.UUID]*domain.Order
	Wallet      *domain.Wallet
	Txns        []*domain.Transaction
	Events      map[string]string
	Enrollments map[string]bool
	Coupons     map[string]*domain.Coupon
	Outbox      []*repository.OutboxEvent

	CreateOrderErr  error
	GrantErr        error
	TxnErr          error
	OutboxErr       error
	UpdateStatusErr error
}

func NewMockStore() *MockStore {
	return &MockStore{
		Orders:      make(map[uuid.UUID]*domain.Order),
		Events:      make(map[string]string),
		Enrollments: make(map[string]bool),
		Coupons:     make(map[string]*domain.Coupon),
	}
}

func (m *MockStore) CreateOrder(_ context.Context, order *domain.Order) error {
	if m.CreateOrderErr != nil {
		return m.CreateOrderErr
	}
	cp := *order
	m.Orders[order.ID] = &cp
	return nil
}

func (m *MockStore) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := m.Orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *MockStore) GetOrderByPaymentRef(_ context.Context, ref string) (*domain.Order, error) {
	for _, order := range m.Orders {
		if order.PaymentID != nil && *order.PaymentID == ref {
			cp := *order
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *MockStore) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, order := range m.Orders {
		if order.UserID == userID {
			cp := *order
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) ListStalePendingOrders(_ context.Context, cutoff time.Time, _ int) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, order := range m.Orders {
		if order.OrderStatus == domain.OrderStatusPending && order.CreatedAt.Before(cutoff) {
			cp := *order
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) UpdateOrderStatus(_ context.Context, id uuid.UUID, os domain.OrderStatus, ps domain.PaymentStatus) error {
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	order, ok := m.Orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.OrderStatus = os
	order.PaymentStatus = ps
	return nil
}

func (m *MockStore) SetOrderPayment(_ context.Context, id uuid.UUID, ref *string, gw domain.Gateway) error {
	order, ok := m.Orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.PaymentID = ref
	order.PaymentGateway = &gw
	return nil
}

func (m *MockStore) DeleteOrder(_ context.Context, id uuid.UUID) error {
	delete(m.Orders, id)
	return nil
}

func (m *MockStore) GetWalletByUserID(_ context.Context, _ string) (*domain.Wallet, error) {
	if m.Wallet == nil {
		return nil, repository.ErrWalletNotFound
	}
	return m.Wallet, nil
}

func (m *MockStore) DebitWallet(_ context.Context, _ string, amount decimal.Decimal) (*domain.Wallet, error) {
	if m.Wallet == nil || m.Wallet.Balance.LessThan(amount) {
		return nil, repository.ErrInsufficientBalance
	}
	m.Wallet.Balance = m.Wallet.Balance.Sub(amount)
	return m.Wallet, nil
}

func (m *MockStore) CreditWallet(_ context.Context, userID string, amount decimal.Decimal) (*domain.Wallet, error) {
	if m.Wallet == nil {
		m.Wallet = &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: decimal.Zero, Currency: "USD"}
	}
	m.Wallet.Balance = m.Wallet.Balance.Add(amount)
	return m.Wallet, nil
}

func (m *MockStore) CreateTransaction(_ context.Context, txn *domain.Transaction) error {
	if m.TxnErr != nil {
		return m.TxnErr
	}
	m.Txns = append(m.Txns, txn)
	return nil
}

func (m *MockStore) ListTransactionsByUserID(_ context.Context, _ string) ([]*domain.Transaction, error) {
	return m.Txns, nil
}

func (m *MockStore) RecordEvent(_ context.Context, eventID, eventType string) error {
	if _, ok := m.Events[eventID]; ok {
		return repository.ErrDuplicateEvent
	}
	m.Events[eventID] = eventType
	return nil
}

func (m *MockStore) ClearEvent(_ context.Context, eventID string) error {
	delete(m.Events, eventID)
	return nil
}

func (m *MockStore) GrantEnrollment(_ context.Context, userID, courseID string) error {
	if m.GrantErr != nil {
		return m.GrantErr
	}
	m.Enrollments[userID+"|"+courseID] = true
	return nil
}

func (m *MockStore) HasEnrollment(_ context.Context, userID, courseID string) (bool, error) {
	return m.Enrollments[userID+"|"+courseID], nil
}

func (m *MockStore) GetCouponByCode(_ context.Context, code string) (*domain.Coupon, error) {
	coupon, ok := m.Coupons[code]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	return coupon, nil
}

func (m *MockStore) CreateOutboxEvent(_ context.Context, aggregateID, eventType string, payload []byte) error {
	if m.OutboxErr != nil {
		return m.OutboxErr
	}
	m.Outbox = append(m.Outbox, &repository.OutboxEvent{
		ID:          int64(len(m.Outbox) + 1),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (m *MockStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	var out []*repository.OutboxEvent
	for _, evt := range m.Outbox {
		if evt.ProcessedAt == nil {
			out = append(out, evt)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	for _, evt := range m.Outbox {
		if evt.ID == id {
			now := time.Now()
			evt.ProcessedAt = &now
		}
	}
	return nil
}

// WithinTransaction mimics rollback semantics: a failing fn restores
// the store to its pre-transaction state.
func (m *MockStore) WithinTransaction(_ context.Context, fn func(repository.Tx) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type mockStoreState struct {
	orders      map[uuid.UUID]*domain.Order
	wallet      *domain.Wallet
	txns        []*domain.Transaction
	events      map[string]string
	enrollments map[string]bool
	outbox      []*repository.OutboxEvent
}

func (m *MockStore) snapshot() mockStoreState {
	s := mockStoreState{
		orders:      make(map[uuid.UUID]*domain.Order, len(m.Orders)),
		events:      make(map[string]string, len(m.Events)),
		enrollments: make(map[string]bool, len(m.Enrollments)),
		txns:        append([]*domain.Transaction(nil), m.Txns...),
		outbox:      append([]*repository.OutboxEvent(nil), m.Outbox...),
	}
	for id, order := range m.Orders {
		cp := *order
		s.orders[id] = &cp
	}
	if m.Wallet != nil {
		cp := *m.Wallet
		s.wallet = &cp
	}
	for k, v := range m.Events {
		s.events[k] = v
	}
	for k, v := range m.Enrollments {
		s.enrollments[k] = v
	}
	return s
}

func (m *MockStore) restore(s mockStoreState) {
	m.Orders = s.orders
	m.Wallet = s.wallet
	m.Txns = s.txns
	m.Events = s.events
	m.Enrollments = s.enrollments
	m.Outbox = s.outbox
}

func (m *MockStore) RunMigrations(_ *repository.Credentials) error { return nil }

func (m *MockStore) Close() error { return nil }

var _ repository.Store = (*MockStore)(nil)

// MockCartSource serves a fixed cart.
type MockCartSource struct {
	Items   []domain.CartSnapshotItem
	GetErr  error
	Cleared bool
}

func (m *MockCartSource) GetCart(_ context.Context, _ string) ([]domain.CartSnapshotItem, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Items, nil
}

func (m *MockCartSource) Clear(_ context.Context, _ string) error {
	m.Cleared = true
	return nil
}

var _ cart.Source = (*MockCartSource)(nil)

// MockLocker tracks held locks in a map.
type MockLocker struct {
	Held       map[string]bool
	AcquireErr error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{Held: make(map[string]bool)}
}

func (m *MockLocker) Acquire(_ context.Context, userID string) (string, error) {
	if m.AcquireErr != nil {
		return "", m.AcquireErr
	}
	if m.Held[userID] {
		return "", lock.ErrAlreadyLocked
	}
	m.Held[userID] = true
	return uuid.NewString(), nil
}

func (m *MockLocker) Release(_ context.Context, userID string) error {
	delete(m.Held, userID)
	return nil
}

var _ lock.Locker = (*MockLocker)(nil)

// MockGateway returns a canned hosted-checkout session.
type MockGateway struct {
	GatewayName domain.Gateway
	Session     *domain.Session
	CreateErr   error
	Requests    []domain.SessionRequest
}

func (m *MockGateway) Name() domain.Gateway { return m.GatewayName }

func (m *MockGateway) CreateSession(_ context.Context, req domain.SessionRequest) (*domain.Session, error) {
	m.Requests = append(m.Requests, req)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return m.Session, nil
}

func (m *MockGateway) VerifyWebhook(_ context.Context, _ *http.Request, _ []byte) (*domain.GatewayEvent, error) {
	return nil, nil
}

var _ gateway.PaymentGateway = (*MockGateway)(nil)
