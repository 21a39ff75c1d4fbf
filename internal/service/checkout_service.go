package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/cart"
	"github.com/rashinkp/byway-sub005/internal/gateway"
	"github.com/rashinkp/byway-sub005/internal/lock"
	"github.com/rashinkp/byway-sub005/internal/money"
	"github.com/rashinkp/byway-sub005/internal/repository"
	"github.com/rashinkp/byway-sub005/internal/wallet"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PlaceOrderRequest struct {
	CourseIDs     []string
	PaymentMethod domain.Gateway
	CouponCode    string
}

type PlaceOrderResult struct {
	Order       *domain.Order
	RedirectURL *string
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, userID string, req *PlaceOrderRequest) (*PlaceOrderResult, error)
	RetryOrder(ctx context.Context, userID string, orderID uuid.UUID) (*PlaceOrderResult, error)
	TopUpWallet(ctx context.Context, userID string, amount decimal.Decimal, method domain.Gateway) (*PlaceOrderResult, error)
	ReleaseLock(ctx context.Context, userID string) error
	GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
}

// Options carries the checkout-wide settings every gateway session
// shares.
type Options struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

type CheckoutServiceImpl struct {
	store    repository.Store
	cart     cart.Source
	wallet   *wallet.Service
	locker   lock.Locker
	gateways map[domain.Gateway]gateway.PaymentGateway
	opts     Options
	logger   zerolog.Logger
}

func NewCheckoutService(
	store repository.Store,
	cartSource cart.Source,
	walletSvc *wallet.Service,
	locker lock.Locker,
	gateways map[domain.Gateway]gateway.PaymentGateway,
	opts Options,
	logger zerolog.Logger,
) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		store:    store,
		cart:     cartSource,
		wallet:   walletSvc,
		locker:   locker,
		gateways: gateways,
		opts:     opts,
		logger:   logger,
	}
}

func (s *CheckoutServiceImpl) PlaceOrder(ctx context.Context, userID string, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	snapshot, err := s.buildCartSnapshot(ctx, userID, req.CourseIDs)
	if err != nil {
		return nil, err
	}

	coupon, err := s.resolveCoupon(ctx, req.CouponCode)
	if err != nil {
		return nil, err
	}

	quote, err := money.PriceCart(snapshot.Items, coupon, time.Now())
	if err != nil {
		return nil, err
	}

	// everything before this point is read-only; the lock guards the
	// order + session creation that follows
	if _, err := s.locker.Acquire(ctx, userID); err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        quote.Total,
		Currency:      snapshot.Currency,
		PaymentStatus: domain.PaymentStatusPending,
		OrderStatus:   domain.OrderStatusPending,
		Items:         snapshotOrderItems(snapshot.Items, coupon, quote),
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.releaseLock(ctx, userID)
		return nil, err
	}

	if req.PaymentMethod == domain.GatewayWallet {
		return s.payWithWallet(ctx, order)
	}

	return s.createGatewaySession(ctx, order, req.PaymentMethod, domain.SessionMetadata{
		UserID:    userID,
		OrderID:   &order.ID,
		CourseIDs: courseIDs(order.Items),
	})
}

func (s *CheckoutServiceImpl) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutServiceImpl) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.store.ListOrdersByUserID(ctx, userID)
}

func (s *CheckoutServiceImpl) ReleaseLock(ctx context.Context, userID string) error {
	return s.locker.Release(ctx, userID)
}

// payWithWallet settles the order synchronously. The debit, grants,
// completion and fan-out row commit as one transaction; any failure
// rolls everything back and deletes the pending order so the user can
// retry with another method without a dangling row.
func (s *CheckoutServiceImpl) payWithWallet(ctx context.Context, order *domain.Order) (*PlaceOrderResult, error) {
	gw := domain.GatewayWallet
	ref := "wallet:" + order.ID.String()

	err := s.store.WithinTransaction(ctx, func(tx repository.Tx) error {
		_, err := s.wallet.DebitTx(ctx, tx, tx, order.UserID, order.Amount, wallet.Entry{
			OrderID:   &order.ID,
			Type:      domain.TransactionTypePayment,
			Gateway:   &gw,
			Reference: &ref,
		})
		if err != nil {
			return err
		}

		for _, item := range order.Items {
			if gerr := tx.GrantEnrollment(ctx, order.UserID, item.CourseID); gerr != nil {
				return fmt.Errorf("failed to grant enrollment for course %s: %w", item.CourseID, gerr)
			}
		}

		if err := tx.SetOrderPayment(ctx, order.ID, &ref, gw); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusCompleted, domain.PaymentStatusCompleted); err != nil {
			return err
		}

		snapshot := *order
		snapshot.PaymentGateway = &gw
		snapshot.PaymentID = &ref
		snapshot.OrderStatus = domain.OrderStatusCompleted
		snapshot.PaymentStatus = domain.PaymentStatusCompleted
		return tx.CreateOutboxEvent(ctx, order.ID.String(), "order.completed", orderEventPayload(&snapshot))
	})
	if err != nil {
		if derr := s.store.DeleteOrder(ctx, order.ID); derr != nil {
			s.logger.Error().Err(derr).Str("order_id", order.ID.String()).Msg("failed to roll back wallet order")
		}
		s.releaseLock(ctx, order.UserID)
		return nil, err
	}
	s.wallet.InvalidateBalance(order.UserID)

	order.PaymentGateway = &gw
	order.PaymentID = &ref
	order.OrderStatus = domain.OrderStatusCompleted
	order.PaymentStatus = domain.PaymentStatusCompleted

	s.clearCart(ctx, order.UserID)
	s.releaseLock(ctx, order.UserID)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", order.UserID).
		Msg("order paid from wallet")

	return &PlaceOrderResult{Order: order}, nil
}

// RetryOrder reuses the order row with a fresh gateway session instead
// of minting a new order. A FAILED order is reset to PENDING; a PENDING
// order (webhook lost, redirect abandoned) just gets a new session.
func (s *CheckoutServiceImpl) RetryOrder(ctx context.Context, userID string, orderID uuid.UUID) (*PlaceOrderResult, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}

	retryFromFailed := order.OrderStatus == domain.OrderStatusFailed
	if !retryFromFailed && order.OrderStatus != domain.OrderStatusPending {
		return nil, fmt.Errorf("%w: %s", IllegalTransitionError, order.OrderStatus)
	}

	method := domain.GatewayStripe
	if order.PaymentGateway != nil && *order.PaymentGateway != domain.GatewayWallet {
		method = *order.PaymentGateway
	}

	if _, err := s.locker.Acquire(ctx, userID); err != nil {
		// a PENDING order's first attempt still holds the user's lock;
		// the refreshed session proceeds under it
		if retryFromFailed || !errors.Is(err, lock.ErrAlreadyLocked) {
			return nil, err
		}
	}

	if retryFromFailed {
		if err := s.store.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPending, domain.PaymentStatusPending); err != nil {
			s.releaseLock(ctx, userID)
			return nil, err
		}
		order.OrderStatus = domain.OrderStatusPending
		order.PaymentStatus = domain.PaymentStatusPending
	}

	return s.createGatewaySession(ctx, order, method, domain.SessionMetadata{
		UserID:    userID,
		OrderID:   &order.ID,
		CourseIDs: courseIDs(order.Items),
	})
}

// TopUpWallet runs a top-up through the same order pipeline: an order
// with no items whose settlement credits the wallet instead of
// granting enrollments.
func (s *CheckoutServiceImpl) TopUpWallet(ctx context.Context, userID string, amount decimal.Decimal, method domain.Gateway) (*PlaceOrderResult, error) {
	if err := money.ValidateTopUpAmount(amount); err != nil {
		return nil, err
	}
	if method == domain.GatewayWallet {
		return nil, ErrUnsupportedGateway
	}

	if _, err := s.locker.Acquire(ctx, userID); err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        amount.Round(2),
		Currency:      s.opts.Currency,
		PaymentStatus: domain.PaymentStatusPending,
		OrderStatus:   domain.OrderStatusPending,
		Items:         []domain.OrderItem{},
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.releaseLock(ctx, userID)
		return nil, err
	}

	return s.createGatewaySession(ctx, order, method, domain.SessionMetadata{
		UserID:        userID,
		OrderID:       &order.ID,
		IsWalletTopUp: true,
	})
}

func orderEventPayload(order *domain.Order) []byte {
	payload, _ := json.Marshal(map[string]string{
		"order_id":       order.ID.String(),
		"user_id":        order.UserID,
		"amount":         order.Amount.StringFixed(2),
		"currency":       order.Currency,
		"order_status":   string(order.OrderStatus),
		"payment_status": string(order.PaymentStatus),
	})
	return payload
}

func (s *CheckoutServiceImpl) buildCartSnapshot(ctx context.Context, userID string, courseIDs []string) (*domain.CartSnapshot, error) {
	items, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if len(courseIDs) > 0 {
		items = filterItems(items, courseIDs)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	return &domain.CartSnapshot{
		Items:      items,
		Currency:   s.opts.Currency,
		CapturedAt: time.Now(),
	}, nil
}

func (s *CheckoutServiceImpl) resolveCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	if code == "" {
		return nil, nil
	}
	coupon, err := s.store.GetCouponByCode(ctx, code)
	if errors.Is(err, repository.ErrCouponNotFound) {
		return nil, money.ErrCouponInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}
	return coupon, nil
}

// createGatewaySession starts the async payment leg. The checkout lock
// stays held until the webhook settles the order or the client releases
// it explicitly; a session-creation failure releases it immediately.
func (s *CheckoutServiceImpl) createGatewaySession(ctx context.Context, order *domain.Order, method domain.Gateway, meta domain.SessionMetadata) (*PlaceOrderResult, error) {
	g, ok := s.gateways[method]
	if !ok {
		s.failOrder(ctx, order)
		return nil, ErrUnsupportedGateway
	}

	session, err := g.CreateSession(ctx, domain.SessionRequest{
		Amount:      order.Amount,
		Currency:    order.Currency,
		Description: sessionDescription(order, meta),
		Metadata:    meta,
		SuccessURL:  s.opts.SuccessURL,
		CancelURL:   s.opts.CancelURL,
	})
	if err != nil {
		s.failOrder(ctx, order)
		return nil, err
	}

	if err := s.store.SetOrderPayment(ctx, order.ID, &session.ID, g.Name()); err != nil {
		s.failOrder(ctx, order)
		return nil, err
	}
	gw := g.Name()
	order.PaymentGateway = &gw
	order.PaymentID = &session.ID

	if !meta.IsWalletTopUp {
		s.clearCart(ctx, order.UserID)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("gateway", string(gw)).
		Str("session_id", session.ID).
		Msg("gateway session created")

	return &PlaceOrderResult{Order: order, RedirectURL: &session.RedirectURL}, nil
}

// failOrder marks the order failed and releases the lock; used when
// the payment leg could not even start.
func (s *CheckoutServiceImpl) failOrder(ctx context.Context, order *domain.Order) {
	if err := s.store.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusFailed, domain.PaymentStatusFailed); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to mark order failed")
	}
	s.releaseLock(ctx, order.UserID)
}

func (s *CheckoutServiceImpl) releaseLock(ctx context.Context, userID string) {
	if err := s.locker.Release(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to release checkout lock")
	}
}

func (s *CheckoutServiceImpl) clearCart(ctx context.Context, userID string) {
	if err := s.cart.Clear(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to clear cart")
	}
}

// snapshotOrderItems freezes prices and spreads the coupon discount
// across items in proportion to their price, correcting the last item
// so the parts sum exactly to the quote's discount.
func snapshotOrderItems(items []domain.CartSnapshotItem, coupon *domain.Coupon, quote money.Quote) []domain.OrderItem {
	out := make([]domain.OrderItem, len(items))

	var couponID *string
	if coupon != nil {
		id := coupon.ID
		couponID = &id
	}

	remaining := quote.Discount
	for i, item := range items {
		price := item.EffectivePrice().Round(2)
		var discount decimal.Decimal
		if i == len(items)-1 {
			discount = remaining
		} else if quote.Subtotal.IsPositive() {
			discount = quote.Discount.Mul(price).Div(quote.Subtotal).Round(2)
			remaining = remaining.Sub(discount)
		}
		out[i] = domain.OrderItem{
			CourseID:    item.CourseID,
			CourseTitle: item.CourseTitle,
			CoursePrice: price,
			Discount:    discount,
			CouponID:    couponID,
		}
	}
	return out
}

func filterItems(items []domain.CartSnapshotItem, courseIDs []string) []domain.CartSnapshotItem {
	wanted := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = true
	}
	var out []domain.CartSnapshotItem
	for _, item := range items {
		if wanted[item.CourseID] {
			out = append(out, item)
		}
	}
	return out
}

func courseIDs(items []domain.OrderItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.CourseID
	}
	return ids
}

func sessionDescription(order *domain.Order, meta domain.SessionMetadata) string {
	if meta.IsWalletTopUp {
		return "Wallet top-up"
	}
	if len(order.Items) == 1 {
		return order.Items[0].CourseTitle
	}
	return fmt.Sprintf("%d courses", len(order.Items))
}

var _ CheckoutService = (*CheckoutServiceImpl)(nil)
