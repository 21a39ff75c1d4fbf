package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/lock"
	"github.com/rashinkp/byway-sub005/internal/repository"
	"github.com/rashinkp/byway-sub005/internal/wallet"
	"github.com/rs/zerolog"
)

// SettlementService applies verified gateway events to orders. Webhook
// handlers verify and normalize; all state changes happen here.
type SettlementService interface {
	HandleEvent(ctx context.Context, event *domain.GatewayEvent) error
	ManualUpdateStatus(ctx context.Context, orderID uuid.UUID, orderStatus domain.OrderStatus, paymentStatus domain.PaymentStatus) error
}

type SettlementServiceImpl struct {
	store  repository.Store
	wallet *wallet.Service
	locker lock.Locker
	logger zerolog.Logger
}

func NewSettlementService(store repository.Store, walletSvc *wallet.Service, locker lock.Locker, logger zerolog.Logger) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		store:  store,
		wallet: walletSvc,
		locker: locker,
		logger: logger,
	}
}

// HandleEvent deduplicates by gateway event id, then dispatches on
// kind. Gateways deliver at least once; a replay is acknowledged
// without reprocessing. When settlement fails after the dedup marker
// was written, the marker is cleared so the gateway's redelivery gets
// another attempt.
func (s *SettlementServiceImpl) HandleEvent(ctx context.Context, event *domain.GatewayEvent) error {
	if event.Kind == domain.EventOther {
		s.logger.Debug().
			Str("event_type", event.EventType).
			Str("gateway", string(event.Gateway)).
			Msg("ignoring unhandled gateway event")
		return nil
	}

	err := s.store.RecordEvent(ctx, event.EventID, event.EventType)
	if errors.Is(err, repository.ErrDuplicateEvent) {
		s.logger.Info().
			Str("event_id", event.EventID).
			Str("event_type", event.EventType).
			Msg("duplicate gateway event, already processed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record gateway event: %w", err)
	}

	if err := s.applyEvent(ctx, event); err != nil {
		if cerr := s.store.ClearEvent(ctx, event.EventID); cerr != nil {
			s.logger.Error().Err(cerr).
				Str("event_id", event.EventID).
				Msg("failed to clear dedup marker, event will not be retried")
		}
		return err
	}
	return nil
}

func (s *SettlementServiceImpl) applyEvent(ctx context.Context, event *domain.GatewayEvent) error {
	order, err := s.findOrder(ctx, event)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			// an event for an order we never created is not retriable
			s.logger.Warn().
				Str("event_id", event.EventID).
				Str("payment_ref", event.PaymentRef).
				Msg("gateway event references unknown order")
			return nil
		}
		return err
	}

	switch event.Kind {
	case domain.EventCheckoutCompleted:
		return s.settleCompleted(ctx, order, event)
	case domain.EventPaymentFailed:
		return s.settleFailed(ctx, order)
	case domain.EventRefunded:
		return s.settleRefunded(ctx, order, event)
	}
	return nil
}

func (s *SettlementServiceImpl) findOrder(ctx context.Context, event *domain.GatewayEvent) (*domain.Order, error) {
	if event.Metadata.OrderID != nil {
		return s.store.GetOrderByID(ctx, *event.Metadata.OrderID)
	}
	return s.store.GetOrderByPaymentRef(ctx, event.PaymentRef)
}

func (s *SettlementServiceImpl) settleCompleted(ctx context.Context, order *domain.Order, event *domain.GatewayEvent) error {
	if order.OrderStatus == domain.OrderStatusCompleted {
		s.logger.Info().Str("order_id", order.ID.String()).Msg("order already settled")
		return nil
	}
	if !domain.CanTransitionOrder(order.OrderStatus, domain.OrderStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", IllegalTransitionError, order.OrderStatus, domain.OrderStatusCompleted)
	}

	gw := event.Gateway
	ref := event.PaymentRef

	// all settlement writes commit or roll back together; a redelivery
	// after a rollback replays the whole settlement from scratch, so an
	// interior failure can never leave a credit or ledger row behind
	err := s.store.WithinTransaction(ctx, func(tx repository.Tx) error {
		if event.Metadata.IsWalletTopUp {
			_, err := s.wallet.CreditTx(ctx, tx, tx, order.UserID, order.Amount, wallet.Entry{
				OrderID:   &order.ID,
				Type:      domain.TransactionTypeDeposit,
				Gateway:   &gw,
				Reference: &ref,
			})
			if err != nil {
				return fmt.Errorf("failed to credit wallet top-up: %w", err)
			}
		} else {
			for _, item := range order.Items {
				if err := tx.GrantEnrollment(ctx, order.UserID, item.CourseID); err != nil {
					// returning an error makes the gateway redeliver so
					// the grant is retried
					s.logger.Error().Err(err).
						Str("order_id", order.ID.String()).
						Str("course_id", item.CourseID).
						Msg("payment settled but enrollment grant failed")
					return fmt.Errorf("failed to grant enrollment for course %s: %w", item.CourseID, err)
				}
			}

			txn := &domain.Transaction{
				ID:             uuid.New(),
				UserID:         order.UserID,
				OrderID:        &order.ID,
				Amount:         order.Amount,
				Type:           domain.TransactionTypePayment,
				Status:         domain.TransactionStatusCompleted,
				PaymentGateway: &gw,
				TransactionID:  &ref,
			}
			if err := tx.CreateTransaction(ctx, txn); err != nil {
				return fmt.Errorf("failed to record payment transaction: %w", err)
			}
		}

		if err := tx.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusCompleted, domain.PaymentStatusCompleted); err != nil {
			return fmt.Errorf("failed to complete order: %w", err)
		}
		return publishOutbox(ctx, tx, "order.completed", order, domain.OrderStatusCompleted, domain.PaymentStatusCompleted)
	})
	if err != nil {
		return err
	}

	if event.Metadata.IsWalletTopUp {
		s.wallet.InvalidateBalance(order.UserID)
	}
	s.releaseLock(ctx, order.UserID)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("gateway", string(gw)).
		Bool("wallet_topup", event.Metadata.IsWalletTopUp).
		Msg("order settled")
	return nil
}

func (s *SettlementServiceImpl) settleFailed(ctx context.Context, order *domain.Order) error {
	if order.OrderStatus == domain.OrderStatusFailed {
		return nil
	}
	if order.OrderStatus.IsTerminal() || !domain.CanTransitionOrder(order.OrderStatus, domain.OrderStatusFailed) {
		s.logger.Warn().
			Str("order_id", order.ID.String()).
			Str("status", string(order.OrderStatus)).
			Msg("failure event for order past settlement, ignoring")
		return nil
	}

	err := s.store.WithinTransaction(ctx, func(tx repository.Tx) error {
		if err := tx.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusFailed, domain.PaymentStatusFailed); err != nil {
			return fmt.Errorf("failed to mark order failed: %w", err)
		}
		return publishOutbox(ctx, tx, "order.failed", order, domain.OrderStatusFailed, domain.PaymentStatusFailed)
	})
	if err != nil {
		return err
	}

	s.releaseLock(ctx, order.UserID)
	return nil
}

// settleRefunded credits the paid amount back to the wallet. Access to
// purchased courses is kept; the refund is a goodwill credit, not a
// revocation.
func (s *SettlementServiceImpl) settleRefunded(ctx context.Context, order *domain.Order, event *domain.GatewayEvent) error {
	if order.PaymentStatus == domain.PaymentStatusRefunded {
		return nil
	}
	if !domain.CanTransitionPayment(order.PaymentStatus, domain.PaymentStatusRefunded) {
		return fmt.Errorf("%w: payment %s -> %s", IllegalTransitionError, order.PaymentStatus, domain.PaymentStatusRefunded)
	}

	gw := event.Gateway
	ref := event.PaymentRef
	err := s.store.WithinTransaction(ctx, func(tx repository.Tx) error {
		_, err := s.wallet.CreditTx(ctx, tx, tx, order.UserID, order.Amount, wallet.Entry{
			OrderID:   &order.ID,
			Type:      domain.TransactionTypeRefund,
			Gateway:   &gw,
			Reference: &ref,
		})
		if err != nil {
			return fmt.Errorf("failed to credit refund: %w", err)
		}

		if err := tx.UpdateOrderStatus(ctx, order.ID, order.OrderStatus, domain.PaymentStatusRefunded); err != nil {
			return fmt.Errorf("failed to mark order refunded: %w", err)
		}
		return publishOutbox(ctx, tx, "order.refunded", order, order.OrderStatus, domain.PaymentStatusRefunded)
	})
	if err != nil {
		return err
	}
	s.wallet.InvalidateBalance(order.UserID)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("amount", order.Amount.StringFixed(2)).
		Msg("refund credited to wallet")
	return nil
}

// ManualUpdateStatus supports the admin status endpoint. Transitions
// still go through the same guards as gateway-driven ones.
func (s *SettlementServiceImpl) ManualUpdateStatus(ctx context.Context, orderID uuid.UUID, orderStatus domain.OrderStatus, paymentStatus domain.PaymentStatus) error {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.OrderStatus != orderStatus && !domain.CanTransitionOrder(order.OrderStatus, orderStatus) {
		return fmt.Errorf("%w: %s -> %s", IllegalTransitionError, order.OrderStatus, orderStatus)
	}
	if order.PaymentStatus != paymentStatus && !domain.CanTransitionPayment(order.PaymentStatus, paymentStatus) {
		return fmt.Errorf("%w: payment %s -> %s", IllegalTransitionError, order.PaymentStatus, paymentStatus)
	}
	return s.store.UpdateOrderStatus(ctx, orderID, orderStatus, paymentStatus)
}

// publishOutbox writes the fan-out row inside the same transaction as
// the status update, so a committed settlement always carries its event.
func publishOutbox(ctx context.Context, outbox repository.OutboxRepository, eventType string, order *domain.Order, os domain.OrderStatus, ps domain.PaymentStatus) error {
	snapshot := *order
	snapshot.OrderStatus = os
	snapshot.PaymentStatus = ps
	if err := outbox.CreateOutboxEvent(ctx, order.ID.String(), eventType, orderEventPayload(&snapshot)); err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return nil
}

func (s *SettlementServiceImpl) releaseLock(ctx context.Context, userID string) {
	if err := s.locker.Release(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to release checkout lock")
	}
}

var _ SettlementService = (*SettlementServiceImpl)(nil)
