package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/lock"
	"github.com/rashinkp/byway-sub005/internal/repository"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// OutboxSource is the slice of the store the poller needs.
type OutboxSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	ListStalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, orderStatus domain.OrderStatus, paymentStatus domain.PaymentStatus) error
}

// OutboxPoller drains the outbox table to Kafka and sweeps orders
// stuck in PENDING past the stale timeout. Gateways that never send a
// terminal webhook (abandoned checkout tabs) would otherwise pin the
// user's lock forever.
type OutboxPoller struct {
	eventTick    time.Duration
	recoveryTick time.Duration
	staleAfter   time.Duration
	batchSize    int
	repo         OutboxSource
	locker       lock.Locker
	writer       *kafka.Writer
	logger       zerolog.Logger
}

func NewOutboxPoller(repo OutboxSource, locker lock.Locker, logger zerolog.Logger, staleAfter time.Duration, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: time.Second * 30,
		staleAfter:   staleAfter,
		batchSize:    100,
		repo:         repo,
		locker:       locker,
		writer:       w,
		logger:       logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.sweepStaleOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Error().Err(err).Msg("error closing kafka writer")
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.logger.Error().Err(err).Int64("event_id", event.ID).Msg("failed to publish outbox event")
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Error().Err(err).Int64("event_id", event.ID).Msg("failed to mark outbox event processed")
			continue
		}
	}
}

// sweepStaleOrders fails PENDING orders older than staleAfter and
// frees their holders' locks. Wallet payments settle synchronously, so
// anything this old is an abandoned gateway checkout.
func (p *OutboxPoller) sweepStaleOrders(ctx context.Context) {
	cutoff := time.Now().Add(-p.staleAfter)
	orders, err := p.repo.ListStalePendingOrders(ctx, cutoff, p.batchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to list stale pending orders")
		return
	}

	for _, order := range orders {
		p.logger.Info().
			Str("order_id", order.ID.String()).
			Time("created_at", order.CreatedAt).
			Msg("failing stale pending order")

		if err := p.repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusFailed, domain.PaymentStatusFailed); err != nil {
			p.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to fail stale order")
			continue
		}
		if err := p.locker.Release(ctx, order.UserID); err != nil {
			p.logger.Error().Err(err).Str("user_id", order.UserID).Msg("failed to release lock for stale order")
		}
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
