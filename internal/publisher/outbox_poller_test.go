package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/repository"
	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type MockOutboxSource struct {
	OutboxEvents  []*repository.OutboxEvent
	StaleOrders   []*domain.Order
	ProcessedID   int64
	FailedOrders  []uuid.UUID
	UpdateErr     error
	ListStaleErr  error
	UnprocessedCt int
}

func (m *MockOutboxSource) GetUnprocessedEvents(_ context.Context, _ int) ([]*repository.OutboxEvent, error) {
	m.UnprocessedCt++
	if len(m.OutboxEvents) > 0 {
		ev := []*repository.OutboxEvent{m.OutboxEvents[0]}
		m.OutboxEvents = nil
		return ev, nil
	}
	return nil, nil
}

func (m *MockOutboxSource) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.ProcessedID = id
	return nil
}

func (m *MockOutboxSource) ListStalePendingOrders(_ context.Context, _ time.Time, _ int) ([]*domain.Order, error) {
	if m.ListStaleErr != nil {
		return nil, m.ListStaleErr
	}
	return m.StaleOrders, nil
}

func (m *MockOutboxSource) UpdateOrderStatus(_ context.Context, id uuid.UUID, _ domain.OrderStatus, _ domain.PaymentStatus) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.FailedOrders = append(m.FailedOrders, id)
	return nil
}

type MockPollerLocker struct {
	Released []string
}

func (m *MockPollerLocker) Acquire(_ context.Context, _ string) (string, error) { return "", nil }

func (m *MockPollerLocker) Release(_ context.Context, userID string) error {
	m.Released = append(m.Released, userID)
	return nil
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	topicConfigs := []kafkaGo.TopicConfig{{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}}

	err = controllerConn.CreateTopics(topicConfigs...)
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}

	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, "order-events")
	time.Sleep(5 * time.Second)

	orderID := uuid.NewString()
	mockRepo := &MockOutboxSource{
		OutboxEvents: []*repository.OutboxEvent{
			{
				ID:          1,
				AggregateID: orderID,
				EventType:   "order.completed",
				Payload:     json.RawMessage(`{"order_id":"` + orderID + `","user_id":"user-1"}`),
				CreatedAt:   time.Now(),
			},
		},
	}

	writer := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(brokerAddr),
		Topic:        "order-events",
		Balancer:     &kafkaGo.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	defer writer.Close()

	poller := &OutboxPoller{
		eventTick:    time.Second,
		recoveryTick: time.Minute,
		staleAfter:   time.Hour,
		batchSize:    100,
		repo:         mockRepo,
		locker:       &MockPollerLocker{},
		writer:       writer,
		logger:       zerolog.Nop(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    "order-events",
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)

	assert.Equal(t, orderID, string(msg.Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, orderID, payload["order_id"])
	assert.Equal(t, "user-1", payload["user_id"])

	assert.Equal(t, int64(1), mockRepo.ProcessedID)
}

func TestSweepStaleOrders_FailsAndReleasesLocks(t *testing.T) {
	staleOrder := &domain.Order{
		ID:            uuid.New(),
		UserID:        "user-1",
		Amount:        decimal.NewFromInt(40),
		OrderStatus:   domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     time.Now().Add(-2 * time.Hour),
	}
	mockRepo := &MockOutboxSource{StaleOrders: []*domain.Order{staleOrder}}
	locker := &MockPollerLocker{}

	poller := &OutboxPoller{
		staleAfter: time.Hour,
		batchSize:  100,
		repo:       mockRepo,
		locker:     locker,
		logger:     zerolog.Nop(),
	}

	poller.sweepStaleOrders(context.Background())

	require.Len(t, mockRepo.FailedOrders, 1)
	assert.Equal(t, staleOrder.ID, mockRepo.FailedOrders[0])
	assert.Equal(t, []string{"user-1"}, locker.Released)
}

func TestSweepStaleOrders_UpdateFailureSkipsRelease(t *testing.T) {
	staleOrder := &domain.Order{
		ID:          uuid.New(),
		UserID:      "user-1",
		OrderStatus: domain.OrderStatusPending,
		CreatedAt:   time.Now().Add(-2 * time.Hour),
	}
	mockRepo := &MockOutboxSource{
		StaleOrders: []*domain.Order{staleOrder},
		UpdateErr:   assert.AnError,
	}
	locker := &MockPollerLocker{}

	poller := &OutboxPoller{
		staleAfter: time.Hour,
		batchSize:  100,
		repo:       mockRepo,
		locker:     locker,
		logger:     zerolog.Nop(),
	}

	poller.sweepStaleOrders(context.Background())

	assert.Empty(t, locker.Released, "lock stays held while the order is still pending")
}
