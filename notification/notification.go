package notification

import (
	"context"
	"time"

	"marketplace-svc/circuitbreaker"
	"marketplace-svc/kafka"
	"marketplace-svc/middleware"
	"marketplace-svc/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier publishes domain events. Delivery is best-effort: callers never
// see a failure.
type Notifier interface {
	Notify(ctx context.Context, event models.Event)
}

// KafkaNotifier publishes events to a single topic keyed by seller so one
// seller's events stay ordered on a partition.
type KafkaNotifier struct {
	producer kafka.MessageSender
	topic    string
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewKafkaNotifier(producer kafka.MessageSender, topic string, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		breaker:  circuitbreaker.NewCircuitBreaker("kafka-notifier", 5, 30*time.Second),
		logger:   logger,
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event models.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	var partition int32
	var offset int64
	err := n.breaker.Execute(ctx, func() error {
		var sendErr error
		partition, offset, sendErr = kafka.PublishEvent(ctx, n.producer, n.topic, event.SellerID.String(), event)
		return sendErr
	})

	traceID := middleware.GetTraceID(ctx)
	if err != nil {
		n.logger.Warn("Failed to publish event",
			zap.String("trace_id", traceID),
			zap.String("event_type", event.EventType),
			zap.String("seller_id", event.SellerID.String()),
			zap.Error(err),
		)
		return
	}

	n.logger.Info("Event published",
		zap.String("trace_id", traceID),
		zap.String("event_type", event.EventType),
		zap.String("topic", n.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, models.Event) {}
