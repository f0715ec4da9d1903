package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-svc/middleware"
	"marketplace-svc/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var errMalformed = errors.New("malformed confirmation message")

// WebhookHandler processes a provider confirmation. It reports whether the
// event was handled.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, event models.WebhookEvent) bool
}

func InitConsumer(broker string, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer([]string{broker}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// ConfirmationConsumer feeds payment confirmations published by the provider
// bridge into the confirmation handler.
type ConfirmationConsumer struct {
	handler    WebhookHandler
	logger     *zap.Logger
	maxRetries int
	backoff    time.Duration
}

func NewConfirmationConsumer(handler WebhookHandler, logger *zap.Logger) *ConfirmationConsumer {
	return &ConfirmationConsumer{
		handler:    handler,
		logger:     logger,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Start consumes partition 0 of topic until ctx is done.
func (c *ConfirmationConsumer) Start(ctx context.Context, consumer sarama.Consumer, topic string) error {
	partitionConsumer, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	c.logger.Info("Kafka consumer started", zap.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Kafka consumer stopped", zap.String("topic", topic))
			return nil
		case message, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			if err := c.handleMessageWithRetry(ctx, message); err != nil {
				c.logger.Error("Failed to handle message after retries", zap.Error(err))
			}
		case err, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			c.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func (c *ConfirmationConsumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		err := c.handleMessage(message)
		if err == nil || errors.Is(err, errMalformed) {
			return err
		}
		lastErr = err
		if attempt < c.maxRetries {
			backoff := time.Duration(attempt) * c.backoff
			c.logger.Warn("Retrying message handling",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *ConfirmationConsumer) handleMessage(message *sarama.ConsumerMessage) error {
	carrier := saramaHeaderCarrierConsumer(message.Headers)
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), carrier)

	ctx, span := otel.Tracer("marketplace-service").Start(ctx, "ConsumePaymentConfirmation")
	defer span.End()

	var event models.WebhookEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.String("payment.id", event.PaymentID.String()),
	)

	if !c.handler.HandleWebhook(ctx, event) {
		return fmt.Errorf("confirmation for payment %s was not processed", event.PaymentID)
	}

	c.logger.Info("Payment confirmation consumed",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("payment_id", event.PaymentID.String()),
		zap.Int64("offset", message.Offset),
	)
	return nil
}
