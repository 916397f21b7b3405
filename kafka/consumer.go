package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"huduma-svc/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// PaymentConfirmer is the piece of the order registry the consumer drives.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, checkoutRequestID string, success bool) ([]models.Order, error)
}

func InitConsumer(logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	brokers := []string{getEnv("KAFKA_BROKER", "localhost:9092")}

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// StartConsumer ingests payment results from the provider-facing topic and
// settles the matching checkout batches. This is the webhook stand-in lane;
// the admin HTTP lane goes through the same registry.
func StartConsumer(consumer sarama.Consumer, confirmer PaymentConfirmer, logger *zap.Logger) error {
	topic := getEnv("KAFKA_PAYMENT_TOPIC", TopicPaymentEvents)
	partitionConsumer, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	logger.Info("Kafka consumer started", zap.String("topic", topic))

	for {
		select {
		case message := <-partitionConsumer.Messages():
			if err := handleMessage(message, confirmer, logger); err != nil {
				logger.Error("Failed to handle message", zap.Error(err))
			}
		case err := <-partitionConsumer.Errors():
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

func handleMessage(message *sarama.ConsumerMessage, confirmer PaymentConfirmer, logger *zap.Logger) error {
	// Extract trace context from Kafka message headers
	var propagator propagation.TextMapPropagator = otel.GetTextMapPropagator()
	carrier := saramaHeaderCarrierConsumer(message.Headers)
	ctx := propagator.Extract(context.Background(), carrier)

	ctx, span := otel.Tracer("huduma-svc").Start(ctx, "ProcessPaymentEvent")
	defer span.End()

	traceID := ""
	if span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
	}

	var event models.PaymentResultEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal payment event: %w", err)
	}
	if event.CheckoutRequestID == "" {
		return fmt.Errorf("payment event missing checkout_request_id")
	}

	span.SetAttributes(
		attribute.String("checkout_request_id", event.CheckoutRequestID),
		attribute.Int("result_code", event.ResultCode),
	)

	logger.Info("Received payment event",
		zap.String("trace_id", traceID),
		zap.String("checkout_request_id", event.CheckoutRequestID),
		zap.Int("result_code", event.ResultCode),
	)

	settled, err := confirmer.ConfirmPayment(ctx, event.CheckoutRequestID, event.ResultCode == 0)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to confirm payment: %w", err)
	}

	logger.Info("Payment event applied",
		zap.String("trace_id", traceID),
		zap.String("checkout_request_id", event.CheckoutRequestID),
		zap.Int("orders", len(settled)),
	)
	return nil
}

// saramaHeaderCarrierConsumer implements the TextMapCarrier interface for Kafka headers (for consumer)
type saramaHeaderCarrierConsumer []*sarama.RecordHeader

func (c saramaHeaderCarrierConsumer) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c saramaHeaderCarrierConsumer) Set(key, value string) {
	// Not needed for extraction
}

func (c saramaHeaderCarrierConsumer) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
