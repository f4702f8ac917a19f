package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/util"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: writer, topic: topic}
}

// PublishEvent publishes an event to Kafka. The current trace context
// travels in the message headers.
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, span := util.GetTracer().Start(ctx, "publish "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("kafka"),
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}
	otel.GetTextMapPropagator().Inject(ctx, NewMessageCarrier(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	util.GetLogger().Debug("Published event",
		zap.String("topic", p.topic),
		zap.String("key", key),
		zap.String("type", fmt.Sprintf("%T", event)))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader  messageReader
	topic   string
	groupID string
	// newBackOff paces redelivery of a message whose handler failed
	newBackOff func() backoff.BackOff
	// maxRedeliveries bounds the attempts after the first before a message is dropped
	maxRedeliveries uint64
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string, maxRedeliveries uint64) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader:          reader,
		topic:           topic,
		groupID:         groupID,
		newBackOff:      defaultRedeliveryBackOff,
		maxRedeliveries: maxRedeliveries,
	}
}

func defaultRedeliveryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming starts consuming messages with a handler. A message is
// committed once its handler succeeds. Failures are retried in place, up to
// maxRedeliveries times, so later messages never overtake an uncommitted one.
// A message that fails permanently or exhausts its retries is logged and
// committed past.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	log := util.GetLogger().With(zap.String("topic", c.topic), zap.String("group", c.groupID))
	log.Info("Starting Kafka consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Consumer context cancelled, stopping...")
				return ctx.Err()
			}
			log.Error("Error fetching message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		var dropped error
		err = backoff.RetryNotify(
			func() error {
				err := c.process(ctx, msg, handler)
				var perm *backoff.PermanentError
				if errors.As(err, &perm) {
					dropped = perm.Err
					return nil
				}
				return err
			},
			backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRedeliveries), ctx),
			func(err error, wait time.Duration) {
				log.Warn("Handler failed, retrying message",
					zap.Int64("offset", msg.Offset),
					zap.Duration("wait", wait),
					zap.Error(err))
			},
		)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("Giving up on message after repeated failures",
				zap.Int64("offset", msg.Offset),
				zap.Uint64("retries", c.maxRedeliveries),
				zap.Error(err))
		} else if dropped != nil {
			log.Error("Dropping message after permanent failure",
				zap.Int64("offset", msg.Offset),
				zap.Error(dropped))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("Error committing message", zap.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler MessageHandler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewMessageCarrier(&msg))

	spanCtx, span := util.GetTracer().Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("kafka"),
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
