package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"storefront/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.pending[0]
	r.pending = r.pending[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestPublishOrderPlacedInjectsTraceHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	w := &fakeWriter{}
	publisher := NewEventPublisher(&Producer{writer: w, topic: "order-events"})

	ctx, span := tp.Tracer("test").Start(context.Background(), "place")
	err := publisher.PublishOrderPlaced(ctx, &models.Order{
		ID:         9,
		UserID:     3,
		TotalPrice: decimal.RequireFromString("12.50"),
		Items:      []models.OrderItem{{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("6.25")}},
	})
	span.End()

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-9", string(w.msgs[0].Key))
	assert.NotEmpty(t, NewMessageCarrier(&w.msgs[0]).Get("traceparent"))

	var event models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, models.EventTypeOrderPlaced, event.EventType)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, int64(9), event.OrderID)
	require.Len(t, event.Items, 1)
}

func TestPublishEventWrapsWriterError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, topic: "order-events"}

	err := NewEventPublisher(p).PublishOrderStatusChanged(context.Background(), &models.Order{ID: 1, Status: "Shipped"})

	assert.ErrorContains(t, err, "broker down")
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestStartConsumingRetriesUntilHandled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}}, cancel: cancel}
	c := &Consumer{reader: r, topic: "identity-events", newBackOff: fastBackOff, maxRedeliveries: 5}

	attempts := map[int64]int{}
	err := c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		attempts[msg.Offset]++
		if msg.Offset == 1 && attempts[msg.Offset] < 3 {
			return errors.New("database unavailable")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, attempts[1])
	assert.Equal(t, 1, attempts[2])
	require.Len(t, r.committed, 2)
	assert.Equal(t, int64(1), r.committed[0].Offset)
}

func TestStartConsumingSkipsPermanentFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{pending: []kafka.Message{{Offset: 1, Value: []byte("not json")}}, cancel: cancel}
	c := &Consumer{reader: r, topic: "identity-events", newBackOff: fastBackOff, maxRedeliveries: 5}

	calls := 0
	_ = c.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		calls++
		return NewEventHandler().HandleMessage(ctx, msg)
	})

	assert.Equal(t, 1, calls)
	assert.Len(t, r.committed, 1)
}

func TestStartConsumingDropsMessageAfterMaxRedeliveries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}}, cancel: cancel}
	c := &Consumer{reader: r, topic: "identity-events", newBackOff: fastBackOff, maxRedeliveries: 3}

	attempts := map[int64]int{}
	err := c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		attempts[msg.Offset]++
		if msg.Offset == 1 {
			return errors.New("value too long for type character varying")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, attempts[1])
	assert.Equal(t, 1, attempts[2])
	require.Len(t, r.committed, 2)
	assert.Equal(t, int64(1), r.committed[0].Offset)
	assert.Equal(t, int64(2), r.committed[1].Offset)
}

func TestHandleMessageRoutesIdentityEvents(t *testing.T) {
	h := NewEventHandler()
	var got *models.IdentityEvent
	h.OnIdentityEvent(func(_ context.Context, e *models.IdentityEvent) error {
		got = e
		return nil
	})

	err := h.HandleMessage(context.Background(), kafka.Message{
		Value: []byte(`{"event_id":"e1","event_type":"user.deleted","data":{"id":"user_1"}}`),
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user_1", got.Data.ProviderID)
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	h := NewEventHandler()
	h.OnIdentityEvent(func(context.Context, *models.IdentityEvent) error {
		t.Fatal("unexpected call")
		return nil
	})

	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"session.created"}`)})

	assert.NoError(t, err)
}
