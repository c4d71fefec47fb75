package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/logger"
	"github.com/AnTengye/rollingquote/pkg/metrics"
)

// Order event types published on the order stream.
const (
	EventOrderPendingPayment = "order.pending_payment"
	EventOrderPaid           = "order.paid"
)

// OrderEvent is the record downstream consumers (fulfilment, accounting) see.
type OrderEvent struct {
	Type           string               `json:"type"`
	OrderID        string               `json:"order_id"`
	Tenant         string               `json:"tenant,omitempty"`
	Status         model.OrderStatus    `json:"status"`
	Pairs          []model.LanguagePair `json:"pairs,omitempty"`
	TotalWords     int                  `json:"total_words"`
	AmountCents    int64                `json:"amount_cents"`
	Currency       string               `json:"currency,omitempty"`
	SessionID      string               `json:"checkout_session_id,omitempty"`
	PaymentEventID string               `json:"payment_event_id,omitempty"`
	At             time.Time            `json:"at"`
}

// NewOrderEvent snapshots o for publishing.
func NewOrderEvent(eventType string, o *model.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:           eventType,
		OrderID:        o.ID,
		Tenant:         o.Tenant,
		Status:         o.Status,
		Pairs:          o.Pairs,
		TotalWords:     o.TotalWords,
		AmountCents:    o.AmountCents,
		Currency:       o.Currency,
		SessionID:      o.CheckoutSessionID,
		PaymentEventID: o.PaymentEventID,
		At:             at,
	}
}

// OrderEventPublisher announces order transitions. Publishing is best effort:
// the order record stays the source of truth and a lost event is not retried.
type OrderEventPublisher interface {
	Publish(ctx context.Context, ev OrderEvent)
	Close() error
}

// NopPublisher discards events. It is used when no stream is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) {}
func (NopPublisher) Close() error { return nil }

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events to a Kafka topic keyed by order id, so
// every event for one order lands on the same partition in order.
type KafkaPublisher struct {
	writer  kafkaMessageWriter
	timeout time.Duration
	metrics *metrics.Registry
}

func NewKafkaPublisher(brokers []string, topic string, reg *metrics.Registry) *KafkaPublisher {
	return NewKafkaPublisherWith(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, reg)
}

// NewKafkaPublisherWith is only for tests to inject a fake writer.
func NewKafkaPublisherWith(w kafkaMessageWriter, reg *metrics.Registry) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second, metrics: reg}
}

func (k *KafkaPublisher) Publish(ctx context.Context, ev OrderEvent) {
	if err := k.publish(ctx, ev); err != nil {
		k.metrics.OrderEvents.WithLabelValues("failed").Inc()
		logger.Warn(ctx, "order event not published", "type", ev.Type, "order_id", ev.OrderID, "error", err)
		return
	}
	k.metrics.OrderEvents.WithLabelValues("published").Inc()
}

func (k *KafkaPublisher) publish(ctx context.Context, ev OrderEvent) error {
	b, err := json.Marshal(&ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	// The caller's request may already be finishing; the write gets its own deadline.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.timeout)
	defer cancel()
	return k.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }
