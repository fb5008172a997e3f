// Package events publishes checkout domain events to Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/beautivra/internal/domain/checkout"
)

// EventOrderPaid is the event_type header of order.paid messages.
const EventOrderPaid = "order.paid"

// Writer is the subset of *kafka.Writer used by Publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ checkout.Publisher = (*Publisher)(nil)

// Publisher writes checkout events to a topic, keyed by order id so all
// events of an order land on one partition.
type Publisher struct {
	w Writer
}

// NewWriter returns a kafka writer for the given brokers and topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewPublisher wraps w.
func NewPublisher(w Writer) *Publisher {
	return &Publisher{w: w}
}

func (p *Publisher) PublishOrderPaid(ctx context.Context, e checkout.OrderPaid) error {
	msg := kafka.Message{
		Key:   []byte(e.OrderID),
		Value: EncodeOrderPaid(e),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPaid)},
		},
		Time: e.PaidAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s for order %s", EventOrderPaid, e.OrderID)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// EncodeOrderPaid renders the message value.
func EncodeOrderPaid(ev checkout.OrderPaid) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("event")
	e.Str(EventOrderPaid)
	e.FieldStart("order_id")
	e.Str(ev.OrderID)
	e.FieldStart("order_number")
	e.Str(ev.OrderNumber)
	e.FieldStart("session_id")
	e.Str(ev.SessionID)
	e.FieldStart("customer_email")
	e.Str(ev.CustomerEmail)
	e.FieldStart("amount")
	e.Raw([]byte(ev.Amount.StringFixed(2)))
	e.FieldStart("currency")
	e.Str(ev.Currency)
	e.FieldStart("paid_at")
	e.Str(ev.PaidAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}
