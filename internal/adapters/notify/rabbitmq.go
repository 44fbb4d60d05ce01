package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"staybook/internal/domain"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes events to a durable topic exchange, routed by event type.
type RabbitMQ struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
	now  func() time.Time
}

func DialRabbitMQ(url, exchange string) (*RabbitMQ, error) {
	r := &RabbitMQ{url: url, exchange: exchange, now: time.Now}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

func newRabbitMQWithChannel(exchange string, ch channel) *RabbitMQ {
	return &RabbitMQ{exchange: exchange, ch: ch, now: time.Now}
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(r.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", r.exchange, err)
	}
	r.conn, r.ch = conn, ch
	log.Info().Str("exchange", r.exchange).Msg("amqp connected")
	return nil
}

// ensure reconnects after the broker dropped the connection.
func (r *RabbitMQ) ensure() error {
	if r.url == "" || (r.conn != nil && !r.conn.IsClosed()) {
		return nil
	}
	return r.connect()
}

func (r *RabbitMQ) publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensure(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.ch.PublishWithContext(ctx, r.exchange, e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Type:         e.Type,
		Timestamp:    e.OccurredAt,
		Body:         body,
	})
}

func (r *RabbitMQ) BookingCreated(ctx context.Context, b domain.Booking) error {
	return r.publish(ctx, newEvent(KeyBookingCreated, BookingData{Booking: b}, r.now()))
}

func (r *RabbitMQ) BookingStatusChanged(ctx context.Context, b domain.Booking, from domain.BookingStatus) error {
	return r.publish(ctx, newEvent(KeyBookingStatusChanged, BookingData{Booking: b, From: from}, r.now()))
}

func (r *RabbitMQ) ReviewAdded(ctx context.Context, rv domain.Review) error {
	return r.publish(ctx, newEvent(KeyReviewCreated, rv, r.now()))
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
