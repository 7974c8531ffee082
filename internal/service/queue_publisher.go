// Package service holds the broker publisher used by the engine to
// announce committed operations.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/smartrent-ledger/internal/model"
	"github.com/iliyamo/smartrent-ledger/internal/queue"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a connection and a channel on it.  The returned closer
// closes both.
type dialFunc func(url string) (channel, func() error, error)

func dialAMQP(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// Publisher sends persistent JSON messages to the durable ledger.events and
// lock.access queues.  The connection is opened lazily and reopened after a
// failed publish.  Publisher is safe for concurrent use.
type Publisher struct {
	url  string
	dial dialFunc
	log  zerolog.Logger
	now  func() time.Time

	mu      sync.Mutex
	ch      channel
	closeFn func() error
}

func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{url: url, dial: dialAMQP, log: log, now: time.Now}
}

// PublishEvent publishes a committed engine event.  The event id becomes
// the AMQP message id so consumers can deduplicate redeliveries.
func (p *Publisher) PublishEvent(ctx context.Context, ev model.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.publish(ctx, queue.LedgerEventsQueue, amqp.Publishing{
		MessageId: ev.ID,
		Type:      string(ev.Kind),
		Timestamp: ev.At,
		Body:      body,
	})
}

// PublishLockAccess publishes the lock state for a booking.
func (p *Publisher) PublishLockAccess(ctx context.Context, b model.Booking) error {
	body, err := json.Marshal(queue.NewLockAccessEvent(b))
	if err != nil {
		return fmt.Errorf("marshal lock event: %w", err)
	}
	return p.publish(ctx, queue.LockAccessQueue, amqp.Publishing{
		MessageId: fmt.Sprintf("booking-%d-%s", b.ID, b.Status),
		Type:      "lock.access",
		Timestamp: p.now().UTC(),
		Body:      body,
	})
}

func (p *Publisher) publish(ctx context.Context, queueName string, msg amqp.Publishing) error {
	msg.ContentType = "application/json"
	msg.DeliveryMode = amqp.Persistent

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		ch, closeFn, err := p.dial(p.url)
		if err != nil {
			return fmt.Errorf("rabbitmq dial: %w", err)
		}
		for _, name := range []string{queue.LedgerEventsQueue, queue.LockAccessQueue} {
			if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
				_ = ch.Close()
				_ = closeFn()
				return fmt.Errorf("rabbitmq declare %s: %w", name, err)
			}
		}
		p.ch, p.closeFn = ch, closeFn
	}

	if err := p.ch.PublishWithContext(ctx, "", queueName, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("rabbitmq publish %s: %w", queueName, err)
	}
	p.log.Debug().Str("queue", queueName).Str("message_id", msg.MessageId).Msg("published")
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeFn != nil {
		_ = p.closeFn()
	}
	p.ch, p.closeFn = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
