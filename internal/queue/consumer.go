package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const lockLogFile = "lock_access.log"

// LockAccessConsumer appends every lock.access message to
// <Dir>/lock_access.log as one JSON line.
type LockAccessConsumer struct {
	URL string
	Dir string
	Log zerolog.Logger
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff capped at 30s.  It returns ctx.Err().
func (c *LockAccessConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("lock consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn().Err(err).Msg("lock consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *LockAccessConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("lock consumer: set qos failed")
	}
	if _, err := ch.QueueDeclare(LockAccessQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(LockAccessQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.Log.Error().Err(err).Str("message_id", d.MessageId).Msg("lock consumer: handle failed")
				_ = d.Nack(false, false) // do not requeue a message that cannot be decoded or written
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one lock.access body and appends it to the log file.
func (c *LockAccessConsumer) Handle(body []byte) error {
	var ev LockAccessEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.BookingID == 0 {
		return errors.New("missing booking_id")
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.Dir, lockLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	logger := zerolog.New(f)
	logger.Info().
		Uint64("booking_id", ev.BookingID).
		Uint64("asset_id", ev.AssetID).
		Str("renter", ev.Renter.String()).
		Str("status", string(ev.Status)).
		Bool("granted", ev.Granted).
		Time("check_in", ev.CheckIn).
		Time("check_out", ev.CheckOut).
		Time("changed_at", ev.ChangedAt).
		Msg("lock access")
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
