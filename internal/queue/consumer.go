package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StartOrderConsumer connects to RabbitMQ, declares the order.created queue
// (durable) and appends one journal line per message to journalPath. It
// reconnects with exponential backoff until ctx is cancelled, then returns
// ctx.Err(). A message that cannot be handled is rejected without requeue.
func StartOrderConsumer(ctx context.Context, url, journalPath string, log *zap.Logger) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("order-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, journalPath, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("order-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, journalPath string, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("order-consumer: set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(OrderCreatedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(OrderCreatedQueue, "", false, false, false, false, nil)
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
			if err := handleMessage(journalPath, d.Body); err != nil {
				log.Error("order-consumer: handle message failed",
					zap.String("message_id", d.MessageId), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(journalPath string, body []byte) error {
	var ev OrderCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if dir := filepath.Dir(journalPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatJournalLine(ev)); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// formatJournalLine renders one human-friendly line per order.
func formatJournalLine(ev OrderCreatedEvent) string {
	places := make([]string, 0, len(ev.Tickets))
	for _, t := range ev.Tickets {
		places = append(places, fmt.Sprintf("%d:R%dS%d", t.MovieSessionID, t.Row, t.Seat))
	}
	movies := uniqueStrings(ev.Tickets, func(t EventTicket) string { return t.MovieTitle })
	return fmt.Sprintf("[%s] Order created | order_id=%d | user_id=%d | tickets=%d | movies=%q | places=[%s]\n",
		ev.CreatedAt.UTC().Format(time.RFC3339), ev.OrderID, ev.UserID, len(ev.Tickets),
		strings.Join(movies, ", "), strings.Join(places, ","))
}

func uniqueStrings(ts []EventTicket, f func(EventTicket) string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range ts {
		s := f(t)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
