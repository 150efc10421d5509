package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures     = 5
	openTimeout     = 30 * time.Second
	maxBackoff      = 30 * time.Second
	publishAttempts = 3
	publishTimeout  = 5 * time.Second
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	errMissingUser = errors.New("ledger event without user_id")
)

// Client publishes and consumes LedgerEvents on a durable direct exchange.
// Publishing goes through a circuit breaker so a dead broker costs callers a
// fast error instead of a timeout.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// liveChannel returns an open channel, redialing when the previous one died.
func (c *Client) liveChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}

	slog.Warn("AMQP channel closed, reconnecting", "exchange", c.exchangeName)
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c.channel, nil
}

// Publish sends the event, retrying connection errors with exponential
// backoff.
func (c *Client) Publish(ctx context.Context, event LedgerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", event.Kind, ErrCircuitOpen)
	}

	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}

		lastErr = c.publishOnce(ctx, body)
		if lastErr == nil {
			c.recordSuccess()
			slog.InfoContext(ctx, "Published ledger event",
				"kind", event.Kind,
				"user_id", event.UserID,
				"entity_id", event.EntityID,
				"exchange", c.exchangeName)
			return nil
		}

		c.recordFailure()
		if !isConnectionError(lastErr) || c.isCircuitOpen() {
			break
		}
		slog.WarnContext(ctx, "Publish failed, retrying", "attempt", attempt+1, "error", lastErr)
	}

	return fmt.Errorf("publish message: %w", lastErr)
}

func (c *Client) publishOnce(ctx context.Context, body []byte) error {
	channel, err := c.liveChannel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Consume delivers events to handler until ctx ends. A broken connection is
// redialed with backoff; a handler error requeues the delivery.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, LedgerEvent) error) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "Consumer interrupted, reconnecting", "error", err, "backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "Reconnect failed", "error", err)
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, LedgerEvent) error, connected func()) error {
	channel, err := c.liveChannel()
	if err != nil {
		return err
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()

	slog.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			event, err := LedgerEventFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(ctx, event); err != nil {
				slog.ErrorContext(ctx, "Failed to handle ledger event",
					"error", err,
					"kind", event.Kind,
					"user_id", event.UserID)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && !errors.Is(err, amqp091.ErrClosed) {
			return err
		}
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}

	c.failMu.Lock()
	last := c.lastFailure
	c.failMu.Unlock()

	if time.Since(last) > openTimeout {
		// Let one probe through.
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)

	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			slog.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

// exponentialBackoff returns 1s doubled per attempt, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
