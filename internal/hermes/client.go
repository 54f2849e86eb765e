// Package hermes publishes frontdesk events on NATS and subscribes to the
// control subjects the service reacts to.
package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Handler receives the subject and raw payload of one message.
type Handler func(subject string, data []byte)

// Client is the service's NATS connection. It satisfies engine.Publisher.
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewClient connects to url. The connection keeps retrying in the
// background, so a broker that is down at startup does not fail the call.
func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("frontdesk"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

// Publish JSON-encodes event onto subject.
func (c *Client) Publish(subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers every message on subject to h. Every replica receives
// it; use this for cache invalidation and other fan-out signals.
func (c *Client) Subscribe(subject string, h Handler) error {
	sub, err := c.conn.Subscribe(subject, guard(c.logger, h))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.track(sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// QueueSubscribe delivers each message on subject to one member of queue.
// Side effects that must happen once per event, such as paging on-call,
// go through a queue group.
func (c *Client) QueueSubscribe(subject, queue string, h Handler) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, guard(c.logger, h))
	if err != nil {
		return fmt.Errorf("queue subscribe %s (%s): %w", subject, queue, err)
	}
	c.track(sub)
	c.logger.Info("subscribed", "subject", subject, "queue", queue)
	return nil
}

func (c *Client) track(sub *nats.Subscription) {
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
}

// guard adapts h to a nats handler. A panicking handler is logged and the
// message dropped; it must not take down the connection's dispatch loop.
func guard(logger *slog.Logger, h Handler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("event handler panicked",
					"subject", msg.Subject,
					"panic", p,
					"stack", string(debug.Stack()),
				)
			}
		}()
		h(msg.Subject, msg.Data)
	}
}

// Close drains subscriptions, flushes pending publishes and closes the
// connection.
func (c *Client) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	if err := c.conn.FlushTimeout(2 * time.Second); err != nil {
		c.logger.Warn("nats flush on close", "error", err)
	}
	c.conn.Close()
}
