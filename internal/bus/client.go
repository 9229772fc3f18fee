package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"go.railyard.dev/internal/common/metrics"
	"go.railyard.dev/internal/rop"
)

// Config holds NATS connection and stream settings.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string

	// Stream is the JetStream stream name
	Stream string

	// Subjects captured by the stream
	Subjects []string

	// MaxAge is the maximum age of messages in the stream
	MaxAge time.Duration

	// AckWait is the time to wait for message acknowledgment
	AckWait time.Duration

	// MaxDeliver is the maximum number of delivery attempts
	MaxDeliver int

	// RetryDelay is the redelivery delay after a retryable failure
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Stream == "" {
		c.Stream = "RAILYARD"
	}
	if len(c.Subjects) == 0 {
		c.Subjects = []string{"catalog.>"}
	}
	if c.MaxAge == 0 {
		c.MaxAge = 24 * time.Hour
	}
	if c.AckWait == 0 {
		c.AckWait = 30 * time.Second
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 5
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 5 * time.Second
	}
	return c
}

// Client is a JetStream connection with its stream ensured.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  Config
}

var _ Publisher = (*Client)(nil)

// Connect dials NATS and creates or updates the configured stream.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	conn, err := nats.Connect(cfg.URL,
		nats.Name("railyard"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  cfg.Subjects,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    cfg.MaxAge,
		Replicas:  1,
		Discard:   jetstream.DiscardOld,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
	}

	slog.Info("Connected to NATS", "url", cfg.URL, "stream", cfg.Stream, "subjects", cfg.Subjects)
	return &Client{conn: conn, js: js, cfg: cfg}, nil
}

// Publish wraps payload in an Envelope and publishes it. The envelope id
// doubles as the JetStream deduplication id.
func (c *Client) Publish(ctx context.Context, subject string, payload any) error {
	env, err := NewEnvelope(subject, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: make(nats.Header)}
	msg.Header.Set(jetstream.MsgIDHeader, env.ID)

	_, err = c.js.PublishMsg(ctx, msg)
	metrics.RecordPublish(subject, err)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Consume runs handler for every message on filterSubject through a durable
// consumer named name. It blocks until ctx is cancelled.
func (c *Client) Consume(ctx context.Context, name, filterSubject string, handler Handler) error {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
		MaxAckPending: 1000,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	slog.Info("Starting NATS consumer", "consumer", name, "subject", filterSubject)
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		c.handle(ctx, name, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	<-ctx.Done()
	cc.Stop()
	slog.Info("Consumer stopped", "consumer", name)
	return nil
}

func (c *Client) handle(ctx context.Context, consumer string, msg jetstream.Msg, handler Handler) {
	var (
		env    Envelope
		result rop.Result[struct{}]
	)
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		result = rop.Failure[struct{}](rop.ValidationError(CodeInvalidMessage, err.Error()))
	} else {
		result = safeHandle(ctx, env, handler)
	}

	action := Disposition(result)
	metrics.BusMessagesHandled.WithLabelValues(consumer, action.String()).Inc()
	var err error
	switch action {
	case Ack:
		err = msg.Ack()
	case Drop:
		err = msg.Term()
	default:
		err = msg.NakWithDelay(c.cfg.RetryDelay)
	}

	if first, failed := result.FirstError(); failed {
		slog.WarnContext(ctx, "Message handler failed",
			"consumer", consumer,
			"subject", msg.Subject(),
			"action", action.String(),
			"error", first.String())
	}
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		slog.ErrorContext(ctx, "Failed to settle message", "consumer", consumer, "action", action.String(), "error", err)
	}
}

func safeHandle(ctx context.Context, env Envelope, handler Handler) (result rop.Result[struct{}]) {
	defer func() {
		if p := recover(); p != nil {
			result = rop.FromHTTPError[struct{}](rop.UnhandledException(fmt.Sprint(p)))
		}
	}()
	return handler(ctx, env)
}

// Connected reports whether the connection is up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

// Close drains and closes the connection.
func (c *Client) Close() error {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}
