package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/resilience"
)

// ErrSkip tells the consumer a message can never be processed. The offset
// is committed so the message is not redelivered.
var ErrSkip = errors.New("skip message")

// Handler processes one message value. Any error other than ErrSkip makes
// the consumer retry the same message; later messages wait behind it.
type Handler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	handler Handler
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewConsumer joins the configured consumer group on topic. A group that
// has never committed starts from the oldest retained message.
func NewConsumer(cfg config.KafkaConfig, topic string, h Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, h)
}

func newConsumer(r messageReader, topic string, h Handler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: h,
		retry: resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Run fetches and dispatches messages until ctx is cancelled, then closes
// the reader.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			// cancelled mid-retry; the uncommitted message is redelivered
			// to the group after restart
			c.logger.Info("consumer stopping", "reason", err, "offset", msg.Offset)
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

// handle runs the handler until it succeeds or skips the message. kafka-go
// does not redeliver within a session, so moving on after a failure would
// let the next commit step over this offset. It returns only ctx's error.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	for round := 1; ; round++ {
		err := resilience.Retry(ctx, "kafka-handler", c.retry, func(ctx context.Context) error {
			err := c.handler(ctx, msg.Key, msg.Value)
			if errors.Is(err, ErrSkip) {
				return resilience.Permanent(err)
			}
			return err
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrSkip):
			c.logger.Warn("skipping message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}
		c.logger.Error("handler keeps failing, holding partition",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"round", round,
			"error", err,
		)
		t := time.NewTimer(c.retry.MaxDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// DecodeJSON unmarshals value into T. Malformed values wrap ErrSkip.
func DecodeJSON[T any](value []byte) (T, error) {
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return out, fmt.Errorf("%w: decoding message: %v", ErrSkip, err)
	}
	return out, nil
}
