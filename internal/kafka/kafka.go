// Package kafka carries snapshot events over a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"expenselog/internal/events"
)

const handlerAttempts = 3

type Client struct {
	writer  *kafka.Writer
	brokers []string
	groupID string
	topic   string

	mu     sync.Mutex
	reader *kafka.Reader
}

var _ events.Broker = (*Client)(nil)

// NewClient returns a client publishing to topic. Consumers join groupID.
func NewClient(brokers []string, topic, groupID string) (*Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	return &Client{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		brokers: brokers,
		groupID: groupID,
		topic:   topic,
	}, nil
}

// consumer joins the group on first use; publish-only processes never do.
func (c *Client) consumer() *kafka.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader == nil {
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.brokers,
			Topic:    c.topic,
			GroupID:  c.groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
			MaxWait:  time.Second,
		})
	}
	return c.reader
}

// PublishSnapshot writes msg keyed by the store name, so all events for one
// store land on the same partition in order.
func (c *Client) PublishSnapshot(ctx context.Context, msg *events.SnapshotReplaced) error {
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Store),
		Value: data,
		Time:  msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	slog.InfoContext(ctx, "Published snapshot event",
		"id", msg.ID,
		"generation", msg.Generation,
		"topic", c.topic)
	return nil
}

// ConsumeSnapshots reads the topic until ctx is done. Offsets are committed
// after the handler succeeds; a handler that keeps failing is retried a few
// times and then skipped, since a later snapshot supersedes it anyway.
func (c *Client) ConsumeSnapshots(ctx context.Context, handler events.Handler) error {
	reader := c.consumer()
	slog.InfoContext(ctx, "Started consuming snapshot events", "topic", c.topic, "group", c.groupID)
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		msg, err := events.SnapshotReplacedFromJSON(m.Value)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err, "offset", m.Offset)
		} else if err := handleWithRetry(ctx, handler, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.ErrorContext(ctx, "Dropping snapshot event after retries",
				"error", err, "id", msg.ID, "generation", msg.Generation)
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit offset: %w", err)
		}
	}
}

func handleWithRetry(ctx context.Context, handler events.Handler, msg *events.SnapshotReplaced) error {
	var err error
	for attempt := 0; attempt < handlerAttempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	return err
}

func (c *Client) Close() error {
	err := c.writer.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader != nil {
		err = errors.Join(err, c.reader.Close())
	}
	return err
}
