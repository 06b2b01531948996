// Package queue is the boundary to the external publishing worker. The
// service only enqueues; consuming and actually posting to the platforms
// happens elsewhere.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// PostScheduled is the message handed to the publishing worker. The worker
// re-reads the post by id, so the payload stays minimal.
type PostScheduled struct {
	PostID      string     `json:"post_id"`
	UserID      string     `json:"user_id"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type Publisher interface {
	PublishPostScheduled(ctx context.Context, event PostScheduled) error
	Close() error
}

// AMQPPublisher publishes persistent JSON messages to a durable queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

func NewAMQPPublisher(url, queueName string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, queue: queueName}, nil
}

func (p *AMQPPublisher) PublishPostScheduled(ctx context.Context, event PostScheduled) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal post scheduled event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish post scheduled event: %w", err)
	}

	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Noop stands in when no broker is configured; the worker then polls the
// posts table directly.
type Noop struct{}

func (Noop) PublishPostScheduled(context.Context, PostScheduled) error { return nil }

func (Noop) Close() error { return nil }
