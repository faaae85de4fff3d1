package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const sendQueueName = "email.send"

// Event describes an email to be rendered and delivered asynchronously.
type Event struct {
	To         string            `json:"to"`
	ToName     string            `json:"toName"`
	Subject    string            `json:"subject"`
	Template   string            `json:"template"`
	Data       map[string]string `json:"data"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
}

// Queue enqueues email events for background delivery.
type Queue interface {
	Publish(ctx context.Context, ev Event) error
}

// AMQPQueue publishes events to a durable RabbitMQ queue. Each publish
// opens a fresh connection so a broker restart never leaves the publisher
// holding a dead channel; errors are returned so callers can choose to
// ignore them without interrupting the request flow.
type AMQPQueue struct {
	url string
}

// NewAMQPQueue builds a publisher for the given broker URL.
func NewAMQPQueue(url string) *AMQPQueue {
	return &AMQPQueue{url: url}
}

// Publish marshals the event and publishes it as a persistent message.
func (q *AMQPQueue) Publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(sendQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	if ev.EnqueuedAt.IsZero() {
		ev.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.EnqueuedAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", sendQueueName, false, false, pub); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// MemoryQueue collects events in memory. Used in tests.
type MemoryQueue struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

// NewMemoryQueue builds an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// FailWith makes every subsequent Publish return err.
func (q *MemoryQueue) FailWith(err error) {
	q.mu.Lock()
	q.fail = err
	q.mu.Unlock()
}

// Publish records an event.
func (q *MemoryQueue) Publish(_ context.Context, ev Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.events = append(q.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (q *MemoryQueue) Events() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Event, len(q.events))
	copy(out, q.events)
	return out
}
