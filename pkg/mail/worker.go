package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	workerPrefetch  = 20
	reconnectBase   = time.Second
	reconnectCeil   = 30 * time.Second
	deliveryTimeout = 30 * time.Second
)

// Worker consumes the email queue, renders templates, and delivers the
// results. Broken messages are rejected without requeueing so a poison
// payload cannot wedge the queue.
type Worker struct {
	url       string
	sender    Sender
	templates TemplateProvider
	logger    *slog.Logger
}

// NewWorker builds a queue worker.
func NewWorker(url string, sender Sender, templates TemplateProvider, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{url: url, sender: sender, templates: templates, logger: logger}
}

// Run consumes until ctx is cancelled, reconnecting with backoff when the
// broker connection drops.
func (w *Worker) Run(ctx context.Context) error {
	backoff := reconnectBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(w.url)
		if err != nil {
			w.logger.Error("mail worker dial failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < reconnectCeil {
				backoff *= 2
			}
			continue
		}
		backoff = reconnectBase

		err = w.consume(ctx, conn)
		_ = conn.Close()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		w.logger.Error("mail worker consume loop ended", "error", err)
	}
}

func (w *Worker) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(workerPrefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := ch.QueueDeclare(sendQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	deliveries, err := ch.Consume(sendQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := w.handle(ctx, d.Body); err != nil {
				w.logger.Error("email delivery failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (w *Worker) handle(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	html, err := w.templates.Render(ev.Template, ev.Data)
	if err != nil {
		return fmt.Errorf("render %q: %w", ev.Template, err)
	}
	sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	return w.sender.Send(sendCtx, Message{
		To:       ev.To,
		ToName:   ev.ToName,
		Subject:  ev.Subject,
		HTMLBody: html,
	})
}
