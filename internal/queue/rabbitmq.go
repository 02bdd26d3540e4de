// Package queue feeds async transcript jobs from RabbitMQ into the dispatcher.
package queue

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bssilva06/yourtranscript/internal/engine"
	"github.com/bssilva06/yourtranscript/internal/engine/jobs"
	"github.com/bssilva06/yourtranscript/internal/toolutil"
)

// DefaultQueue is the queue async job commands are read from.
const DefaultQueue = "transcript.extract.cmd"

// AsyncHandler runs one async job. *jobs.Dispatcher satisfies it.
type AsyncHandler interface {
	HandleAsync(ctx context.Context, job jobs.AsyncJobRequest) jobs.Response
}

// Acknowledger is the subset of amqp.Delivery the consumer needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer reads AsyncJobRequest messages from a durable queue.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewConsumer dials amqpURL and declares queueName with prefetch 1.
func NewConsumer(amqpURL, queueName string) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{conn: conn, channel: ch, queue: queueName}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context, h AsyncHandler) error {
	msgs, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	slog.Info("queue: consuming", slog.String("queue", c.queue))
	return c.consume(ctx, h, msgs)
}

// consume handles deliveries one at a time. A job that has started runs to
// completion after ctx is cancelled; a delivery received after cancellation
// is requeued untouched.
func (c *Consumer) consume(ctx context.Context, h AsyncHandler, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("queue %s: delivery channel closed", c.queue)
			}
			if ctx.Err() != nil {
				if err := d.Nack(false, true); err != nil {
					slog.Warn("queue: requeue on shutdown failed", slog.Any("error", err))
				}
				return nil
			}
			HandleMessage(context.WithoutCancel(ctx), h, d.Body, &d)
		}
	}
}

// HandleMessage runs the job in body and acknowledges it exactly once.
// Jobs are never requeued: the callback attempt already happened, successful or not.
func HandleMessage(ctx context.Context, h AsyncHandler, body []byte, ack Acknowledger) {
	engine.IncrQueueMessages()

	job, err := toolutil.DecodeJSON[jobs.AsyncJobRequest](bytes.NewReader(body))
	if err != nil {
		slog.Warn("queue: dropping malformed message", slog.Int("bytes", len(body)), slog.Any("error", err))
		if err := ack.Nack(false, false); err != nil {
			slog.Warn("queue: nack failed", slog.Any("error", err))
		}
		return
	}

	resp := h.HandleAsync(ctx, job)
	slog.Info("queue: job handled",
		slog.String("job_id", job.JobID),
		slog.Int("status", resp.Status))

	if err := ack.Ack(false); err != nil {
		slog.Warn("queue: ack failed", slog.String("job_id", job.JobID), slog.Any("error", err))
	}
}

// Close releases the channel and connection.
func (c *Consumer) Close() {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			slog.Debug("queue: channel close", slog.Any("error", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			slog.Debug("queue: connection close", slog.Any("error", err))
		}
	}
}
