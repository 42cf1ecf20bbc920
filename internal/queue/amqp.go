package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"showtime-scraper/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends tasks to the broker queue consumed by a serving process.
type Publisher struct {
	url    string
	queue  string
	logger *logrus.Logger
}

func NewPublisher(cfg config.QueueConfig, logger *logrus.Logger) *Publisher {
	return &Publisher{url: cfg.AMQPURL, queue: cfg.QueueName, logger: logger}
}

// Publish dials, declares the durable queue and publishes one persistent
// message. Connections are not reused; publishing is infrequent.
func (p *Publisher) Publish(ctx context.Context, task Task) error {
	body, err := Encode(task)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"task":  task.String(),
		"queue": p.queue,
	}).Info("Task published")
	return nil
}

// Consumer moves broker messages into the local pool.
type Consumer struct {
	url     string
	queue   string
	enqueue func(Task) error
	logger  *logrus.Logger
}

func NewConsumer(cfg config.QueueConfig, enqueue func(Task) error, logger *logrus.Logger) *Consumer {
	return &Consumer{url: cfg.AMQPURL, queue: cfg.QueueName, enqueue: enqueue, logger: logger}
}

// Run consumes until ctx is done, reconnecting with backoff when the broker
// goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.WithError(err).WithField("retryIn", backoff.String()).Warn("Failed to dial broker")
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.WithError(err).Warn("Consume loop ended, reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(1, 0, false); err != nil {
		c.logger.WithError(err).Warn("Failed to set QoS")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.WithField("queue", c.queue).Info("Consuming tasks from broker")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch c.handle(d.Body) {
			case deliveryAck:
				_ = d.Ack(false)
			case deliveryRequeue:
				// the pool is saturated; give it a moment before the broker redelivers
				sleepCtx(ctx, time.Second)
				_ = d.Nack(false, true)
			case deliveryReject:
				_ = d.Nack(false, false)
			}
		}
	}
}

type deliveryAction int

const (
	deliveryAck deliveryAction = iota
	deliveryRequeue
	deliveryReject
)

func (c *Consumer) handle(body []byte) deliveryAction {
	task, err := Decode(body)
	if err != nil {
		c.logger.WithError(err).Warn("Rejecting malformed task message")
		return deliveryReject
	}

	err = c.enqueue(task)
	switch {
	case err == nil:
		return deliveryAck
	case errors.Is(err, ErrAlreadyQueued):
		c.logger.WithField("task", task.String()).Info("Task already pending, dropping duplicate")
		return deliveryAck
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrQueueStopped):
		return deliveryRequeue
	default:
		c.logger.WithError(err).WithField("task", task.String()).Warn("Rejecting task")
		return deliveryReject
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
