package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/queue"
)

const (
	exchangeName = "photoeditor.direct"
	exchangeType = "direct"
	routingKey   = "process"

	dlxName   = "photoeditor.dlx"
	dlqName   = "process_jobs.dlq"
	queueName = "process_jobs"

	reconnectDelay = 2 * time.Second
	publishTimeout = 5 * time.Second
)

// envelope is the wire format for a processing request: just the job ID.
// The worker reads everything else from the repository.
type envelope struct {
	JobID uuid.UUID `json:"job_id"`
}

var _ queue.Enqueuer = (*Publisher)(nil)

// Publisher publishes processing requests to RabbitMQ with publisher confirms.
type Publisher struct {
	url     string
	conn    *amqplib.Connection
	channel *amqplib.Channel
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a RabbitMQ publisher and declares the exchange, the
// quorum work queue and its dead-letter pair.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	p := &Publisher{url: url, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	go p.watchConnection()
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqplib.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, exchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(dlxName, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqName, "", dlxName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
	}

	args := amqplib.Table{
		"x-dead-letter-exchange": dlxName,
		"x-queue-type":           "quorum",
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, args); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher initialized",
		zap.String("exchange", exchangeName),
		zap.String("queue", queueName),
	)
	return nil
}

// watchConnection monitors the connection and reconnects on failure.
func (p *Publisher) watchConnection() {
	for {
		p.mu.RLock()
		conn := p.conn
		closed := p.closed
		p.mu.RUnlock()

		if closed {
			return
		}

		errCh := conn.NotifyClose(make(chan *amqplib.Error, 1))
		err, ok := <-errCh
		if !ok {
			return // clean close
		}
		p.logger.Warn("RabbitMQ connection lost, reconnecting", zap.Error(err))

		for {
			p.mu.RLock()
			closed = p.closed
			p.mu.RUnlock()
			if closed {
				return
			}
			if err := p.connect(); err != nil {
				p.logger.Error("RabbitMQ reconnect failed", zap.Error(err))
				time.Sleep(reconnectDelay)
				continue
			}
			p.logger.Info("Reconnected to RabbitMQ")
			break
		}
	}
}

// Enqueue publishes a processing request and waits for the broker confirm.
func (p *Publisher) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("rabbitmq: channel unavailable")
	}

	body, err := json.Marshal(envelope{JobID: jobID})
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal envelope: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(pubCtx, exchangeName, routingKey, true, false,
		amqplib.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqplib.Persistent,
			MessageId:    jobID.String(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	ok, err := confirm.WaitContext(pubCtx)
	if err != nil {
		return fmt.Errorf("rabbitmq: await confirm: %w", err)
	}
	if !ok {
		return fmt.Errorf("rabbitmq: broker nacked publish for job %s", jobID)
	}
	return nil
}

// Healthy reports whether the broker connection is currently usable.
func (p *Publisher) Healthy() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("rabbitmq: publisher closed")
	}
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("rabbitmq: connection down")
	}
	return nil
}

// Close shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
