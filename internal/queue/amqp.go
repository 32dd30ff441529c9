package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/smscampaigns/internal/logger"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes and consumes dispatch jobs on a durable RabbitMQ queue.
type AMQPQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	mu         sync.Mutex
	logger     *logger.Logger
	MaxRetries int
}

func NewAMQPQueue(url string, l *logger.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		CampaignSends, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPQueue{conn: conn, ch: ch, logger: l, MaxRetries: defaultMaxRetries}, nil
}

func (q *AMQPQueue) Publish(ctx context.Context, job DispatchJob) error {
	return q.publish(job, 0)
}

func (q *AMQPQueue) publish(job DispatchJob, retries int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.Publish(
		"",
		CampaignSends,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{retryHeader: int32(retries)},
			Body:         body,
		},
	)
}

// Consume runs handler for each delivery until ctx is cancelled or the channel closes.
// Failed jobs are republished with an incremented retry header, up to MaxRetries.
func (q *AMQPQueue) Consume(ctx context.Context, handler Handler) error {
	if err := q.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.ch.Consume(
		CampaignSends,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			q.handleDelivery(ctx, d, handler)
		}
	}
}

func (q *AMQPQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	var job DispatchJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.logger.Warn("Dropping invalid dispatch job", zap.Error(err))
		d.Ack(false)
		return
	}

	err := handler(ctx, job)
	if err == nil {
		d.Ack(false)
		return
	}

	retries := retryCount(d.Headers)
	q.logger.Warn("Dispatch job failed",
		zap.String("campaign_id", job.CampaignID.String()),
		zap.Int("attempt", retries+1),
		zap.Error(err))

	if retries < q.MaxRetries {
		if perr := q.publish(job, retries+1); perr != nil {
			q.logger.Error("Failed to requeue dispatch job", zap.Error(perr))
			d.Nack(false, true)
			return
		}
	} else {
		q.logger.Error("Dispatch job permanently failed", zap.String("campaign_id", job.CampaignID.String()))
	}
	d.Ack(false)
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	q.ch.Close()
	return q.conn.Close()
}

var _ Publisher = (*AMQPQueue)(nil)
