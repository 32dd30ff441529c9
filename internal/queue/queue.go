package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/smscampaigns/internal/logger"
)

// CampaignSends is the queue dispatch jobs are published on.
const CampaignSends = "campaign_sends"

const defaultMaxRetries = 3

// ErrNoSubscribers is returned when a job is published before any handler is registered.
var ErrNoSubscribers = errors.New("no subscribers for " + CampaignSends)

// DispatchJob asks the dispatcher to deliver a sent campaign.
type DispatchJob struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	OwnerID    string    `json:"owner_id"`
}

type Handler func(ctx context.Context, job DispatchJob) error

// Publisher is what the campaign service needs from a queue.
type Publisher interface {
	Publish(ctx context.Context, job DispatchJob) error
}

// InMemoryQueue delivers jobs to in-process handlers with retry.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   []Handler
	wg         sync.WaitGroup
	logger     *logger.Logger
	MaxRetries int
	Backoff    time.Duration
}

func NewInMemoryQueue(l *logger.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		logger:     l,
		MaxRetries: defaultMaxRetries,
		Backoff:    500 * time.Millisecond,
	}
}

// jobAttempt wraps a job with retry info
type jobAttempt struct {
	job        DispatchJob
	retryCount int
}

// Publish hands the job to every subscriber. It does not wait for processing.
func (q *InMemoryQueue) Publish(_ context.Context, job DispatchJob) error {
	q.mu.Lock()
	handlers := append([]Handler(nil), q.handlers...)
	q.mu.Unlock()

	if len(handlers) == 0 {
		return ErrNoSubscribers
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go q.process(handler, jobAttempt{job: job})
	}
	return nil
}

func (q *InMemoryQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Wait blocks until every published job has finished or given up.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// process runs the handler with linear backoff between attempts.
func (q *InMemoryQueue) process(handler Handler, attempt jobAttempt) {
	defer q.wg.Done()
	fields := []zap.Field{zap.String("campaign_id", attempt.job.CampaignID.String())}

	for {
		err := handler(context.Background(), attempt.job)
		if err == nil {
			q.logger.Info("Dispatch job processed", fields...)
			return
		}

		attempt.retryCount++
		q.logger.Warn("Dispatch job failed",
			append(fields, zap.Int("attempt", attempt.retryCount), zap.Error(err))...)

		if attempt.retryCount > q.MaxRetries {
			q.logger.Error("Dispatch job permanently failed", append(fields, zap.Int("attempts", attempt.retryCount))...)
			return
		}
		time.Sleep(time.Duration(attempt.retryCount) * q.Backoff)
	}
}

var _ Publisher = (*InMemoryQueue)(nil)
