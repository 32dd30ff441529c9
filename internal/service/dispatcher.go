package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/model"
	"github.com/unclebandit/smscampaigns/internal/queue"
	"github.com/unclebandit/smscampaigns/internal/repository"
	"github.com/unclebandit/smscampaigns/internal/templates"
)

const defaultDispatchWorkers = 10

// Sender delivers one rendered SMS.
type Sender interface {
	Send(ctx context.Context, phone, content string) error
}

// LogSender stands in for an SMS gateway: it logs each message and reports success.
type LogSender struct {
	Logger *logger.Logger
}

func (s *LogSender) Send(_ context.Context, phone, content string) error {
	if s.Logger != nil {
		s.Logger.Info("SMS sent", zap.String("phone", phone), zap.Int("length", len(content)))
	}
	return nil
}

// Dispatcher delivers every recipient of a campaign once.
type Dispatcher struct {
	CampaignRepo repository.CampaignRepositoryInterface
	OutboundRepo repository.OutboundMessageRepositoryInterface
	Sender       Sender
	Logger       *logger.Logger
	Workers      int
}

type deliveryResult struct {
	delivered bool
	skipped   bool
	err       error
}

// Handle processes a dispatch job. Recipients already recorded as sent or
// failed are skipped, so a redelivered job never texts anyone twice.
// Only storage errors are returned; those make the queue retry the job.
func (d *Dispatcher) Handle(ctx context.Context, job queue.DispatchJob) error {
	log := d.log().With(zap.String("campaign_id", job.CampaignID.String()))

	c, err := d.CampaignRepo.GetByID(ctx, job.OwnerID, job.CampaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			log.Warn("Campaign disappeared before dispatch")
			return nil
		}
		return err
	}
	if c.Status == model.StatusFailed {
		log.Warn("Skipping dispatch of failed campaign")
		return nil
	}

	workers := d.Workers
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}

	jobs := make(chan model.Contact)
	results := make(chan deliveryResult)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for contact := range jobs {
				results <- d.deliver(ctx, c, contact)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, contact := range c.Contacts {
			select {
			case jobs <- contact:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var success, failure int
	var firstErr error
	for r := range results {
		switch {
		case r.err != nil:
			if firstErr == nil {
				firstErr = r.err
			}
		case r.skipped:
		case r.delivered:
			success++
		default:
			failure++
		}
	}

	if success > 0 || failure > 0 {
		if err := d.CampaignRepo.AddDeliveryCounts(ctx, c.ID, success, failure); err != nil {
			return fmt.Errorf("updating delivery counts: %w", err)
		}
	}
	log.Info("Campaign dispatched", zap.Int("sent", success), zap.Int("failed", failure))

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (d *Dispatcher) deliver(ctx context.Context, c *model.Campaign, contact model.Contact) deliveryResult {
	content := templates.Render(c.Message, contact)

	msg, _, err := d.OutboundRepo.CreateIfAbsent(ctx, c.ID, contact.Phone, content)
	if err != nil {
		return deliveryResult{err: err}
	}
	if msg.Status != model.DeliveryPending {
		return deliveryResult{skipped: true}
	}

	if sendErr := d.Sender.Send(ctx, contact.Phone, content); sendErr != nil {
		d.log().Warn("SMS delivery failed",
			zap.String("campaign_id", c.ID.String()),
			zap.String("phone", contact.Phone),
			zap.Error(sendErr))
		if err := d.OutboundRepo.UpdateStatus(ctx, msg.ID, model.DeliveryFailed, sendErr.Error()); err != nil {
			return deliveryResult{err: err}
		}
		return deliveryResult{}
	}

	if err := d.OutboundRepo.UpdateStatus(ctx, msg.ID, model.DeliverySent, ""); err != nil {
		return deliveryResult{err: err}
	}
	return deliveryResult{delivered: true}
}

func (d *Dispatcher) log() *logger.Logger {
	if d.Logger == nil {
		return logger.NewNop()
	}
	return d.Logger
}
