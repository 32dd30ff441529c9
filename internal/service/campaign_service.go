// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/model"
	"github.com/unclebandit/smscampaigns/internal/queue"
	"github.com/unclebandit/smscampaigns/internal/repository"
	"github.com/unclebandit/smscampaigns/internal/templates"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxNameLength   = 120
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ContactRepo  repository.ContactRepositoryInterface
	OutboundRepo repository.OutboundMessageRepositoryInterface
	Queue        queue.Publisher
	Logger       *logger.Logger
	// Now is overridable in tests.
	Now func() time.Time
}

type CreateCampaignInput struct {
	Name        string
	Type        model.CampaignType
	Message     string
	TemplateID  string
	Contacts    []model.Contact
	Groups      []string
	ScheduledAt *time.Time
}

// UpdateCampaignInput carries the fields to change; nil means unchanged.
type UpdateCampaignInput struct {
	Name        *string
	Message     *string
	Contacts    []model.Contact
	ScheduledAt *time.Time
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

// PreviewInput selects the contact a preview is rendered for.
// Contact wins over ContactIndex; with neither, the first recipient is used.
type PreviewInput struct {
	ContactIndex     *int
	Contact          *model.Contact
	OverrideTemplate *string
}

func (s *CampaignService) CreateCampaign(ctx context.Context, ownerID string, in CreateCampaignInput) (*model.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, appErrors.NewValidation("unknown campaign type %q", in.Type)
	}

	message, err := resolveMessage(in.Message, in.TemplateID, in.Type)
	if err != nil {
		return nil, err
	}

	contacts, err := validateContacts(in.Contacts)
	if err != nil {
		return nil, err
	}
	if len(in.Groups) > 0 {
		grouped, err := s.ContactRepo.ListByGroups(ctx, ownerID, in.Groups)
		if err != nil {
			return nil, fmt.Errorf("loading group contacts: %w", err)
		}
		contacts = mergeContacts(contacts, grouped)
	}
	if len(contacts) == 0 {
		return nil, appErrors.NewValidation("campaign needs at least one contact")
	}

	c := &model.Campaign{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       name,
		Type:       in.Type,
		Status:     model.StatusDraft,
		Message:    message,
		TemplateID: in.TemplateID,
	}
	c.SetContacts(contacts)

	if in.ScheduledAt != nil {
		if err := s.checkSchedule(*in.ScheduledAt); err != nil {
			return nil, err
		}
		at := in.ScheduledAt.UTC()
		c.ScheduledAt = &at
		c.Status = model.StatusScheduled
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log().Info("Campaign created",
		zap.String("campaign_id", c.ID.String()),
		zap.String("owner_id", ownerID),
		zap.Int("recipients", c.RecipientCount))
	return c, nil
}

// ListCampaigns fetches the owner's campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, ownerID string, page, pageSize int, status, campaignType string) ([]model.Campaign, map[string]int, error) {
	page, pageSize = normalizePage(page, pageSize)
	if status != "" && !model.CampaignStatus(status).Valid() {
		return nil, nil, appErrors.NewValidation("unknown status %q", status)
	}
	if campaignType != "" && !model.CampaignType(campaignType).Valid() {
		return nil, nil, appErrors.NewValidation("unknown campaign type %q", campaignType)
	}

	ptrs, total, err := s.CampaignRepo.List(ctx, ownerID, repository.CampaignFilter{
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
		Status: status,
		Type:   campaignType,
	})
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	return campaigns, pagination(page, pageSize, total), nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, ownerID string, id uuid.UUID) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.OutboundRepo.Stats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading delivery stats: %w", err)
	}
	return &CampaignDetails{Campaign: c, Stats: stats}, nil
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, ownerID string, id uuid.UUID, in UpdateCampaignInput) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Editable() {
		return nil, fmt.Errorf("%w: campaign in status %s cannot be edited", appErrors.ErrInvalidTransition, c.Status)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		c.Name = name
	}
	if in.Message != nil {
		if strings.TrimSpace(*in.Message) == "" {
			return nil, appErrors.NewValidation("message cannot be empty")
		}
		c.Message = *in.Message
	}
	if in.Contacts != nil {
		contacts, err := validateContacts(in.Contacts)
		if err != nil {
			return nil, err
		}
		if len(contacts) == 0 {
			return nil, appErrors.NewValidation("campaign needs at least one contact")
		}
		c.SetContacts(contacts)
	}
	if in.ScheduledAt != nil {
		if err := s.checkSchedule(*in.ScheduledAt); err != nil {
			return nil, err
		}
		at := in.ScheduledAt.UTC()
		c.ScheduledAt = &at
		c.Status = model.StatusScheduled
	}

	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DuplicateCampaign copies a campaign into a new draft with fresh counters.
func (s *CampaignService) DuplicateCampaign(ctx context.Context, ownerID string, id uuid.UUID) (*model.Campaign, error) {
	src, err := s.CampaignRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	contacts := make([]model.Contact, len(src.Contacts))
	copy(contacts, src.Contacts)

	dup := &model.Campaign{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       copyName(src.Name),
		Type:       src.Type,
		Status:     model.StatusDraft,
		Message:    src.Message,
		TemplateID: src.TemplateID,
	}
	dup.SetContacts(contacts)

	if err := s.CampaignRepo.Create(ctx, dup); err != nil {
		return nil, err
	}
	s.log().Info("Campaign duplicated",
		zap.String("source_id", src.ID.String()),
		zap.String("campaign_id", dup.ID.String()))
	return dup, nil
}

// SendCampaign queues the campaign for dispatch and marks it sent.
// When the job cannot be queued the campaign is marked failed.
func (s *CampaignService) SendCampaign(ctx context.Context, ownerID string, id uuid.UUID) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(model.StatusSent) {
		return nil, fmt.Errorf("%w: campaign cannot be sent in status %s", appErrors.ErrInvalidTransition, c.Status)
	}
	if c.RecipientCount == 0 {
		return nil, appErrors.NewValidation("campaign has no recipients")
	}

	job := queue.DispatchJob{CampaignID: c.ID, OwnerID: ownerID}
	if err := s.Queue.Publish(ctx, job); err != nil {
		s.log().Error("Failed to enqueue campaign", zap.String("campaign_id", c.ID.String()), zap.Error(err))
		c.Status = model.StatusFailed
		if uerr := s.CampaignRepo.Update(ctx, c); uerr != nil {
			s.log().Error("Failed to mark campaign failed", zap.String("campaign_id", c.ID.String()), zap.Error(uerr))
		}
		return nil, fmt.Errorf("failed to enqueue campaign: %w", err)
	}

	now := s.now()
	c.Status = model.StatusSent
	c.SentAt = &now
	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.log().Info("Campaign sent",
		zap.String("campaign_id", c.ID.String()),
		zap.Int("recipients", c.RecipientCount))
	return c, nil
}

func (s *CampaignService) ScheduleCampaign(ctx context.Context, ownerID string, id uuid.UUID, at time.Time) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(model.StatusScheduled) {
		return nil, fmt.Errorf("%w: campaign cannot be scheduled in status %s", appErrors.ErrInvalidTransition, c.Status)
	}
	if err := s.checkSchedule(at); err != nil {
		return nil, err
	}

	at = at.UTC()
	c.ScheduledAt = &at
	c.Status = model.StatusScheduled
	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) DeleteCampaign(ctx context.Context, ownerID string, id uuid.UUID) error {
	if err := s.CampaignRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.log().Info("Campaign deleted", zap.String("campaign_id", id.String()), zap.String("owner_id", ownerID))
	return nil
}

// RenderPreview renders the campaign message (or an override) for one contact.
func (s *CampaignService) RenderPreview(ctx context.Context, ownerID string, id uuid.UUID, in PreviewInput) (string, error) {
	c, err := s.CampaignRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return "", err
	}

	body := c.Message
	if in.OverrideTemplate != nil && strings.TrimSpace(*in.OverrideTemplate) != "" {
		body = *in.OverrideTemplate
	}
	if strings.TrimSpace(body) == "" {
		return "", appErrors.NewValidation("template cannot be empty")
	}

	var contact model.Contact
	switch {
	case in.Contact != nil:
		contact = *in.Contact
	case in.ContactIndex != nil:
		i := *in.ContactIndex
		if i < 0 || i >= len(c.Contacts) {
			return "", appErrors.NewValidation("contact index %d out of range", i)
		}
		contact = c.Contacts[i]
	case len(c.Contacts) > 0:
		contact = c.Contacts[0]
	default:
		return "", appErrors.NewValidation("campaign has no contacts to preview")
	}

	return templates.Render(body, contact), nil
}

func (s *CampaignService) checkSchedule(at time.Time) error {
	if !at.After(s.now()) {
		return appErrors.NewValidation("scheduled_at must be in the future")
	}
	return nil
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CampaignService) log() *logger.Logger {
	if s.Logger == nil {
		return logger.NewNop()
	}
	return s.Logger
}

func validateName(name string) error {
	if name == "" {
		return appErrors.NewValidation("name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return appErrors.NewValidation("name must be at most %d characters", maxNameLength)
	}
	return nil
}

// resolveMessage falls back to the catalog body when no message was typed.
func resolveMessage(message, templateID string, campaignType model.CampaignType) (string, error) {
	if templateID != "" {
		tpl, ok := templates.Get(templateID)
		if !ok {
			return "", appErrors.NewValidation("unknown template %q", templateID)
		}
		if tpl.Category != campaignType {
			return "", appErrors.NewValidation("template %q is not a %s template", templateID, campaignType)
		}
		if strings.TrimSpace(message) == "" {
			message = tpl.Body
		}
	}
	if strings.TrimSpace(message) == "" {
		return "", appErrors.NewValidation("message is required")
	}
	return message, nil
}

func validateContacts(contacts []model.Contact) ([]model.Contact, error) {
	out := make([]model.Contact, 0, len(contacts))
	for i, c := range contacts {
		c.Phone = model.NormalizePhone(strings.TrimSpace(c.Phone))
		if !model.ValidPhone(c.Phone) {
			return nil, appErrors.NewValidation("contact %d: invalid phone number %q", i+1, c.Phone)
		}
		if c.Average != nil && (*c.Average < 0 || *c.Average > 20) {
			return nil, appErrors.NewValidation("contact %d: average must be between 0 and 20", i+1)
		}
		out = append(out, c)
	}
	return mergeContacts(out, nil), nil
}

// mergeContacts appends extra to base, keeping the first contact seen for each phone.
func mergeContacts(base, extra []model.Contact) []model.Contact {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]model.Contact, 0, len(base)+len(extra))
	for _, list := range [][]model.Contact{base, extra} {
		for _, c := range list {
			if seen[c.Phone] {
				continue
			}
			seen[c.Phone] = true
			out = append(out, c)
		}
	}
	return out
}

func copyName(name string) string {
	dup := name + " (copy)"
	if len([]rune(dup)) > maxNameLength {
		return name
	}
	return dup
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func pagination(page, pageSize, total int) map[string]int {
	return map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
}
