package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
	"github.com/unclebandit/smscampaigns/internal/model"
	"github.com/unclebandit/smscampaigns/internal/queue"
	"github.com/unclebandit/smscampaigns/internal/repository"
)

// Mock campaign repository backed by a map
type MockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*model.Campaign
	seq       int
	UpdateErr error
}

func NewMockCampaignRepo(cs ...*model.Campaign) *MockCampaignRepo {
	m := &MockCampaignRepo{campaigns: map[uuid.UUID]*model.Campaign{}}
	for _, c := range cs {
		_ = m.Create(context.Background(), c)
	}
	return m
}

func (m *MockCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	c.RecipientCount = len(c.Contacts)
	c.CreatedAt = time.Date(2025, 1, 1, 0, 0, m.seq, 0, time.UTC)
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepo) GetByID(_ context.Context, ownerID string, id uuid.UUID) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return nil, appErrors.NewCampaignNotFound(id.String())
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepo) List(_ context.Context, ownerID string, f repository.CampaignFilter) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Campaign
	for _, c := range m.campaigns {
		if c.OwnerID != ownerID {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		if f.Type != "" && string(c.Type) != f.Type {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if f.Offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], len(all), nil
}

func (m *MockCampaignRepo) Update(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	old, ok := m.campaigns[c.ID]
	if !ok || old.OwnerID != c.OwnerID {
		return appErrors.NewCampaignNotFound(c.ID.String())
	}
	// counters belong to AddDeliveryCounts
	c.RecipientCount = len(c.Contacts)
	c.SuccessCount, c.FailureCount = old.SuccessCount, old.FailureCount
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepo) Delete(_ context.Context, ownerID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return appErrors.NewCampaignNotFound(id.String())
	}
	delete(m.campaigns, id)
	return nil
}

func (m *MockCampaignRepo) AddDeliveryCounts(_ context.Context, id uuid.UUID, success, failure int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id.String())
	}
	c.SuccessCount += success
	c.FailureCount += failure
	return nil
}

// Get reads a stored campaign without the owner check.
func (m *MockCampaignRepo) Get(id uuid.UUID) *model.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id]
}

type MockContactRepo struct {
	GroupContacts map[string][]model.Contact
	Stored        []model.StoredContact
	Upserted      []model.Contact
	UpsertErr     error
	Deleted       []uuid.UUID
}

func (m *MockContactRepo) Upsert(_ context.Context, _, _ string, contacts []model.Contact) (int, error) {
	if m.UpsertErr != nil {
		return 0, m.UpsertErr
	}
	m.Upserted = append(m.Upserted, contacts...)
	return len(contacts), nil
}

func (m *MockContactRepo) List(_ context.Context, _, group string, offset, limit int) ([]model.StoredContact, int, error) {
	var out []model.StoredContact
	for _, c := range m.Stored {
		if group == "" || c.Group == group {
			out = append(out, c)
		}
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *MockContactRepo) ListByGroups(_ context.Context, _ string, groups []string) ([]model.Contact, error) {
	var out []model.Contact
	for _, g := range groups {
		out = append(out, m.GroupContacts[g]...)
	}
	return out, nil
}

func (m *MockContactRepo) Groups(context.Context, string) ([]model.Group, error) {
	var out []model.Group
	for name, cs := range m.GroupContacts {
		out = append(out, model.Group{Name: name, ContactCount: len(cs)})
	}
	return out, nil
}

func (m *MockContactRepo) Delete(_ context.Context, _ string, id uuid.UUID) error {
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockContactRepo) DeleteGroup(_ context.Context, _, group string) (int64, error) {
	cs, ok := m.GroupContacts[group]
	if !ok {
		return 0, appErrors.NewNotFound("group", group)
	}
	delete(m.GroupContacts, group)
	return int64(len(cs)), nil
}

type MockOutboundRepo struct {
	mu        sync.Mutex
	messages  map[string]*model.OutboundMessage
	seq       int64
	CreateErr error
}

func NewMockOutboundRepo() *MockOutboundRepo {
	return &MockOutboundRepo{messages: map[string]*model.OutboundMessage{}}
}

func (m *MockOutboundRepo) CreateIfAbsent(_ context.Context, campaignID uuid.UUID, phone, content string) (*model.OutboundMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, false, m.CreateErr
	}
	key := campaignID.String() + "|" + phone
	if msg, ok := m.messages[key]; ok {
		cp := *msg
		return &cp, false, nil
	}
	m.seq++
	msg := &model.OutboundMessage{
		ID:              m.seq,
		CampaignID:      campaignID,
		Phone:           phone,
		Status:          model.DeliveryPending,
		RenderedContent: content,
	}
	m.messages[key] = msg
	cp := *msg
	return &cp, true, nil
}

func (m *MockOutboundRepo) UpdateStatus(_ context.Context, id int64, status model.DeliveryStatus, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.Status = status
			msg.LastError = lastError
			return nil
		}
	}
	return appErrors.NewNotFound("outbound message", "")
}

func (m *MockOutboundRepo) Stats(_ context.Context, campaignID uuid.UUID) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{"total": 0, "pending": 0, "sent": 0, "failed": 0}
	for _, msg := range m.messages {
		if msg.CampaignID != campaignID {
			continue
		}
		stats["total"]++
		stats[string(msg.Status)]++
	}
	return stats, nil
}

func (m *MockOutboundRepo) Message(campaignID uuid.UUID, phone string) *model.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[campaignID.String()+"|"+phone]
}

type MockPublisher struct {
	Jobs []queue.DispatchJob
	Err  error
}

func (m *MockPublisher) Publish(_ context.Context, job queue.DispatchJob) error {
	if m.Err != nil {
		return m.Err
	}
	m.Jobs = append(m.Jobs, job)
	return nil
}

// MockSender fails for the phones listed in Fail.
type MockSender struct {
	mu   sync.Mutex
	Fail map[string]bool
	Sent []string
}

func (m *MockSender) Send(_ context.Context, phone, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail[phone] {
		return errors.New("gateway rejected")
	}
	m.Sent = append(m.Sent, content)
	return nil
}
