// internal/model/campaign.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type CampaignType string

const (
	TypeAcademic      CampaignType = "academic"
	TypeMarketing     CampaignType = "marketing"
	TypeTransactional CampaignType = "transactional"
)

func (t CampaignType) Valid() bool {
	switch t {
	case TypeAcademic, TypeMarketing, TypeTransactional:
		return true
	}
	return false
}

type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusScheduled CampaignStatus = "scheduled"
	StatusSent      CampaignStatus = "sent"
	StatusFailed    CampaignStatus = "failed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusSent, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a campaign may move from s to next.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusScheduled || next == StatusSent || next == StatusFailed
	case StatusScheduled:
		return next == StatusSent || next == StatusFailed
	}
	return false
}

// Editable reports whether name, message and contacts can still change.
func (s CampaignStatus) Editable() bool {
	return s == StatusDraft || s == StatusScheduled
}

type Campaign struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	OwnerID        string         `db:"owner_id" json:"-"`
	Name           string         `db:"name" json:"name"`
	Type           CampaignType   `db:"type" json:"type"`
	Status         CampaignStatus `db:"status" json:"status"`
	Message        string         `db:"message" json:"message"`
	TemplateID     string         `db:"template_id" json:"template_id,omitempty"`
	Contacts       Contacts       `db:"contacts" json:"contacts"`
	RecipientCount int            `db:"recipient_count" json:"recipient_count"`
	SuccessCount   int            `db:"success_count" json:"success_count"`
	FailureCount   int            `db:"failure_count" json:"failure_count"`
	ScheduledAt    *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	SentAt         *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// SetContacts replaces the recipient list and keeps RecipientCount in sync.
func (c *Campaign) SetContacts(contacts []Contact) {
	c.Contacts = Contacts(contacts)
	c.RecipientCount = len(contacts)
}
