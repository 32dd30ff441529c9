// internal/model/outbound_message.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// OutboundMessage is the delivery record of one campaign recipient.
type OutboundMessage struct {
	ID              int64          `db:"id" json:"id"`
	CampaignID      uuid.UUID      `db:"campaign_id" json:"campaign_id"`
	Phone           string         `db:"phone" json:"phone"`
	Status          DeliveryStatus `db:"status" json:"status"`
	RenderedContent string         `db:"rendered_content" json:"rendered_content"`
	LastError       string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}
