package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/unclebandit/smscampaigns/internal/model"
)

type OutboundMessageRepositoryInterface interface {
	// CreateIfAbsent records a pending delivery. created is false when the recipient was already recorded.
	CreateIfAbsent(ctx context.Context, campaignID uuid.UUID, phone, content string) (msg *model.OutboundMessage, created bool, err error)
	UpdateStatus(ctx context.Context, id int64, status model.DeliveryStatus, lastError string) error
	Stats(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
}

type OutboundMessageRepository struct {
	DB *sql.DB
}

const outboundColumns = `id, campaign_id, phone, status, rendered_content, last_error, created_at, updated_at`

// Idempotent insert
func (r *OutboundMessageRepository) CreateIfAbsent(ctx context.Context, campaignID uuid.UUID, phone, content string) (*model.OutboundMessage, bool, error) {
	query := `
        INSERT INTO outbound_messages (campaign_id, phone, status, rendered_content)
        VALUES ($1, $2, 'pending', $3)
        ON CONFLICT (campaign_id, phone) DO NOTHING
        RETURNING ` + outboundColumns
	msg, err := scanOutbound(r.DB.QueryRowContext(ctx, query, campaignID, phone, content))
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	existing := `SELECT ` + outboundColumns + ` FROM outbound_messages WHERE campaign_id=$1 AND phone=$2`
	msg, err = scanOutbound(r.DB.QueryRowContext(ctx, existing, campaignID, phone))
	if err != nil {
		return nil, false, err
	}
	return msg, false, nil
}

func (r *OutboundMessageRepository) UpdateStatus(ctx context.Context, id int64, status model.DeliveryStatus, lastError string) error {
	query := `UPDATE outbound_messages SET status=$1, last_error=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, status, lastError, id)
	return err
}

func (r *OutboundMessageRepository) Stats(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM outbound_messages WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"total": 0, "pending": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		if _, ok := stats[status]; ok {
			stats[status] = count
		}
		stats["total"] += count
	}
	return stats, rows.Err()
}

func scanOutbound(row rowScanner) (*model.OutboundMessage, error) {
	var msg model.OutboundMessage
	err := row.Scan(
		&msg.ID, &msg.CampaignID, &msg.Phone, &msg.Status,
		&msg.RenderedContent, &msg.LastError, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

var _ OutboundMessageRepositoryInterface = (*OutboundMessageRepository)(nil)
