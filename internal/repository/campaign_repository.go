package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
	"github.com/unclebandit/smscampaigns/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*model.Campaign, error)
	List(ctx context.Context, ownerID string, filter CampaignFilter) ([]*model.Campaign, int, error)
	Update(ctx context.Context, c *model.Campaign) error
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	// AddDeliveryCounts adds to the success and failure counters of a campaign.
	AddDeliveryCounts(ctx context.Context, id uuid.UUID, success, failure int) error
}

// CampaignFilter narrows a campaign listing. Empty strings match everything.
type CampaignFilter struct {
	Offset int
	Limit  int
	Status string
	Type   string
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, owner_id, name, type, status, message, template_id, contacts,
    recipient_count, success_count, failure_count, scheduled_at, sent_at, created_at, updated_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	c.RecipientCount = len(c.Contacts)
	query := `
        INSERT INTO campaigns (id, owner_id, name, type, status, message, template_id, contacts,
            recipient_count, success_count, failure_count, scheduled_at, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING created_at, updated_at
    `
	err := r.DB.QueryRowContext(ctx, query,
		c.ID, c.OwnerID, c.Name, c.Type, c.Status, c.Message, c.TemplateID, c.Contacts,
		c.RecipientCount, c.SuccessCount, c.FailureCount, c.ScheduledAt, c.SentAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return appErrors.NewValidation("campaign %s already exists", c.ID)
	}
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1 AND owner_id=$2`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id.String())
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) List(ctx context.Context, ownerID string, filter CampaignFilter) ([]*model.Campaign, int, error) {
	where := ` WHERE owner_id=$1`
	args := []any{ownerID}
	argPos := 2

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.Type != "" {
		where += fmt.Sprintf(" AND type=$%d", argPos)
		args = append(args, filter.Type)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	c.RecipientCount = len(c.Contacts)
	query := `
        UPDATE campaigns
        SET name=$1, status=$2, message=$3, template_id=$4, contacts=$5, recipient_count=$6,
            scheduled_at=$7, sent_at=$8, updated_at=NOW()
        WHERE id=$9 AND owner_id=$10
        RETURNING updated_at
    `
	err := r.DB.QueryRowContext(ctx, query,
		c.Name, c.Status, c.Message, c.TemplateID, c.Contacts, c.RecipientCount,
		c.ScheduledAt, c.SentAt, c.ID, c.OwnerID,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewCampaignNotFound(c.ID.String())
	}
	return err
}

func (r *CampaignRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.NewCampaignNotFound(id.String())
	}
	return nil
}

func (r *CampaignRepository) AddDeliveryCounts(ctx context.Context, id uuid.UUID, success, failure int) error {
	query := `
        UPDATE campaigns
        SET success_count=success_count+$1, failure_count=failure_count+$2, updated_at=NOW()
        WHERE id=$3
    `
	_, err := r.DB.ExecContext(ctx, query, success, failure, id)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Type, &c.Status, &c.Message, &c.TemplateID, &c.Contacts,
		&c.RecipientCount, &c.SuccessCount, &c.FailureCount, &c.ScheduledAt, &c.SentAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
