package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
	"github.com/unclebandit/smscampaigns/internal/model"
)

// ContactRepositoryInterface defines methods used by service
type ContactRepositoryInterface interface {
	// Upsert stores contacts in a group, replacing existing entries with the same phone.
	Upsert(ctx context.Context, ownerID, group string, contacts []model.Contact) (int, error)
	List(ctx context.Context, ownerID, group string, offset, limit int) ([]model.StoredContact, int, error)
	ListByGroups(ctx context.Context, ownerID string, groups []string) ([]model.Contact, error)
	Groups(ctx context.Context, ownerID string) ([]model.Group, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	DeleteGroup(ctx context.Context, ownerID, group string) (int64, error)
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

func (r *ContactRepository) Upsert(ctx context.Context, ownerID, group string, contacts []model.Contact) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO contacts (id, owner_id, group_name, first_name, last_name, phone, class, average, fields)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (owner_id, group_name, phone) DO UPDATE
        SET first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name, class=EXCLUDED.class,
            average=EXCLUDED.average, fields=EXCLUDED.fields
    `)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, c := range contacts {
		_, err := stmt.ExecContext(ctx,
			uuid.New(), ownerID, group, c.FirstName, c.LastName, c.Phone, c.Class, c.Average, model.Fields(c.Fields),
		)
		if err != nil {
			return 0, fmt.Errorf("storing contact %s: %w", c.Phone, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(contacts), nil
}

func (r *ContactRepository) List(ctx context.Context, ownerID, group string, offset, limit int) ([]model.StoredContact, int, error) {
	where := ` WHERE owner_id=$1`
	args := []any{ownerID}
	if group != "" {
		where += ` AND group_name=$2`
		args = append(args, group)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, owner_id, group_name, first_name, last_name, phone, class, average, fields, created_at
        FROM contacts` + where + fmt.Sprintf(` ORDER BY group_name, last_name, first_name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	contacts := []model.StoredContact{}
	for rows.Next() {
		var (
			c      model.StoredContact
			fields model.Fields
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Group, &c.FirstName, &c.LastName, &c.Phone, &c.Class, &c.Average, &fields, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		c.Fields = fields
		contacts = append(contacts, c)
	}
	return contacts, total, rows.Err()
}

// ListByGroups returns the contacts of the given groups, de-duplicated by phone, in a stable order.
func (r *ContactRepository) ListByGroups(ctx context.Context, ownerID string, groups []string) ([]model.Contact, error) {
	// first row per phone wins; seq keeps rows of one import in file order.
	query := `
        SELECT first_name, last_name, phone, class, average, fields
        FROM (
            SELECT DISTINCT ON (phone) first_name, last_name, phone, class, average, fields, created_at, seq
            FROM contacts
            WHERE owner_id=$1 AND group_name = ANY($2)
            ORDER BY phone, created_at, seq
        ) c
        ORDER BY created_at, seq
    `
	rows, err := r.DB.QueryContext(ctx, query, ownerID, pq.Array(groups))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var (
			c      model.Contact
			fields model.Fields
		)
		if err := rows.Scan(&c.FirstName, &c.LastName, &c.Phone, &c.Class, &c.Average, &fields); err != nil {
			return nil, err
		}
		c.Fields = fields
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) Groups(ctx context.Context, ownerID string) ([]model.Group, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT group_name, COUNT(*) FROM contacts WHERE owner_id=$1 GROUP BY group_name ORDER BY group_name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []model.Group{}
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.Name, &g.ContactCount); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *ContactRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM contacts WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErrors.NewNotFound("contact", id.String())
	}
	return nil
}

func (r *ContactRepository) DeleteGroup(ctx context.Context, ownerID, group string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM contacts WHERE owner_id=$1 AND group_name=$2`, ownerID, group)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, appErrors.NewNotFound("group", group)
	}
	return affected, nil
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
