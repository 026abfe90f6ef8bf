package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"equipment-monitor/internal/models"
)

const contactPointColumns = `id, name, recipient_id, type, configuration, status, created_at, updated_at`

// CreateContactPoint inserts a new active contact point.
func (d *DB) CreateContactPoint(ctx context.Context, cp models.ContactPoint) (models.ContactPoint, error) {
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.Status == "" {
		cp.Status = "active"
	}

	query := `
	INSERT INTO contact_points (
		id, name, recipient_id, type, configuration, status, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	RETURNING created_at, updated_at`

	err := d.Pool.QueryRow(ctx, query,
		cp.ID,
		cp.Name,
		cp.RecipientID,
		cp.Type,
		cp.Configuration, // bound as JSONB
		cp.Status,
	).Scan(&cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		return models.ContactPoint{}, storageErr("failed to create contact point", err)
	}
	return cp, nil
}

// GetContactPointsByRecipient returns all active contact points of a recipient.
func (d *DB) GetContactPointsByRecipient(ctx context.Context, recipientID string) ([]models.ContactPoint, error) {
	query := `
	SELECT ` + contactPointColumns + `
	FROM contact_points
	WHERE recipient_id = $1 AND status = 'active'
	ORDER BY created_at`

	rows, err := d.Pool.Query(ctx, query, recipientID)
	if err != nil {
		return nil, storageErr("failed to get contact points of "+recipientID, err)
	}
	defer rows.Close()

	var cps []models.ContactPoint
	for rows.Next() {
		var cp models.ContactPoint
		err := rows.Scan(
			&cp.ID,
			&cp.Name,
			&cp.RecipientID,
			&cp.Type,
			&cp.Configuration,
			&cp.Status,
			&cp.CreatedAt,
			&cp.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact point: %w", err)
		}
		cps = append(cps, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to get contact points of "+recipientID, err)
	}
	return cps, nil
}

// DeleteContactPoint performs a soft-delete by marking status and updating timestamp.
func (d *DB) DeleteContactPoint(ctx context.Context, id uuid.UUID) error {
	query := `
	UPDATE contact_points
	SET status = 'deleted', updated_at = NOW()
	WHERE id = $1 AND status <> 'deleted'`

	tag, err := d.Pool.Exec(ctx, query, id)
	if err != nil {
		return storageErr("failed to delete contact point", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact point %s: %w", id, models.ErrNotFound)
	}
	return nil
}
