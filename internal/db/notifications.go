package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"equipment-monitor/internal/models"
)

func (d *DB) CreateNotification(ctx context.Context, n models.Notification) error {
	query := `
        INSERT INTO notifications (
            id, event_id, kind, recipient_id, contact_point_id, channel,
            subject, body, status, last_error, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := d.Pool.Exec(ctx, query,
		n.ID, n.EventID, string(n.Kind), n.RecipientID, n.ContactPointID, n.Channel,
		n.Subject, n.Body, n.Status, n.Error, n.CreatedAt)
	if err != nil {
		return storageErr("failed to create notification", err)
	}
	return nil
}

func (d *DB) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status, lastError string) error {
	query := `
        UPDATE notifications
        SET status = $1, last_error = $2,
            sent_at = CASE WHEN $1 = 'sent' THEN $3 ELSE sent_at END
        WHERE id = $4`
	tag, err := d.Pool.Exec(ctx, query, status, lastError, time.Now(), id)
	if err != nil {
		return storageErr("failed to update notification status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
	}
	return nil
}
