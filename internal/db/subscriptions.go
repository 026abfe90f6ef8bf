package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"equipment-monitor/internal/models"
)

const subscriptionColumns = `id, recipient_id, device_id, area_id, min_severity, created_at`

func scanSubscription(row rowScanner) (models.Subscription, error) {
	var s models.Subscription
	var minSeverity int16
	if err := row.Scan(&s.ID, &s.RecipientID, &s.DeviceID, &s.AreaID, &minSeverity, &s.CreatedAt); err != nil {
		return models.Subscription{}, err
	}
	s.MinSeverity = models.Severity(minSeverity)
	return s, nil
}

// UpsertSubscription creates a subscription or changes the minimum severity of an existing
// one for the same recipient and target.
func (d *DB) UpsertSubscription(ctx context.Context, s models.Subscription) (models.Subscription, error) {
	if err := s.Validate(); err != nil {
		return models.Subscription{}, err
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	query := `
	INSERT INTO subscriptions (id, recipient_id, device_id, area_id, min_severity, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (recipient_id, device_id, area_id) DO UPDATE
	SET min_severity = EXCLUDED.min_severity
	RETURNING ` + subscriptionColumns

	created, err := scanSubscription(d.Pool.QueryRow(ctx, query,
		s.ID,
		s.RecipientID,
		s.DeviceID,
		s.AreaID,
		int16(s.MinSeverity),
	))
	if err != nil {
		return models.Subscription{}, storageErr("failed to upsert subscription", err)
	}
	return created, nil
}

// DeleteSubscription removes the recipient's subscription to a device or area.
func (d *DB) DeleteSubscription(ctx context.Context, recipientID, deviceID, areaID string) error {
	query := `
	DELETE FROM subscriptions
	WHERE recipient_id = $1 AND device_id = $2 AND area_id = $3`

	tag, err := d.Pool.Exec(ctx, query, recipientID, deviceID, areaID)
	if err != nil {
		return storageErr("failed to delete subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription of %s: %w", recipientID, models.ErrNotFound)
	}
	return nil
}

func (d *DB) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return d.querySubscriptions(ctx, "failed to list subscriptions",
		`SELECT `+subscriptionColumns+` FROM subscriptions`)
}

func (d *DB) SubscriptionsByRecipient(ctx context.Context, recipientID string) ([]models.Subscription, error) {
	return d.querySubscriptions(ctx, "failed to get subscriptions of "+recipientID,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE recipient_id = $1 ORDER BY created_at`, recipientID)
}

func (d *DB) querySubscriptions(ctx context.Context, op, query string, args ...any) ([]models.Subscription, error) {
	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var list []models.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return list, nil
}
