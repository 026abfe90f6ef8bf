package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		type       TEXT NOT NULL,
		area       TEXT NOT NULL DEFAULT '',
		owner      TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT 'normal',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS metric_types (
		name      TEXT PRIMARY KEY,
		unit      TEXT NOT NULL DEFAULT '',
		valid_min DOUBLE PRECISION NOT NULL DEFAULT 0,
		valid_max DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS readings (
		id          BIGSERIAL PRIMARY KEY,
		device_id   TEXT NOT NULL REFERENCES devices(id),
		metric_type TEXT NOT NULL,
		value       DOUBLE PRECISION NOT NULL,
		ts          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS readings_latest_idx ON readings (device_id, metric_type, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS thresholds (
		id          BIGSERIAL PRIMARY KEY,
		device_id   TEXT NOT NULL DEFAULT '',
		device_type TEXT NOT NULL DEFAULT '',
		metric_type TEXT NOT NULL,
		min_value   DOUBLE PRECISION NOT NULL,
		max_value   DOUBLE PRECISION NOT NULL,
		warning     DOUBLE PRECISION NOT NULL,
		critical    DOUBLE PRECISION NOT NULL,
		emergency   DOUBLE PRECISION NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (min_value < max_value),
		CHECK (warning >= 0 AND warning < critical AND critical < emergency),
		UNIQUE (device_id, device_type, metric_type)
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id          UUID PRIMARY KEY,
		device_id   TEXT NOT NULL,
		metric_type TEXT NOT NULL,
		severity    SMALLINT NOT NULL,
		status      TEXT NOT NULL,
		value       DOUBLE PRECISION NOT NULL,
		deviation   DOUBLE PRECISION NOT NULL,
		opened_at   TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS alerts_one_open_idx ON alerts (device_id, metric_type) WHERE status = 'open'`,
	`CREATE INDEX IF NOT EXISTS alerts_device_idx ON alerts (device_id, opened_at DESC)`,
	`CREATE TABLE IF NOT EXISTS operation_logs (
		id         UUID PRIMARY KEY,
		device_id  TEXT NOT NULL,
		batch_id   TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at   TIMESTAMPTZ,
		budget_ms  BIGINT NOT NULL DEFAULT 0,
		flagged    BOOLEAN NOT NULL DEFAULT FALSE,
		flagged_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS operation_logs_open_idx ON operation_logs (device_id) WHERE ended_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id           UUID PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		device_id    TEXT NOT NULL DEFAULT '',
		area_id      TEXT NOT NULL DEFAULT '',
		min_severity SMALLINT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((device_id = '') <> (area_id = '')),
		UNIQUE (recipient_id, device_id, area_id)
	)`,
	`CREATE TABLE IF NOT EXISTS contact_points (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		recipient_id  TEXT NOT NULL,
		type          TEXT NOT NULL,
		configuration JSONB NOT NULL DEFAULT '{}',
		status        TEXT NOT NULL DEFAULT 'active',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id               UUID PRIMARY KEY,
		event_id         UUID NOT NULL,
		kind             TEXT NOT NULL,
		recipient_id     TEXT NOT NULL,
		contact_point_id UUID NOT NULL,
		channel          TEXT NOT NULL,
		subject          TEXT NOT NULL,
		body             TEXT NOT NULL,
		status           TEXT NOT NULL,
		last_error       TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		sent_at          TIMESTAMPTZ
	)`,
}

// Migrate creates the tables the engine needs if they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
