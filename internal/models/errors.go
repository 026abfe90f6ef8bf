package models

import "errors"

var (
	// ErrConfigurationGap is returned when no threshold covers a device/metric pair.
	ErrConfigurationGap = errors.New("configuration gap: no threshold for device metric")

	// ErrIngestion is returned for readings that are non-finite or outside the metric's domain.
	ErrIngestion = errors.New("ingestion error: invalid reading")

	// ErrStorage wraps read/write failures against the backing stores.
	ErrStorage = errors.New("storage error")

	// ErrNotification is returned when a notifier could not deliver a message.
	ErrNotification = errors.New("notification error")

	// ErrEnrichment is returned when the explanation service fails.
	ErrEnrichment = errors.New("enrichment error")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidThreshold is returned when a threshold breaks min < max or band ordering.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidSubscription is returned when a subscription targets neither or both of device and area.
	ErrInvalidSubscription = errors.New("invalid subscription")
)
