package monitor

import (
	"sort"

	"equipment-monitor/internal/models"
)

// Route returns the distinct recipients, sorted, whose subscriptions cover the device and
// accept the severity. An empty result is not an error.
func Route(subs []models.Subscription, device models.Device, severity models.Severity) []string {
	if severity == models.SeverityNone {
		return nil
	}

	seen := make(map[string]struct{})
	var recipients []string
	for _, s := range subs {
		if !s.Covers(device) || s.MinSeverity > severity {
			continue
		}
		if _, dup := seen[s.RecipientID]; dup {
			continue
		}
		seen[s.RecipientID] = struct{}{}
		recipients = append(recipients, s.RecipientID)
	}
	sort.Strings(recipients)
	return recipients
}
