package monitor

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"equipment-monitor/internal/models"
)

func sub(recipient, device, area string, minSeverity models.Severity) models.Subscription {
	return models.Subscription{ID: uuid.New(), RecipientID: recipient, DeviceID: device, AreaID: area, MinSeverity: minSeverity}
}

func TestRouteSeverityFilter(t *testing.T) {
	subs := []models.Subscription{
		sub("alice", "D1", "", models.SeverityCritical),
		sub("bob", "D1", "", models.SeverityWarning),
	}
	dev := dicer("D1")

	cases := []struct {
		severity models.Severity
		want     []string
	}{
		{models.SeverityWarning, []string{"bob"}},
		{models.SeverityCritical, []string{"alice", "bob"}},
		{models.SeverityEmergency, []string{"alice", "bob"}},
	}
	for _, tc := range cases {
		if got := Route(subs, dev, tc.severity); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Route(%s) = %v, want %v", tc.severity, got, tc.want)
		}
	}
}

func TestRouteAreaAndDistinct(t *testing.T) {
	subs := []models.Subscription{
		sub("carol", "", "line-a", models.SeverityWarning),
		sub("carol", "D1", "", models.SeverityWarning),
		sub("dave", "", "line-b", models.SeverityWarning),
		sub("erin", "D2", "", models.SeverityWarning),
	}

	got := Route(subs, dicer("D1"), models.SeverityCritical)
	if !reflect.DeepEqual(got, []string{"carol"}) {
		t.Errorf("Route = %v, want [carol]", got)
	}
}

func TestRouteNoMatch(t *testing.T) {
	dev := models.Device{ID: "D9", Type: models.DeviceTypeDicer}
	subs := []models.Subscription{sub("carol", "", "", models.SeverityWarning)}
	if got := Route(subs, dev, models.SeverityEmergency); len(got) != 0 {
		t.Errorf("Route = %v, want none", got)
	}
	if got := Route(nil, dicer("D1"), models.SeverityEmergency); len(got) != 0 {
		t.Errorf("Route(nil) = %v", got)
	}
}
