package monitor

import (
	"fmt"
	"strings"
	"time"

	"equipment-monitor/internal/models"
)

func deviceLabel(d models.Device) string {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s", name, d.ID)
	if d.Type != "" {
		fmt.Fprintf(&b, ", %s", d.Type)
	}
	if d.Area != "" {
		fmt.Fprintf(&b, ", area %s", d.Area)
	}
	b.WriteString(")")
	return b.String()
}

// compose fills the subject and body of an event.
func compose(ev *models.Event) {
	switch ev.Kind {
	case models.EventAlertOpened, models.EventAlertEscalated:
		a := ev.Alert
		verb := "out of range"
		if ev.Kind == models.EventAlertEscalated {
			verb = "escalated"
		}
		ev.Subject = fmt.Sprintf("[%s] %s %s %s", strings.ToUpper(a.Severity.String()), ev.Device.ID, a.MetricType, verb)

		var b strings.Builder
		fmt.Fprintf(&b, "Device: %s\n", deviceLabel(ev.Device))
		fmt.Fprintf(&b, "Metric: %s = %g", a.MetricType, a.Value)
		if ev.Threshold != nil {
			fmt.Fprintf(&b, " (expected %g..%g)", ev.Threshold.Min, ev.Threshold.Max)
		}
		fmt.Fprintf(&b, "\nDeviation: %.1f%%\n", a.Deviation*100)
		fmt.Fprintf(&b, "Severity: %s\n", a.Severity)
		fmt.Fprintf(&b, "Opened: %s", a.OpenedAt.Format(time.RFC3339))
		if ev.Device.Owner != "" {
			fmt.Fprintf(&b, "\nOwner: %s", ev.Device.Owner)
		}
		ev.Body = b.String()

	case models.EventAlertResolved:
		a := ev.Alert
		ev.Subject = fmt.Sprintf("[RESOLVED] %s %s back in range", ev.Device.ID, a.MetricType)

		var b strings.Builder
		fmt.Fprintf(&b, "Device: %s\n", deviceLabel(ev.Device))
		fmt.Fprintf(&b, "Metric: %s = %g\n", a.MetricType, a.Value)
		fmt.Fprintf(&b, "Peak severity: %s\n", a.Severity)
		if a.ResolvedAt != nil {
			fmt.Fprintf(&b, "Open for: %s", a.ResolvedAt.Sub(a.OpenedAt).Round(time.Second))
		}
		ev.Body = b.String()

	case models.EventLongRunningNotice:
		n := ev.Notice
		ev.Subject = fmt.Sprintf("[NOTICE] %s batch %s running long", ev.Device.ID, n.BatchID)
		ev.Body = fmt.Sprintf("Device: %s\nBatch: %s\nStarted: %s\nElapsed: %s (budget %s)",
			deviceLabel(ev.Device), n.BatchID, n.StartedAt.Format(time.RFC3339),
			n.Elapsed.Round(time.Minute), n.Budget)
	}
}
