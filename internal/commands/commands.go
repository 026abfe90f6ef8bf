package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/models"
)

type Queries interface {
	Device(ctx context.Context, id string) (models.Device, error)
	ListDevices(ctx context.Context) ([]models.DeviceOverview, error)
	DeviceSummary(ctx context.Context, id string) (models.DeviceSummary, error)
	ListOpenAlerts(ctx context.Context) ([]models.Alert, error)
}

type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, s models.Subscription) (models.Subscription, error)
	DeleteSubscription(ctx context.Context, recipientID, deviceID, areaID string) error
	SubscriptionsByRecipient(ctx context.Context, recipientID string) ([]models.Subscription, error)
}

// Handler answers the text commands typed into a chat front end.
type Handler struct {
	queries Queries
	subs    SubscriptionStore
	log     *logrus.Entry
}

func New(queries Queries, subs SubscriptionStore, log *logrus.Entry) *Handler {
	return &Handler{queries: queries, subs: subs, log: log}
}

const helpText = `Available commands:
help - show this message
devices - status of every device
device <id> - latest readings, open alerts and running batches of one device
alerts - all open alerts
subscribe <device-id|area:<name>> [warning|critical|emergency] - get notified, default warning
unsubscribe <device-id|area:<name>> - stop notifications
subscriptions - list your subscriptions`

// Handle runs one command for the recipient and returns the reply text. Usage mistakes
// are answered in the reply; only backend failures return an error.
func (h *Handler) Handle(ctx context.Context, recipientID, text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return helpText, nil
	}
	name, args := strings.ToLower(strings.TrimPrefix(fields[0], "/")), fields[1:]

	var (
		reply string
		err   error
	)
	switch name {
	case "help", "start":
		reply = helpText
	case "devices", "status":
		reply, err = h.devices(ctx)
	case "device":
		reply, err = h.device(ctx, args)
	case "alerts":
		reply, err = h.alerts(ctx)
	case "subscribe":
		reply, err = h.subscribe(ctx, recipientID, args)
	case "unsubscribe":
		reply, err = h.unsubscribe(ctx, recipientID, args)
	case "subscriptions":
		reply, err = h.subscriptions(ctx, recipientID)
	default:
		reply = fmt.Sprintf("Unknown command %q.\n\n%s", fields[0], helpText)
	}
	if err != nil {
		h.log.WithFields(logrus.Fields{"recipient_id": recipientID, "command": name}).Errorf("Command failed: %v", err)
		return "", err
	}
	return reply, nil
}

func (h *Handler) devices(ctx context.Context) (string, error) {
	overview, err := h.queries.ListDevices(ctx)
	if err != nil {
		return "", err
	}
	if len(overview) == 0 {
		return "No devices are configured.", nil
	}

	type tally struct {
		total  int
		counts map[models.DeviceStatus]int
	}
	byType := map[models.DeviceType]*tally{}
	var abnormal []models.DeviceOverview
	for _, o := range overview {
		t, ok := byType[o.Device.Type]
		if !ok {
			t = &tally{counts: map[models.DeviceStatus]int{}}
			byType[o.Device.Type] = t
		}
		t.total++
		t.counts[o.Device.Status]++
		if o.OpenAlerts > 0 {
			abnormal = append(abnormal, o)
		}
	}

	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, string(typ))
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("Device status:\n")
	for _, typ := range types {
		t := byType[models.DeviceType(typ)]
		fmt.Fprintf(&b, "%s: %d total, %d normal", typ, t.total, t.counts[models.DeviceStatusNormal])
		for _, st := range []models.DeviceStatus{models.DeviceStatusWarning, models.DeviceStatusCritical, models.DeviceStatusEmergency, models.DeviceStatusOffline} {
			if n := t.counts[st]; n > 0 {
				fmt.Fprintf(&b, ", %d %s", n, st)
			}
		}
		b.WriteString("\n")
	}

	if len(abnormal) > 0 {
		sort.SliceStable(abnormal, func(i, j int) bool {
			if abnormal[i].HighestSeverity != abnormal[j].HighestSeverity {
				return abnormal[i].HighestSeverity > abnormal[j].HighestSeverity
			}
			return abnormal[i].Device.ID < abnormal[j].Device.ID
		})
		if len(abnormal) > 5 {
			abnormal = abnormal[:5]
		}
		b.WriteString("\nDevices with open alerts:\n")
		for _, o := range abnormal {
			fmt.Fprintf(&b, "%s: %d open, highest %s\n", label(o.Device), o.OpenAlerts, o.HighestSeverity)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (h *Handler) device(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: device <id>", nil
	}
	sum, err := h.queries.DeviceSummary(ctx, args[0])
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Sprintf("Device %s not found.", args[0]), nil
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, area %s): %s\n", label(sum.Device), sum.Device.Type, orDash(sum.Device.Area), sum.Device.Status)
	if len(sum.LatestReadings) > 0 {
		b.WriteString("\nLatest readings:\n")
		for _, r := range sum.LatestReadings {
			fmt.Fprintf(&b, "%s = %g at %s\n", r.MetricType, r.Value, r.Timestamp.Format("2006-01-02 15:04"))
		}
	}
	if len(sum.OpenAlerts) > 0 {
		b.WriteString("\nOpen alerts:\n")
		for _, a := range sum.OpenAlerts {
			fmt.Fprintf(&b, "%s %s since %s\n", a.MetricType, a.Severity, a.OpenedAt.Format("2006-01-02 15:04"))
		}
	}
	if len(sum.OpenOperations) > 0 {
		b.WriteString("\nRunning batches:\n")
		for _, o := range sum.OpenOperations {
			fmt.Fprintf(&b, "%s started %s\n", o.BatchID, o.StartedAt.Format("2006-01-02 15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (h *Handler) alerts(ctx context.Context) (string, error) {
	open, err := h.queries.ListOpenAlerts(ctx)
	if err != nil {
		return "", err
	}
	if len(open) == 0 {
		return "No open alerts.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d open alerts:\n", len(open))
	for _, a := range open {
		fmt.Fprintf(&b, "[%s] %s %s = %g since %s\n",
			strings.ToUpper(a.Severity.String()), a.DeviceID, a.MetricType, a.Value, a.OpenedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// parseTarget reads "area:<name>" or a device id.
func parseTarget(arg string) (deviceID, areaID string) {
	if area, ok := strings.CutPrefix(arg, "area:"); ok {
		return "", area
	}
	return arg, ""
}

func (h *Handler) subscribe(ctx context.Context, recipientID string, args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: subscribe <device-id|area:<name>> [warning|critical|emergency]", nil
	}
	deviceID, areaID := parseTarget(args[0])

	sev := models.SeverityWarning
	if len(args) == 2 {
		parsed, err := models.ParseSeverity(args[1])
		if err != nil || !parsed.Valid() {
			return fmt.Sprintf("Unknown severity %q. Use warning, critical or emergency.", args[1]), nil
		}
		sev = parsed
	}

	if deviceID != "" {
		if _, err := h.queries.Device(ctx, deviceID); errors.Is(err, models.ErrNotFound) {
			return fmt.Sprintf("Device %s not found.", deviceID), nil
		} else if err != nil {
			return "", err
		}
	}

	sub, err := h.subs.UpsertSubscription(ctx, models.Subscription{
		RecipientID: recipientID,
		DeviceID:    deviceID,
		AreaID:      areaID,
		MinSeverity: sev,
	})
	if errors.Is(err, models.ErrInvalidSubscription) {
		return fmt.Sprintf("Cannot subscribe: %v", err), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Subscribed to %s at %s and above.", target(sub), sub.MinSeverity), nil
}

func (h *Handler) unsubscribe(ctx context.Context, recipientID string, args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: unsubscribe <device-id|area:<name>>", nil
	}
	deviceID, areaID := parseTarget(args[0])
	s := models.Subscription{DeviceID: deviceID, AreaID: areaID}

	err := h.subs.DeleteSubscription(ctx, recipientID, deviceID, areaID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Sprintf("You are not subscribed to %s.", target(s)), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Unsubscribed from %s.", target(s)), nil
}

func (h *Handler) subscriptions(ctx context.Context, recipientID string) (string, error) {
	subs, err := h.subs.SubscriptionsByRecipient(ctx, recipientID)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return "You have no subscriptions. Try: subscribe <device-id>", nil
	}
	var b strings.Builder
	b.WriteString("Your subscriptions:\n")
	for _, s := range subs {
		fmt.Fprintf(&b, "%s, %s and above\n", target(s), s.MinSeverity)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func target(s models.Subscription) string {
	if s.AreaID != "" {
		return "area " + s.AreaID
	}
	return "device " + s.DeviceID
}

func label(d models.Device) string {
	if d.Name != "" && d.Name != d.ID {
		return fmt.Sprintf("%s [%s]", d.Name, d.ID)
	}
	return d.ID
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
