package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"warning", SeverityWarning},
		{"WARN", SeverityWarning},
		{" Critical ", SeverityCritical},
		{"emergency", SeverityEmergency},
		{"", SeverityNone},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if err != nil {
			t.Fatalf("ParseSeverity(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseSeverity("fatal"); err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !(SeverityWarning < SeverityCritical && SeverityCritical < SeverityEmergency) {
		t.Fatal("severities must be ordered warning < critical < emergency")
	}
	if SeverityNone.Valid() {
		t.Error("none must not be a valid alerting band")
	}
}

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		S Severity `json:"s"`
	}{SeverityCritical})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"s":"critical"}` {
		t.Errorf("unexpected json %s", data)
	}

	var out struct {
		S Severity `json:"s"`
	}
	if err := json.Unmarshal([]byte(`{"s":"emergency"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.S != SeverityEmergency {
		t.Errorf("got %v, want emergency", out.S)
	}
}

func TestThresholdValidate(t *testing.T) {
	valid := Threshold{
		DeviceType: DeviceTypeDicer,
		MetricType: "spindle_rpm",
		Min:        8000,
		Max:        12000,
		Bands:      Bands{Warning: 0.05, Critical: 0.10, Emergency: 0.20},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid threshold, got %v", err)
	}

	inverted := valid
	inverted.Min, inverted.Max = 12000, 8000
	if err := inverted.Validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold for min >= max, got %v", err)
	}

	unordered := valid
	unordered.Bands = Bands{Warning: 0.10, Critical: 0.10, Emergency: 0.20}
	if err := unordered.Validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold for non-increasing bands, got %v", err)
	}

	noTarget := valid
	noTarget.DeviceType = ""
	if err := noTarget.Validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold without device or type, got %v", err)
	}
}

func TestSubscriptionCovers(t *testing.T) {
	d := Device{ID: "D1", Area: "line-c"}

	direct := Subscription{RecipientID: "u1", DeviceID: "D1", MinSeverity: SeverityWarning}
	area := Subscription{RecipientID: "u2", AreaID: "line-c", MinSeverity: SeverityWarning}
	other := Subscription{RecipientID: "u3", AreaID: "line-a", MinSeverity: SeverityWarning}

	if !direct.Covers(d) || !area.Covers(d) {
		t.Error("device and area subscriptions should cover the device")
	}
	if other.Covers(d) {
		t.Error("subscription for another area must not cover the device")
	}

	both := Subscription{RecipientID: "u1", DeviceID: "D1", AreaID: "line-c", MinSeverity: SeverityWarning}
	if err := both.Validate(); !errors.Is(err, ErrInvalidSubscription) {
		t.Errorf("expected ErrInvalidSubscription, got %v", err)
	}
}
