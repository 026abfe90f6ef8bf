package cache

import (
	"testing"
	"time"

	"equipment-monitor/internal/models"
)

func TestReadingEncoding(t *testing.T) {
	ts := time.Date(2026, 3, 1, 8, 30, 0, 123, time.UTC)
	in := models.Reading{DeviceID: "D1", MetricType: "spindle_rpm", Value: 13200.5, Timestamp: ts}

	out, err := decodeReading("D1", "spindle_rpm", encodeReading(in))
	if err != nil {
		t.Fatalf("decodeReading() error = %v", err)
	}
	if out.Value != in.Value || !out.Timestamp.Equal(ts) || out.MetricType != "spindle_rpm" {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
}

func TestDecodeReadingMalformed(t *testing.T) {
	for _, raw := range []string{"", "13200", "abc|1", "1|abc"} {
		if _, err := decodeReading("D1", "spindle_rpm", raw); err == nil {
			t.Errorf("decodeReading(%q) expected error", raw)
		}
	}
}

func TestLatestKey(t *testing.T) {
	if got := latestKey("D1"); got != "latest:D1" {
		t.Errorf("latestKey = %q", got)
	}
}

func TestDecodeHashNeedsCompletion(t *testing.T) {
	partial := map[string]string{"chuck_temp": "21|1"}
	if got, err := decodeHash("D1", partial); err != nil || len(got) != 0 {
		t.Errorf("partial hash = %+v, %v, want a miss", got, err)
	}

	complete := map[string]string{"chuck_temp": "21|1", "spindle_rpm": "14400|2", completeField: "1"}
	got, err := decodeHash("D1", complete)
	if err != nil {
		t.Fatalf("decodeHash() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("complete hash = %+v, want both metrics", got)
	}
}
