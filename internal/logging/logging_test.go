package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")
	l.Component("engine").Debugf("sweep of %d devices", 3)

	out := buf.String()
	if !strings.Contains(out, "component=engine") || !strings.Contains(out, "sweep of 3 devices") {
		t.Errorf("log line = %q", out)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "chatty")
	l.Debug("hidden")
	l.Info("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestNewWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := New(dir, "info")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.SetOutput(l.file)
	l.Info("started")
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, "equipment-monitor.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "started") {
		t.Errorf("log file = %q", data)
	}
}
