package explain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"equipment-monitor/internal/models"
)

func alertEvent() models.Event {
	return models.Event{
		Kind:      models.EventAlertOpened,
		Device:    models.Device{ID: "D1", Type: models.DeviceTypeDicer, Area: "line-a"},
		Alert:     &models.Alert{MetricType: "spindle_rpm", Severity: models.SeverityCritical, Value: 13200, Deviation: 0.1},
		Threshold: &models.Threshold{Min: 8000, Max: 12000},
	}
}

func TestExplain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "spindle_rpm") {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Check spindle bearing temperature.  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", "secret", "test-model", time.Second)
	text, err := c.Explain(context.Background(), alertEvent())
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if text != "Check spindle bearing temperature." {
		t.Errorf("text = %q", text)
	}
}

func TestExplainFailuresAreEnrichmentErrors(t *testing.T) {
	handlers := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
		"empty":  func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"choices":[]}`)) },
		"error": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
		},
		"blank": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"   "}}]}`))
		},
		"slow": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
		},
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			c := NewClient(srv.URL, "", "m", 50*time.Millisecond)
			if _, err := c.Explain(context.Background(), alertEvent()); !errors.Is(err, models.ErrEnrichment) {
				t.Errorf("error = %v, want ErrEnrichment", err)
			}
		})
	}
}

func TestExplainKeepsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", "m", time.Second).Explain(context.Background(), alertEvent())
	var apiErr *openai.APIError
	if !errors.Is(err, models.ErrEnrichment) || !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want ErrEnrichment wrapping an API error", err)
	}
	if apiErr.HTTPStatusCode != http.StatusTooManyRequests || apiErr.Message != "rate limited" {
		t.Errorf("api error = %+v", apiErr)
	}
}

func TestPromptNotice(t *testing.T) {
	ev := models.Event{
		Kind:   models.EventLongRunningNotice,
		Device: models.Device{ID: "D1", Type: models.DeviceTypeDicer},
		Notice: &models.Notice{BatchID: "B42", Elapsed: 40 * time.Minute, Budget: 30 * time.Minute},
	}
	if p := Prompt(ev); !strings.Contains(p, "B42") || !strings.Contains(p, "40m") {
		t.Errorf("Prompt = %q", p)
	}
}
