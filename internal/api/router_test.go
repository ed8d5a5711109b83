package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Thedurancode/aitickets/internal/config"
	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/Thedurancode/aitickets/internal/pipeline"
)

type fakeHighlights struct {
	triggered []int64
	statuses  map[int64]pipeline.RunStatus
}

func (f *fakeHighlights) Trigger(eventID int64) pipeline.TriggerStatus {
	f.triggered = append(f.triggered, eventID)
	return pipeline.TriggerStatus{EventID: eventID, State: pipeline.StageIdle, Joined: len(f.triggered) > 1}
}

func (f *fakeHighlights) Status(eventID int64) (pipeline.RunStatus, bool) {
	st, ok := f.statuses[eventID]
	return st, ok
}

func newTestRouter(t *testing.T, f *fakeHighlights, perMin int) http.Handler {
	t.Helper()
	server := config.Default().Server
	server.TriggerPerMin = perMin
	return NewRouter(zerolog.New(io.Discard), f, Options{Server: server})
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestTriggerAccepted(t *testing.T) {
	f := &fakeHighlights{}
	h := newTestRouter(t, f, 0)

	rec := do(h, http.MethodPost, "/api/events/12/highlight")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var got struct {
		EventID int64  `json:"event_id"`
		State   string `json:"state"`
		Joined  bool   `json:"joined"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.EventID != 12 || got.State != "idle" || got.Joined {
		t.Errorf("unexpected body %s", rec.Body)
	}
	if len(f.triggered) != 1 || f.triggered[0] != 12 {
		t.Errorf("trigger not forwarded: %v", f.triggered)
	}
}

func TestTriggerBadID(t *testing.T) {
	f := &fakeHighlights{}
	h := newTestRouter(t, f, 0)

	for _, id := range []string{"abc", "0", "-3"} {
		rec := do(h, http.MethodPost, "/api/events/"+id+"/highlight")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("id %q: expected 400, got %d", id, rec.Code)
		}
	}
	if len(f.triggered) != 0 {
		t.Errorf("bad ids must not trigger: %v", f.triggered)
	}
}

func TestStatus(t *testing.T) {
	f := &fakeHighlights{statuses: map[int64]pipeline.RunStatus{
		4: {
			EventID: 4,
			State:   pipeline.StageDone,
			Result:  &models.HighlightResult{EventID: 4, URL: "/uploads/highlight_ev4_ab.mp4", ClipsUsed: 3},
		},
	}}
	h := newTestRouter(t, f, 0)

	rec := do(h, http.MethodGet, "/api/events/4/highlight")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"state":"done"`) || !strings.Contains(body, `"mp4_url":"/uploads/highlight_ev4_ab.mp4"`) {
		t.Errorf("unexpected body %s", body)
	}

	if rec := do(h, http.MethodGet, "/api/events/5/highlight"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown run, got %d", rec.Code)
	}
}

func TestTriggerRateLimited(t *testing.T) {
	f := &fakeHighlights{}
	h := newTestRouter(t, f, 2)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(h, http.MethodPost, "/api/events/1/highlight").Code
	}
	if codes[0] != http.StatusAccepted || codes[1] != http.StatusAccepted || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected codes %v", codes)
	}

	// Status reads are not limited.
	if rec := do(h, http.MethodGet, "/api/events/1/highlight"); rec.Code == http.StatusTooManyRequests {
		t.Error("status should not be rate limited")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t, &fakeHighlights{}, 0)

	if rec := do(h, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("metrics: %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/ws"); rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("ws without a subscriber should not be routed, got %d", rec.Code)
	}
}
