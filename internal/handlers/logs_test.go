package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rfsentry/internal/models"
	"rfsentry/internal/service"
)

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.SentryEvent{
		{EventID: "e1", OccurredAt: now, Type: "ALERT_START", DeviceID: "AA:BB:CC:DD:EE:FF", Description: "approach"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: "ALERT_CLEAR", DeviceID: "AA:BB:CC:DD:EE:FF", Description: "clear"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	doGet := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		for k, vv := range authHeader("valid") {
			for _, v := range vv {
				req.Header.Add(k, v)
			}
		}
		r.ServeHTTP(w, req)
		return w
	}

	// Invalid 'from' → 400
	if w := doGet("/api/v1/logs/?from=notatime"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// from > to → 400
	if w := doGet("/api/v1/logs/?from=2026-08-02&to=2026-08-01"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", w.Code)
	}

	// Valid range, lowercase type normalized, device filter passed through
	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) +
		"&to=" + now.Add(2*time.Second).Format(time.RFC3339) +
		"&type=alert_start&device=AA:BB:CC:DD:EE:FF"
	w := doGet(q)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                  `json:"count"`
		Events []models.SentryEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != "ALERT_START" {
		t.Fatalf("expected lastType ALERT_START, got %q", logs.lastType)
	}
	if logs.lastDevice != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("expected device filter forwarded, got %q", logs.lastDevice)
	}
}

func TestLogsHandler_DateOnlyToMeansEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	s := &service.Service{
		Authorization: &mockAuth{parseID: 1},
		EventLog:      logs,
	}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?to=2026-08-15", nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}

	endOfDay := time.Date(2026, 8, 15, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	if !logs.lastTo.Equal(endOfDay) {
		t.Fatalf("date-only 'to': want %v, got %v", endOfDay, logs.lastTo)
	}
}
