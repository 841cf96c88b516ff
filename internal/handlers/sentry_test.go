package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rfsentry/internal/models"
	"rfsentry/internal/service"
)

func newSentryTestRouter(sentry *mockSentry, mon *mockMonitoring) (*service.Service, *testRouterFixture) {
	s := &service.Service{
		Authorization: &mockAuth{parseID: 1},
		Sentry:        sentry,
		Monitoring:    mon,
	}
	return s, &testRouterFixture{router: newTestRouter(s)}
}

type testRouterFixture struct {
	router http.Handler
}

func (f *testRouterFixture) do(method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestSentryHandlers_Status(t *testing.T) {
	mon := &mockMonitoring{status: models.SentryStatus{
		Armed:       true,
		AnyAlerting: true,
		Devices: []models.DeviceStatus{
			{DeviceID: "AA:BB:CC:DD:EE:FF", State: models.AlertAlerting, LatestRSSI: -70, Delta: 15},
		},
	}}
	_, f := newSentryTestRouter(&mockSentry{}, mon)

	w := f.do(http.MethodGet, "/api/v1/sentry/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var st models.SentryStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !st.Armed || !st.AnyAlerting || len(st.Devices) != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestSentryHandlers_ArmDisarm(t *testing.T) {
	sentry := &mockSentry{}
	_, f := newSentryTestRouter(sentry, &mockMonitoring{})

	w := f.do(http.MethodPost, "/api/v1/sentry/arm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("arm status=%d, body=%s", w.Code, w.Body.String())
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["status"] != statusArmed {
		t.Fatalf("expected status %q, got %v", statusArmed, m["status"])
	}
	if _, ok := m["sentry"]; !ok {
		t.Fatal("response must embed the live sentry snapshot")
	}
	if sentry.armCalled != 1 {
		t.Fatalf("Arm calls: want 1, got %d", sentry.armCalled)
	}

	w = f.do(http.MethodPost, "/api/v1/sentry/disarm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("disarm status=%d, body=%s", w.Code, w.Body.String())
	}
	if sentry.disarmCalled != 1 {
		t.Fatalf("Disarm calls: want 1, got %d", sentry.disarmCalled)
	}
}

func TestSentryHandlers_ArmFailure(t *testing.T) {
	sentry := &mockSentry{armErr: errors.New("engine stopped")}
	_, f := newSentryTestRouter(sentry, &mockMonitoring{})

	w := f.do(http.MethodPost, "/api/v1/sentry/arm", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestSentryHandlers_TriggerTest(t *testing.T) {
	t.Run("empty body targets the default device", func(t *testing.T) {
		sentry := &mockSentry{}
		_, f := newSentryTestRouter(sentry, &mockMonitoring{})

		w := f.do(http.MethodPost, "/api/v1/sentry/test", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		if len(sentry.testCalls) != 1 || sentry.testCalls[0] != "" {
			t.Fatalf("test calls: %v", sentry.testCalls)
		}
	})

	t.Run("body names a device", func(t *testing.T) {
		sentry := &mockSentry{}
		_, f := newSentryTestRouter(sentry, &mockMonitoring{})

		w := f.do(http.MethodPost, "/api/v1/sentry/test", []byte(`{"device_id":"AA:BB:CC:DD:EE:FF"}`))
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		if len(sentry.testCalls) != 1 || sentry.testCalls[0] != "AA:BB:CC:DD:EE:FF" {
			t.Fatalf("test calls: %v", sentry.testCalls)
		}
	})

	t.Run("service rejection maps to 400", func(t *testing.T) {
		sentry := &mockSentry{testErr: errors.New("malformed sighting")}
		_, f := newSentryTestRouter(sentry, &mockMonitoring{})

		w := f.do(http.MethodPost, "/api/v1/sentry/test", []byte(`{"device_id":"junk"}`))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestSentryHandlers_GetPolicy(t *testing.T) {
	sentry := &mockSentry{policy: models.PolicyConfig{
		ApproachDelta:      5,
		RSSIAlertThreshold: -85,
		ApproachWindow:     10 * time.Second,
		CooldownWindow:     15 * time.Second,
	}}
	_, f := newSentryTestRouter(sentry, &mockMonitoring{})

	w := f.do(http.MethodGet, "/api/v1/sentry/policy", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var p models.PolicyConfig
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ApproachDelta != 5 || p.RSSIAlertThreshold != -85 {
		t.Fatalf("unexpected policy: %+v", p)
	}
}

func TestSentryHandlers_UpdatePolicy(t *testing.T) {
	payload := `{
		"whitelist": {"AA:BB:CC:DD:EE:FF": "My phone"},
		"approach_delta": 7,
		"rssi_alert_threshold": -80,
		"approach_window": "12s",
		"cooldown_window": "20s"
	}`

	t.Run("valid payload converts durations", func(t *testing.T) {
		sentry := &mockSentry{}
		_, f := newSentryTestRouter(sentry, &mockMonitoring{})

		w := f.do(http.MethodPut, "/api/v1/sentry/policy", []byte(payload))
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		got := sentry.lastPolicy
		if got.ApproachDelta != 7 || got.ApproachWindow != 12*time.Second || got.CooldownWindow != 20*time.Second {
			t.Fatalf("unexpected policy passed to service: %+v", got)
		}
		if got.Whitelist["AA:BB:CC:DD:EE:FF"] != "My phone" {
			t.Fatalf("whitelist not carried over: %v", got.Whitelist)
		}
	})

	t.Run("bad duration string is a 400", func(t *testing.T) {
		sentry := &mockSentry{}
		_, f := newSentryTestRouter(sentry, &mockMonitoring{})

		w := f.do(http.MethodPut, "/api/v1/sentry/policy", []byte(`{"approach_window":"soon","cooldown_window":"15s"}`))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("service validation failure is a 400", func(t *testing.T) {
		sentry := &mockSentry{updateErr: errors.New("approach_delta must be > 0")}
		_, f := newSentryTestRouter(sentry, &mockMonitoring{})

		w := f.do(http.MethodPut, "/api/v1/sentry/policy", []byte(payload))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestSentryHandlers_RequireAuth(t *testing.T) {
	s := &service.Service{
		Authorization: &mockAuth{parseErr: errors.New("bad token")},
		Sentry:        &mockSentry{},
		Monitoring:    &mockMonitoring{},
	}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sentry/status", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}
}

func TestDevicesHandlers(t *testing.T) {
	t.Run("tracked devices come from the live status", func(t *testing.T) {
		mon := &mockMonitoring{status: models.SentryStatus{
			Devices: []models.DeviceStatus{
				{DeviceID: "AA:BB:CC:DD:EE:FF", LatestRSSI: -70},
				{DeviceID: "11:22:33:44:55:66", LatestRSSI: -80},
			},
		}}
		_, f := newSentryTestRouter(&mockSentry{}, mon)

		w := f.do(http.MethodGet, "/api/v1/devices/", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		var out struct {
			Count   int                   `json:"count"`
			Devices []models.DeviceStatus `json:"devices"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		if out.Count != 2 || len(out.Devices) != 2 {
			t.Fatalf("unexpected response: %+v", out)
		}
	})

	t.Run("alerted devices come from the repo", func(t *testing.T) {
		mon := &mockMonitoring{alerted: []models.DeviceStatus{
			{DeviceID: "AA:BB:CC:DD:EE:FF", TimesAlerted: 3},
		}}
		_, f := newSentryTestRouter(&mockSentry{}, mon)

		w := f.do(http.MethodGet, "/api/v1/devices/alerted", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		var out struct {
			Count   int                   `json:"count"`
			Devices []models.DeviceStatus `json:"devices"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		if out.Count != 1 || out.Devices[0].TimesAlerted != 3 {
			t.Fatalf("unexpected response: %+v", out)
		}
	})

	t.Run("alerted repo failure maps to 500", func(t *testing.T) {
		mon := &mockMonitoring{alertedErr: errors.New("db down")}
		_, f := newSentryTestRouter(&mockSentry{}, mon)

		w := f.do(http.MethodGet, "/api/v1/devices/alerted", nil)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})
}
