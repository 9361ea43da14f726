package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/greenwave-data/junction.control/internal/history"
	"github.com/greenwave-data/junction.control/internal/phase"
	"github.com/greenwave-data/junction.control/internal/timeutil"
	"github.com/greenwave-data/junction.control/internal/timing"
)

func newTestServer(t *testing.T, withHistory bool) (*Server, *phase.Controller, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	ctrl := phase.NewController(clock, timing.EmptyConfig(), nil, nil)

	var db *history.DB
	if withHistory {
		var err error
		db, err = history.Open(filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("failed to open history db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
	}
	return NewServer(ctrl, db), ctrl, clock
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	rec := doJSON(t, s.ServeMux(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("healthz body not JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("healthz status field = %q, want ok", body["status"])
	}
}

func TestShowStatus(t *testing.T) {
	s, ctrl, clock := newTestServer(t, false)
	ctrl.Tick(clock.Now()) // first activation

	rec := doJSON(t, s.ServeMux(), http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var st phase.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("status body not JSON: %v", err)
	}
	if st.Active != "north" {
		t.Errorf("active = %q, want north after first activation", st.Active)
	}
	if st.Generation != 1 {
		t.Errorf("generation = %d, want 1", st.Generation)
	}

	if rec := doJSON(t, s.ServeMux(), http.MethodPost, "/api/status", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/status = %d, want 405", rec.Code)
	}
}

func TestPostCounts(t *testing.T) {
	s, ctrl, _ := newTestServer(t, false)
	mux := s.ServeMux()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"single approach", `{"approach":"north","count":4}`, http.StatusOK},
		{"with classes", `{"approach":"east","count":3,"classes":{"car":2,"bike":1}}`, http.StatusOK},
		{"whole table", `{"counts":{"north":1,"east":2,"south":3,"west":4}}`, http.StatusOK},
		{"unknown approach", `{"approach":"up","count":4}`, http.StatusBadRequest},
		{"negative count", `{"approach":"north","count":-1}`, http.StatusBadRequest},
		{"negative in table", `{"counts":{"north":-2}}`, http.StatusBadRequest},
		{"missing count", `{"approach":"north"}`, http.StatusBadRequest},
		{"malformed body", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/counts", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	// The accepted reports must be visible in the table; rejected ones not.
	counts := ctrl.Counts()
	if counts["north"] != 1 || counts["west"] != 4 {
		t.Errorf("counts after posts = %v", counts)
	}

	rec := doJSON(t, mux, http.MethodGet, "/api/counts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET counts = %d, want 200", rec.Code)
	}
}

func TestActivateEmergency(t *testing.T) {
	s, ctrl, clock := newTestServer(t, false)
	mux := s.ServeMux()
	ctrl.Tick(clock.Now()) // north green

	rec := doJSON(t, mux, http.MethodPost, "/api/emergency", `{"approach":"south"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("emergency = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}

	if a, active := ctrl.EmergencyActive(); !active || a != "south" {
		t.Errorf("emergency = %v/%v, want south/true", a, active)
	}

	// Invalid values are rejected without side effects.
	rec = doJSON(t, mux, http.MethodPost, "/api/emergency", `{"approach":"diagonal"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid emergency = %d, want 400", rec.Code)
	}
	if a, _ := ctrl.EmergencyActive(); a != "south" {
		t.Errorf("invalid emergency changed target to %v", a)
	}

	if rec := doJSON(t, mux, http.MethodGet, "/api/emergency", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/emergency = %d, want 405", rec.Code)
	}
}

func TestResetController(t *testing.T) {
	s, ctrl, clock := newTestServer(t, false)
	mux := s.ServeMux()

	ctrl.Tick(clock.Now())
	clock.Advance(5 * time.Second)
	ctrl.Tick(clock.Now())

	rec := doJSON(t, mux, http.MethodPost, "/api/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset = %d, want 200", rec.Code)
	}

	var st phase.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("reset body not JSON: %v", err)
	}
	if st.Generation != 2 {
		t.Errorf("generation after reset = %d, want 2", st.Generation)
	}
	if st.CompletedCycles != 0 {
		t.Errorf("completed cycles after reset = %d, want 0", st.CompletedCycles)
	}
}

func TestTimingReload(t *testing.T) {
	s, ctrl, _ := newTestServer(t, true)
	mux := s.ServeMux()

	// GET returns the live config.
	rec := doJSON(t, mux, http.MethodGet, "/api/timing", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET timing = %d, want 200", rec.Code)
	}

	// A valid PUT swaps the controller config and persists it.
	rec = doJSON(t, mux, http.MethodPut, "/api/timing", `{"yellow_ms":4000,"min_green_ms":8000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT timing = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got := ctrl.Config().GetYellow(); got != 4*time.Second {
		t.Errorf("yellow after reload = %v, want 4s", got)
	}
	if restored := LoadPersistedTimingConfig(s.db); restored == nil || restored.GetYellow() != 4*time.Second {
		t.Errorf("persisted config not restorable: %+v", restored)
	}

	// Invalid documents are rejected whole; the live config is untouched.
	for _, body := range []string{
		`{"yellow_ms":-1}`,
		`{"min_green_ms":20000,"max_green_ms":10000}`,
		`{"tick_interval_ms":500}`,
		`not json`,
	} {
		rec := doJSON(t, mux, http.MethodPut, "/api/timing", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("PUT %s = %d, want 400", body, rec.Code)
		}
	}
	if got := ctrl.Config().GetYellow(); got != 4*time.Second {
		t.Errorf("yellow changed by rejected PUT: %v", got)
	}
}

func TestLoadPersistedTimingConfigEmpty(t *testing.T) {
	s, _, _ := newTestServer(t, true)
	if cfg := LoadPersistedTimingConfig(s.db); cfg != nil {
		t.Errorf("expected nil config from empty store, got %+v", cfg)
	}
}
