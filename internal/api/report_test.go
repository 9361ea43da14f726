package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func seedHistory(t *testing.T, s *Server) {
	t.Helper()
	now := time.Now()
	if err := s.db.RecordPhaseChange(now.Add(-30*time.Minute), "green", "north", 20000, "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.db.RecordPhaseChange(now.Add(-20*time.Minute), "green", "north", 30000, "snapshot"); err != nil {
		t.Fatal(err)
	}
	if err := s.db.RecordPhaseChange(now.Add(-25*time.Minute), "green", "east", 10000, "policy"); err != nil {
		t.Fatal(err)
	}
	if err := s.db.RecordCounts(now.Add(-30*time.Minute), "north", 5, map[string]int{"car": 4, "bus": 1}); err != nil {
		t.Fatal(err)
	}
}

func TestShowReport(t *testing.T) {
	s, _, _ := newTestServer(t, true)
	seedHistory(t, s)
	mux := s.ServeMux()

	rec := doJSON(t, mux, http.MethodGet, "/api/report?hours=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("report body not JSON: %v", err)
	}
	if report.Hours != 1 {
		t.Errorf("hours = %d, want 1", report.Hours)
	}
	if len(report.Approaches) != 4 {
		t.Fatalf("approaches = %d, want 4", len(report.Approaches))
	}

	north := report.Approaches[0]
	if north.Approach != "north" {
		t.Fatalf("first approach = %q, want north (rotation order)", north.Approach)
	}
	if north.Greens.N != 2 || north.Greens.Mean != 25000 {
		t.Errorf("north greens = %+v, want N=2 Mean=25000", north.Greens)
	}
	if north.Vehicles != 5 {
		t.Errorf("north vehicles = %d, want 5", north.Vehicles)
	}

	// Approaches without data in the window report zeroes.
	west := report.Approaches[3]
	if west.Greens.N != 0 || west.Vehicles != 0 {
		t.Errorf("west = %+v, want empty", west)
	}

	if report.ClassTotals["car"] != 4 {
		t.Errorf("class totals = %v, want 4 cars", report.ClassTotals)
	}
	// 4 cars * 2.0s + 1 bus * 2.5s
	if report.SaturationSec != 10.5 {
		t.Errorf("saturation = %v, want 10.5", report.SaturationSec)
	}
}

func TestShowReportBadParams(t *testing.T) {
	s, _, _ := newTestServer(t, true)
	mux := s.ServeMux()

	if rec := doJSON(t, mux, http.MethodGet, "/api/report?hours=zero", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("hours=zero = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/api/report?hours=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("hours=-1 = %d, want 400", rec.Code)
	}
}

func TestReportWithoutHistory(t *testing.T) {
	s, _, _ := newTestServer(t, false)
	mux := s.ServeMux()

	for _, path := range []string{"/api/report", "/api/history/phases", "/api/charts/counts", "/api/charts/greens"} {
		if rec := doJSON(t, mux, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s without history = %d, want 404", path, rec.Code)
		}
	}
}

func TestListPhaseEvents(t *testing.T) {
	s, _, _ := newTestServer(t, true)
	seedHistory(t, s)
	mux := s.ServeMux()

	rec := doJSON(t, mux, http.MethodGet, "/api/history/phases?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("phases = %d, want 200", rec.Code)
	}
	var events []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("phases body not JSON: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("events = %d, want 2 (limit)", len(events))
	}

	if rec := doJSON(t, mux, http.MethodGet, "/api/history/phases?limit=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 = %d, want 400", rec.Code)
	}
}

func TestCharts(t *testing.T) {
	s, _, _ := newTestServer(t, true)
	seedHistory(t, s)
	mux := s.ServeMux()

	for _, path := range []string{"/api/charts/counts", "/api/charts/greens"} {
		rec := doJSON(t, mux, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
			continue
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s content type = %q, want text/html", path, ct)
		}
		if !strings.Contains(rec.Body.String(), "echarts") {
			t.Errorf("%s body does not look like an echarts page", path)
		}
	}

	if rec := doJSON(t, mux, http.MethodGet, "/api/charts/counts?hours=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad hours = %d, want 400", rec.Code)
	}
}
