package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/history"
	"github.com/greenwave-data/junction.control/internal/httputil"
	"github.com/greenwave-data/junction.control/internal/stats"
)

// ApproachReport summarizes one approach over the report window.
type ApproachReport struct {
	Approach string        `json:"approach"`
	Greens   stats.Summary `json:"greens_ms"`
	Vehicles int64         `json:"vehicles"`
}

// Report is the /api/report response.
type Report struct {
	Hours         int              `json:"hours"`
	Approaches    []ApproachReport `json:"approaches"`
	ClassTotals   map[string]int64 `json:"class_totals,omitempty"`
	SaturationSec float64          `json:"saturation_sec"`
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "history store not configured")
		return
	}

	hours := 24 // default value
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'hours' parameter")
			return
		}
		hours = parsed
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	vehicles, err := s.db.CountsByApproach(since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve counts: %v", err))
		return
	}

	report := Report{Hours: hours}
	for _, a := range approach.Order() {
		greens, err := s.db.GreenDurations(a.String(), since)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve green durations: %v", err))
			return
		}
		report.Approaches = append(report.Approaches, ApproachReport{
			Approach: a.String(),
			Greens:   stats.Summarize(greens),
			Vehicles: vehicles[a.String()],
		})
	}

	classes, err := s.db.ClassTotals(since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve class totals: %v", err))
		return
	}
	if len(classes) > 0 {
		report.ClassTotals = classes
		report.SaturationSec = stats.SaturationEstimate(classes, 1)
	}

	httputil.WriteJSONOK(w, report)
}

func (s *Server) listPhaseEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "history store not configured")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 10000 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	events, err := s.db.RecentPhaseEvents(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve phase events: %v", err))
		return
	}
	if events == nil {
		events = []history.PhaseEvent{}
	}
	httputil.WriteJSONOK(w, events)
}
