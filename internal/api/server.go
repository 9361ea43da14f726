// Package api serves the HTTP surface of the signal controller: status and
// count queries, emergency and reset control, runtime timing configuration,
// history reports, charts, and the SSE display stream.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/history"
	"github.com/greenwave-data/junction.control/internal/httputil"
	"github.com/greenwave-data/junction.control/internal/monitoring"
	"github.com/greenwave-data/junction.control/internal/phase"
	"github.com/greenwave-data/junction.control/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	ctrl *phase.Controller
	db   *history.DB // may be nil; history routes then return 404
}

// NewServer builds the API server around a controller and an optional
// history store.
func NewServer(ctrl *phase.Controller, db *history.DB) *Server {
	return &Server{
		ctrl: ctrl,
		db:   db,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table. Admin/debug routes are attached by the
// caller so they can be withheld in locked-down deployments.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/counts", s.handleCounts)
	mux.HandleFunc("/api/emergency", s.activateEmergency)
	mux.HandleFunc("/api/reset", s.resetController)
	mux.HandleFunc("/api/timing", s.handleTiming)
	mux.HandleFunc("/api/report", s.showReport)
	mux.HandleFunc("/api/history/phases", s.listPhaseEvents)
	mux.HandleFunc("/api/charts/counts", s.chartCounts)
	mux.HandleFunc("/api/charts/greens", s.chartGreens)
	mux.HandleFunc("/stream", s.streamFrames)
	return mux
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.ctrl.Status())
}

// countsRequest accepts either a single-approach report or a whole-table
// report, matching the detector wire forms.
type countsRequest struct {
	Approach string         `json:"approach"`
	Count    *int           `json:"count"`
	Classes  map[string]int `json:"classes"`
	Counts   map[string]int `json:"counts"`
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := s.ctrl.Status()
		httputil.WriteJSONOK(w, map[string]interface{}{
			"counts":           status.Counts,
			"total_detections": status.TotalDetections,
			"count_reports":    status.CountReports,
			"class_totals":     status.ClassTotals,
		})

	case http.MethodPost:
		var req countsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, "invalid JSON body")
			return
		}

		if len(req.Counts) > 0 {
			table := make(phase.CountTable, len(req.Counts))
			for name, n := range req.Counts {
				a, err := approach.Parse(name)
				if err != nil {
					httputil.BadRequest(w, err.Error())
					return
				}
				table[a] = n
			}
			if err := s.ctrl.UpdateCounts(table, req.Classes); err != nil {
				httputil.BadRequest(w, err.Error())
				return
			}
			httputil.WriteJSONOK(w, map[string]string{"status": "applied"})
			return
		}

		a, err := approach.Parse(req.Approach)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if req.Count == nil {
			httputil.BadRequest(w, "missing count")
			return
		}
		if err := s.ctrl.UpdateCount(a, *req.Count, req.Classes); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"status": "applied"})

	default:
		httputil.MethodNotAllowed(w)
	}
}

type emergencyRequest struct {
	Approach string `json:"approach"`
}

func (s *Server) activateEmergency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req emergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}

	a, err := approach.Parse(req.Approach)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.ctrl.ActivateEmergency(a); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Accepted(w, map[string]string{
		"status":   "accepted",
		"approach": a.String(),
	})
}

func (s *Server) resetController(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.ctrl.Reset()
	httputil.WriteJSONOK(w, s.ctrl.Status())
}
