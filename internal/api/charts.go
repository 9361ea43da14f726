package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/httputil"
)

// chartWindow parses the optional hours query parameter, defaulting to 24.
func chartWindow(r *http.Request) (int, error) {
	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed < 1 {
			return 0, fmt.Errorf("invalid 'hours' parameter")
		}
		hours = parsed
	}
	return hours, nil
}

// chartCounts renders a bar chart (HTML) of vehicles per approach over the
// window. A debugging/operator aid, not a data API; use /api/report for
// machine-readable numbers.
func (s *Server) chartCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "history store not configured")
		return
	}

	hours, err := chartWindow(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	totals, err := s.db.CountsByApproach(since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve counts: %v", err))
		return
	}

	axis := make([]string, 0, approach.Count)
	data := make([]opts.BarData, 0, approach.Count)
	for _, a := range approach.Order() {
		axis = append(axis, a.String())
		data = append(data, opts.BarData{Value: totals[a.String()]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vehicles per approach", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Vehicles per approach", Subtitle: fmt.Sprintf("last %dh", hours)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(axis).AddSeries("vehicles", data)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// chartGreens renders a line chart (HTML) of green durations over time,
// one series per approach.
func (s *Server) chartGreens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "history store not configured")
		return
	}

	hours, err := chartWindow(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Green durations", Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Green durations", Subtitle: fmt.Sprintf("last %dh, seconds per activation", hours)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Name: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "green (s)"}),
	)

	for _, a := range approach.Order() {
		series, err := s.db.GreenSeries(a.String(), since)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve green series: %v", err))
			return
		}
		data := make([]opts.LineData, 0, len(series))
		for _, point := range series {
			ts := time.UnixMilli(point[0])
			data = append(data, opts.LineData{Value: []interface{}{ts, float64(point[1]) / 1000.0}})
		}
		line.AddSeries(a.String(), data)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
