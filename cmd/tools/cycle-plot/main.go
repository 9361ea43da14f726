// Command cycle-plot renders PNG charts of green durations and vehicle
// counts per approach from a junctiond history database, or from the
// report endpoint of a running daemon.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/greenwave-data/junction.control/internal/approach"
	"github.com/greenwave-data/junction.control/internal/history"
	"github.com/greenwave-data/junction.control/internal/httputil"
	"github.com/greenwave-data/junction.control/internal/stats"
)

var (
	dbPath    = flag.String("db-path", "junction.db", "History database to read (ignored with -from-url)")
	fromURL   = flag.String("from-url", "", "Base URL of a running daemon to query instead of a local DB (e.g. http://localhost:8080)")
	outputDir = flag.String("output-dir", ".", "Directory for the PNG output")
	hours     = flag.Int("hours", 24, "Lookback window in hours")
)

// approachSeries is the plotted data for one approach.
type approachSeries struct {
	name     string
	greens   []float64 // duration ms per activation, oldest first
	vehicles int64
}

func main() {
	flag.Parse()

	if *hours < 1 {
		log.Fatal("hours must be positive")
	}

	var (
		series []approachSeries
		err    error
	)
	if *fromURL != "" {
		series, err = loadFromAPI(*fromURL, *hours)
	} else {
		series, err = loadFromDB(*dbPath, *hours)
	}
	if err != nil {
		log.Fatalf("failed to load data: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	if err := plotGreens(series, filepath.Join(*outputDir, "greens.png")); err != nil {
		log.Fatalf("failed to plot greens: %v", err)
	}
	if err := plotVehicles(series, filepath.Join(*outputDir, "vehicles.png")); err != nil {
		log.Fatalf("failed to plot vehicles: %v", err)
	}

	for _, s := range series {
		sum := stats.Summarize(s.greens)
		fmt.Printf("%-6s greens=%-4d mean=%.0fms p50=%.0fms p85=%.0fms max=%.0fms vehicles=%d\n",
			s.name, sum.N, sum.Mean, sum.P50, sum.P85, sum.Max, s.vehicles)
	}
	log.Printf("wrote greens.png and vehicles.png to %s", *outputDir)
}

func loadFromDB(path string, hours int) ([]approachSeries, error) {
	db, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	vehicles, err := db.CountsByApproach(since)
	if err != nil {
		return nil, err
	}

	var series []approachSeries
	for _, a := range approach.Order() {
		greens, err := db.GreenDurations(a.String(), since)
		if err != nil {
			return nil, err
		}
		series = append(series, approachSeries{
			name:     a.String(),
			greens:   greens,
			vehicles: vehicles[a.String()],
		})
	}
	return series, nil
}

// reportDoc mirrors the daemon's /api/report response shape.
type reportDoc struct {
	Approaches []struct {
		Approach string `json:"approach"`
		Greens   struct {
			N    int     `json:"n"`
			Mean float64 `json:"mean"`
		} `json:"greens_ms"`
		Vehicles int64 `json:"vehicles"`
	} `json:"approaches"`
}

// loadFromAPI fetches /api/report from a running daemon. The report only
// carries summaries, so the green "series" degrades to N copies of the
// mean; good enough for the bar-style comparison the plots give.
func loadFromAPI(baseURL string, hours int) ([]approachSeries, error) {
	client := httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second})
	resp, err := client.Get(fmt.Sprintf("%s/api/report?hours=%d", baseURL, hours))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s", resp.Status)
	}

	var doc reportDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	var series []approachSeries
	for _, a := range doc.Approaches {
		greens := make([]float64, a.Greens.N)
		for i := range greens {
			greens[i] = a.Greens.Mean
		}
		series = append(series, approachSeries{name: a.Approach, greens: greens, vehicles: a.Vehicles})
	}
	return series, nil
}

func plotGreens(series []approachSeries, path string) error {
	p := plot.New()
	p.Title.Text = "Green durations per activation"
	p.X.Label.Text = "activation"
	p.Y.Label.Text = "green (s)"

	for _, s := range series {
		pts := make(plotter.XYs, 0, len(s.greens))
		for i, ms := range s.greens {
			pts = append(pts, plotter.XY{X: float64(i), Y: ms / 1000.0})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build line for %s: %w", s.name, err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}

func plotVehicles(series []approachSeries, path string) error {
	p := plot.New()
	p.Title.Text = "Vehicles per approach"
	p.Y.Label.Text = "vehicles"

	values := make(plotter.Values, 0, len(series))
	names := make([]string, 0, len(series))
	for _, s := range series {
		values = append(values, float64(s.vehicles))
		names = append(names, s.name)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(names...)

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}
